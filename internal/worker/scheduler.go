package worker

import (
	"context"
	"errors"
	"log"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"demand-forecast-service/internal/broker"
	"demand-forecast-service/internal/forecast"
	"demand-forecast-service/internal/models"
	"demand-forecast-service/internal/service"
	"demand-forecast-service/internal/util"
)

// RetrainWorker consumes RETRAIN_REQUESTED events and runs training in
// response. A request that races an active run is dropped, not queued:
// the in-flight run already covers the freshest snapshot the requester
// could have seen.
type RetrainWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	svc          *service.ForecastService
}

// NewRetrainWorker creates a new retrain worker.
func NewRetrainWorker(consumer *broker.Consumer, svc *service.ForecastService) *RetrainWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnRetrainRequested(func(ctx context.Context, event *models.RetrainRequestedEvent) error {
		logger := util.GetLogger()
		logger.Info("Retrain requested",
			zap.String("event_id", event.EventID),
			zap.String("model_type", event.ModelType),
			zap.String("period", event.Period),
			zap.String("reason", event.Reason))

		_, err := svc.Train(ctx, event.ModelType, event.Period)
		if errors.Is(err, forecast.ErrTrainingInProgress) {
			logger.Warn("Retrain request dropped, training already running",
				zap.String("event_id", event.EventID))
			return nil
		}
		return err
	})

	return &RetrainWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		svc:          svc,
	}
}

// Start starts the worker
func (w *RetrainWorker) Start(ctx context.Context) error {
	log.Println("Starting retrain worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *RetrainWorker) Stop() error {
	log.Println("Stopping retrain worker...")
	return w.consumer.Close()
}

// Scheduler runs training on a cron expression. Disabled when the
// expression is empty.
type Scheduler struct {
	cron *cron.Cron
	svc  *service.ForecastService
}

// NewScheduler registers the retraining job. Returns an error when the cron
// expression does not parse.
func NewScheduler(expr string, svc *service.ForecastService) (*Scheduler, error) {
	c := cron.New()
	logger := util.GetLogger()

	_, err := c.AddFunc(expr, func() {
		logger.Info("Scheduled retraining triggered", zap.String("cron", expr))
		if _, err := svc.Train(context.Background(), "", ""); err != nil {
			if errors.Is(err, forecast.ErrTrainingInProgress) {
				logger.Warn("Scheduled retraining skipped, training already running")
				return
			}
			logger.Error("Scheduled retraining failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, svc: svc}, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	log.Println("Starting retrain scheduler...")
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	log.Println("Stopping retrain scheduler...")
	<-s.cron.Stop().Done()
}
