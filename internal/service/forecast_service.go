package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"demand-forecast-service/config"
	"demand-forecast-service/internal/broker"
	"demand-forecast-service/internal/forecast"
	"demand-forecast-service/internal/models"
	"demand-forecast-service/internal/redisclient"
	"demand-forecast-service/internal/store"
	"demand-forecast-service/internal/util"
)

// ForecastService owns the model lifecycle: it runs the training pipeline,
// persists and reloads artifacts, and serves predictions. The loaded model
// is swapped atomically so in-flight predictions never observe a partial
// reload; training runs for the same artifact are serialized.
type ForecastService struct {
	store  *store.Store
	cache  *redisclient.Client
	events *broker.EventPublisher
	cfg    config.ForecastConfig
	logger *zap.Logger

	trainMu sync.Mutex
	current atomic.Pointer[loadedModel]
}

type loadedModel struct {
	artifact  *forecast.Artifact
	predictor *forecast.DemandPredictor
}

// NewForecastService creates the orchestrator. Cache and events may be nil;
// the service degrades to compute-only prediction and no event publishing.
func NewForecastService(st *store.Store, cache *redisclient.Client, events *broker.EventPublisher, cfg config.ForecastConfig) *ForecastService {
	return &ForecastService{
		store:  st,
		cache:  cache,
		events: events,
		cfg:    cfg,
		logger: util.GetLogger(),
	}
}

// LoadArtifact loads a previously trained artifact from disk and rebuilds
// the demand history needed for feature reconstruction. Without history every
// prediction falls back to the cold-start branch, which is still a valid
// (if conservative) serving state.
func (s *ForecastService) LoadArtifact(ctx context.Context) error {
	artifact, err := forecast.LoadArtifact(s.cfg.ArtifactPath)
	if err != nil {
		return err
	}

	history, items, menuItems := s.rebuildHistory(ctx)

	engineer := forecast.NewFeatureEngineer(items, menuItems, artifact.Fallback)
	predictor := forecast.NewDemandPredictor(artifact, engineer, history, s.cfg.MinHistoryDays, s.logger)
	s.current.Store(&loadedModel{artifact: artifact, predictor: predictor})

	s.logger.Info("Artifact loaded",
		zap.String("path", s.cfg.ArtifactPath),
		zap.String("run_id", artifact.RunID),
		zap.String("model_type", artifact.ModelType),
		zap.String("period", artifact.Period),
		zap.Int("history_rows", len(history)))
	return nil
}

func (s *ForecastService) rebuildHistory(ctx context.Context) ([]models.DemandObservation, []models.Item, []models.MenuItem) {
	if s.store == nil {
		return nil, nil, nil
	}
	snapshot, err := s.store.LoadTrainingSnapshot(ctx)
	if err != nil {
		s.logger.Warn("Could not rebuild demand history; serving cold-start predictions only", zap.Error(err))
		return nil, nil, nil
	}
	series := forecast.BuildDemandDataset(snapshot, s.logger)
	return forecast.FillMissingDays(series), snapshot.Items, snapshot.MenuItems
}

// Train runs the full pipeline: load snapshot, build and validate the demand
// dataset, engineer features, fit and evaluate the model(s), persist the
// artifact and swap it live. Returns ErrTrainingInProgress when a concurrent
// run holds the lock.
func (s *ForecastService) Train(ctx context.Context, modelType, period string) (*models.TrainingResult, error) {
	if modelType == "" {
		modelType = s.cfg.DefaultModelType
	}
	if period == "" {
		period = s.cfg.DefaultPeriod
	}
	if err := validateTrainingRequest(modelType, period); err != nil {
		return nil, err
	}

	if !s.trainMu.TryLock() {
		return nil, forecast.ErrTrainingInProgress
	}
	defer s.trainMu.Unlock()

	if s.cfg.TrainingTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TrainingTimeoutSeconds)*time.Second)
		defer cancel()
	}

	runID := uuid.New().String()
	started := time.Now()

	s.logger.Info("Training started",
		zap.String("run_id", runID),
		zap.String("model_type", modelType),
		zap.String("period", period))
	s.publishStarted(ctx, runID, modelType, period)

	result, err := s.runPipeline(ctx, runID, modelType, period)
	duration := time.Since(started)
	util.TrainingDuration.Observe(duration.Seconds())

	if err != nil {
		util.TrainingRunsTotal.WithLabelValues("failure").Inc()
		s.logger.Error("Training failed",
			zap.String("run_id", runID),
			zap.Duration("duration", duration),
			zap.Error(err))
		s.publishFailed(ctx, runID, modelType, period, err)
		return nil, err
	}

	util.TrainingRunsTotal.WithLabelValues("success").Inc()
	util.LastTrainingTimestamp.SetToCurrentTime()
	for name, m := range result.Metrics {
		util.ValidationMAE.WithLabelValues(name).Set(m.MAE)
		util.ValidationRMSE.WithLabelValues(name).Set(m.RMSE)
	}

	s.logger.Info("Training completed",
		zap.String("run_id", runID),
		zap.Duration("duration", duration),
		zap.String("artifact", result.ArtifactPath))
	return result, nil
}

func (s *ForecastService) runPipeline(ctx context.Context, runID, modelType, period string) (*models.TrainingResult, error) {
	validator := forecast.NewDataValidator(false, s.logger)

	ctx, span := util.StartSpan(ctx, "ForecastService.LoadSnapshot")
	snapshot, err := s.store.LoadTrainingSnapshot(ctx)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("loading training snapshot: %w", err)
	}

	if report, _ := validator.ValidateOrders(snapshot.Orders); !report.Valid {
		return nil, &forecast.ValidationError{Subject: "orders", Errors: report.Errors}
	}
	if report, _ := validator.ValidateOrderItems(snapshot.OrderItems); !report.Valid {
		return nil, &forecast.ValidationError{Subject: "order_items", Errors: report.Errors}
	}

	ctx, span = util.StartSpan(ctx, "ForecastService.BuildDataset")
	series := forecast.BuildDemandDataset(snapshot, s.logger)
	span.End()

	if report, _ := validator.ValidateDemandDataset(series, snapshot.AsOf); !report.Valid {
		return nil, &forecast.ValidationError{Subject: "demand", Errors: report.Errors}
	}

	filled := forecast.FillMissingDays(series)
	fallback := forecast.ComputeFallbackStats(series)
	engineer := forecast.NewFeatureEngineer(snapshot.Items, snapshot.MenuItems, fallback)

	ctx, span = util.StartSpan(ctx, "ForecastService.EngineerFeatures")
	fm, err := engineer.BuildTrainingMatrix(filled, period)
	span.End()
	if err != nil {
		return nil, err
	}

	trainer := forecast.NewModelTrainer(modelType, s.logger)
	ctx, span = util.StartSpan(ctx, "ForecastService.Train")
	out, err := trainer.Train(ctx, fm)
	span.End()
	if err != nil {
		return nil, err
	}

	envelopes := make(map[string]*forecast.ModelEnvelope, len(out.Members))
	for name, member := range out.Members {
		env, err := forecast.WrapModel(member)
		if err != nil {
			return nil, err
		}
		envelopes[name] = env
	}

	artifact := &forecast.Artifact{
		Version:      forecast.ArtifactSchemaVersion,
		RunID:        runID,
		ModelType:    modelType,
		Period:       period,
		FeatureNames: fm.Columns,
		Models:       envelopes,
		Scaler:       out.Scaler,
		Fallback:     fallback,
		Metrics:      out.Metrics,
		Importance:   out.Importance,
		TrainedAt:    time.Now().UTC(),
	}

	_, span = util.StartSpan(ctx, "ForecastService.Persist")
	err = artifact.Save(s.cfg.ArtifactPath)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("persisting artifact: %w", err)
	}

	predictor := forecast.NewDemandPredictor(artifact, engineer, filled, s.cfg.MinHistoryDays, s.logger)
	s.current.Store(&loadedModel{artifact: artifact, predictor: predictor})

	result := &models.TrainingResult{
		Status:       "success",
		RunID:        runID,
		Metrics:      out.Metrics,
		ArtifactPath: s.cfg.ArtifactPath,
		Timestamp:    artifact.TrainedAt.Format(time.RFC3339),
	}
	s.publishCompleted(ctx, runID, modelType, period, out.Metrics)
	return result, nil
}

// Predict answers one query against the live artifact, consulting the redis
// cache first. Cache failures degrade to compute-only.
func (s *ForecastService) Predict(ctx context.Context, q models.PredictionQuery) (*models.PredictionResult, error) {
	lm := s.current.Load()
	if lm == nil {
		return nil, forecast.ErrArtifactUnavailable
	}

	if q.Period == "" {
		q.Period = lm.artifact.Period
	}

	ctx, span := util.StartSpan(ctx, "ForecastService.Predict")
	defer span.End()

	cacheKey := redisclient.PredictionKey(lm.artifact.RunID, q)
	if s.cache != nil {
		cached, hit, err := s.cache.GetPrediction(ctx, cacheKey)
		if err != nil {
			s.logger.Warn("Prediction cache read failed", zap.Error(err))
		} else if hit {
			util.PredictionCacheHits.Inc()
			return cached, nil
		}
		util.PredictionCacheMisses.Inc()
	}

	started := time.Now()
	result, err := lm.predictor.Predict(q)
	if err != nil {
		return nil, err
	}
	util.PredictionLatency.Observe(time.Since(started).Seconds())

	util.PredictionsTotal.WithLabelValues(result.ModelType).Inc()
	if result.IsColdStart {
		util.ColdStartPredictionsTotal.Inc()
	}

	if s.cache != nil {
		ttl := time.Duration(s.cfg.CacheTTLSeconds) * time.Second
		if err := s.cache.SetPrediction(ctx, cacheKey, result, ttl); err != nil {
			s.logger.Warn("Prediction cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

// Info reports the live model status.
func (s *ForecastService) Info() models.ModelInfo {
	lm := s.current.Load()
	if lm == nil {
		return models.ModelInfo{Status: "not_loaded", IsTrained: false}
	}
	return models.ModelInfo{
		Status:       "loaded",
		ModelType:    lm.artifact.ModelType,
		Period:       lm.artifact.Period,
		IsTrained:    true,
		TrainedAt:    lm.artifact.TrainedAt,
		FeatureCount: len(lm.artifact.FeatureNames),
	}
}

// Artifact returns the live artifact, or nil when none is loaded.
func (s *ForecastService) Artifact() *forecast.Artifact {
	lm := s.current.Load()
	if lm == nil {
		return nil
	}
	return lm.artifact
}

func validateTrainingRequest(modelType, period string) error {
	var errs []string
	if !contains(models.ValidModelTypes, modelType) {
		errs = append(errs, fmt.Sprintf("model_type must be one of %v, got %q", models.ValidModelTypes, modelType))
	}
	if !contains(models.ValidPeriods, period) {
		errs = append(errs, fmt.Sprintf("period must be one of %v, got %q", models.ValidPeriods, period))
	}
	if len(errs) > 0 {
		return &forecast.ValidationError{Subject: "training request", Errors: errs}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func (s *ForecastService) publishStarted(ctx context.Context, runID, modelType, period string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTrainingStarted(ctx, runID, modelType, period); err != nil {
		s.logger.Warn("Failed to publish TrainingStarted event", zap.Error(err))
	}
}

func (s *ForecastService) publishCompleted(ctx context.Context, runID, modelType, period string, metrics map[string]models.ModelMetrics) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTrainingCompleted(ctx, runID, modelType, period, s.cfg.ArtifactPath, metrics); err != nil {
		s.logger.Warn("Failed to publish TrainingCompleted event", zap.Error(err))
	}
}

func (s *ForecastService) publishFailed(ctx context.Context, runID, modelType, period string, cause error) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTrainingFailed(ctx, runID, modelType, period, cause.Error()); err != nil {
		s.logger.Warn("Failed to publish TrainingFailed event", zap.Error(err))
	}
}
