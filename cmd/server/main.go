package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"demand-forecast-service/config"
	"demand-forecast-service/internal/api"
	"demand-forecast-service/internal/broker"
	"demand-forecast-service/internal/forecast"
	"demand-forecast-service/internal/redisclient"
	"demand-forecast-service/internal/service"
	"demand-forecast-service/internal/store"
	"demand-forecast-service/internal/util"
	"demand-forecast-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting demand forecast service")

	tp, err := util.InitTracer("demand-forecast-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// Redis is optional: without it predictions are computed on every call.
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Redis unavailable, prediction cache disabled: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicForecast)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	forecastService := service.NewForecastService(db, redisClient, eventPublisher, cfg.Forecast)

	if err := forecastService.LoadArtifact(context.Background()); err != nil {
		if errors.Is(err, forecast.ErrArtifactUnavailable) {
			log.Printf("No artifact at %s, serving starts after first training run", cfg.Forecast.ArtifactPath)
		} else {
			log.Fatalf("Failed to load model artifact: %v", err)
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	retrainConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicForecast, cfg.Kafka.ConsumerGroup)
	retrainWorker := worker.NewRetrainWorker(retrainConsumer, forecastService)
	go func() {
		if err := retrainWorker.Start(workerCtx); err != nil {
			log.Printf("Retrain worker error: %v", err)
		}
	}()

	var scheduler *worker.Scheduler
	if cfg.Forecast.RetrainCron != "" {
		scheduler, err = worker.NewScheduler(cfg.Forecast.RetrainCron, forecastService)
		if err != nil {
			log.Fatalf("Invalid RETRAIN_CRON expression %q: %v", cfg.Forecast.RetrainCron, err)
		}
		scheduler.Start()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(forecastService, cfg.Forecast.PredictRateLimit)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	workerCancel()
	retrainWorker.Stop()

	log.Println("Server exited")
}
