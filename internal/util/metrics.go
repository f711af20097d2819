package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_predictions_total",
		Help: "Total number of predictions served",
	}, []string{"model_type"})

	ColdStartPredictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_cold_start_predictions_total",
		Help: "Total number of predictions answered from the cold-start fallback",
	})

	PredictionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_predictions_failed_total",
		Help: "Total number of failed prediction requests",
	}, []string{"reason"})

	PredictionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forecast_prediction_latency_seconds",
		Help:    "Latency of single-row demand predictions",
		Buckets: prometheus.DefBuckets,
	})

	TrainingRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_training_runs_total",
		Help: "Total number of training runs",
	}, []string{"outcome"})

	TrainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forecast_training_duration_seconds",
		Help:    "Duration of full training pipeline runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	LastTrainingTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forecast_last_training_timestamp_seconds",
		Help: "Unix timestamp of the last successful training run",
	})

	ValidationMAE = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "forecast_validation_mae",
		Help: "Held-out MAE of the last training run, per model",
	}, []string{"model"})

	ValidationRMSE = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "forecast_validation_rmse",
		Help: "Held-out RMSE of the last training run, per model",
	}, []string{"model"})

	PredictionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_prediction_cache_hits_total",
		Help: "Total number of predictions served from the redis cache",
	})

	PredictionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_prediction_cache_misses_total",
		Help: "Total number of prediction cache misses",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
