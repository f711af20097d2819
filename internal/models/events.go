package models

import "time"

// Event types
const (
	EventTypeTrainingStarted   = "TRAINING_STARTED"
	EventTypeTrainingCompleted = "TRAINING_COMPLETED"
	EventTypeTrainingFailed    = "TRAINING_FAILED"
	EventTypeRetrainRequested  = "RETRAIN_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TrainingStartedEvent published when a training run begins
type TrainingStartedEvent struct {
	BaseEvent
	RunID     string `json:"run_id"`
	ModelType string `json:"model_type"`
	Period    string `json:"period"`
}

// TrainingCompletedEvent published when a training run succeeds
type TrainingCompletedEvent struct {
	BaseEvent
	RunID        string                  `json:"run_id"`
	ModelType    string                  `json:"model_type"`
	Period       string                  `json:"period"`
	Metrics      map[string]ModelMetrics `json:"metrics"`
	ArtifactPath string                  `json:"artifact_path"`
}

// TrainingFailedEvent published when a training run fails
type TrainingFailedEvent struct {
	BaseEvent
	RunID     string `json:"run_id"`
	ModelType string `json:"model_type"`
	Period    string `json:"period"`
	Reason    string `json:"reason"`
}

// RetrainRequestedEvent consumed to trigger a training run from outside
type RetrainRequestedEvent struct {
	BaseEvent
	ModelType string `json:"model_type,omitempty"`
	Period    string `json:"period,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
