package models

import "time"

// Order represents a raw order row from the upstream snapshot.
// Only completed orders contribute to the demand series.
type Order struct {
	ID      int64     `db:"id" json:"id"`
	Created time.Time `db:"created" json:"created"`
	PlaceID int64     `db:"place_id" json:"place_id"`
	Status  string    `db:"status" json:"status"`
	Type    string    `db:"type" json:"type,omitempty"`
	Channel string    `db:"channel" json:"channel,omitempty"`
}

// OrderItem represents a raw order line item from the upstream snapshot.
type OrderItem struct {
	ID       int64   `db:"id" json:"id"`
	OrderID  int64   `db:"order_id" json:"order_id"`
	ItemID   int64   `db:"item_id" json:"item_id"`
	Quantity float64 `db:"quantity" json:"quantity"`
	Price    float64 `db:"price" json:"price"`
}

// Item represents an item catalog row.
type Item struct {
	ID    int64   `db:"id" json:"id"`
	Name  string  `db:"name" json:"name"`
	Price float64 `db:"price" json:"price"`
}

// MenuItem represents a menu catalog row with optional metadata.
type MenuItem struct {
	ID        int64   `db:"id" json:"id"`
	Price     float64 `db:"price" json:"price"`
	Status    int     `db:"status" json:"status"`
	Purchases int64   `db:"purchases" json:"purchases"`
}

// Order statuses that count as completed for demand aggregation.
var CompletedOrderStatuses = map[string]bool{
	"closed":    true,
	"completed": true,
	"paid":      true,
}

// DemandObservation is one aggregated (item, place, day) demand point.
// At most one observation exists per (item_id, place_id, date) triple.
type DemandObservation struct {
	ItemID   int64     `json:"item_id"`
	PlaceID  int64     `json:"place_id"`
	Date     time.Time `json:"date"`
	Demand   float64   `json:"demand"`
	AvgPrice float64   `json:"avg_price"`
}

// TrainingSnapshot bundles the read-only inputs of one training run.
type TrainingSnapshot struct {
	Orders     []Order
	OrderItems []OrderItem
	Items      []Item
	MenuItems  []MenuItem
	AsOf       time.Time
}

// Supported training periods.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// ValidPeriods lists the recognized period values.
var ValidPeriods = []string{PeriodDaily, PeriodWeekly, PeriodMonthly}

// Supported model types.
const (
	ModelXGBoost      = "xgboost"
	ModelLightGBM     = "lightgbm"
	ModelRandomForest = "random_forest"
	ModelEnsemble     = "ensemble"
)

// ValidModelTypes lists the recognized model type tags.
var ValidModelTypes = []string{ModelXGBoost, ModelLightGBM, ModelRandomForest, ModelEnsemble}

// PredictionQuery is one forecast request.
type PredictionQuery struct {
	ItemID  int64  `json:"item_id"`
	PlaceID int64  `json:"place_id"`
	Date    string `json:"date"`
	Period  string `json:"period,omitempty"`
}

// PredictionResult is the response for one forecast request.
type PredictionResult struct {
	ItemID          int64   `json:"item_id"`
	PlaceID         int64   `json:"place_id"`
	Date            string  `json:"date"`
	Period          string  `json:"period"`
	PredictedDemand float64 `json:"predicted_demand"`
	IsColdStart     bool    `json:"is_cold_start"`
	ModelType       string  `json:"model_type"`
	Units           string  `json:"units"`
	PeriodRescaled  bool    `json:"period_rescaled,omitempty"`
}

// ModelMetrics holds held-out evaluation metrics for one model.
type ModelMetrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
	R2   float64 `json:"r2"`
}

// TrainingResult is the response of a completed training run.
type TrainingResult struct {
	Status       string                  `json:"status"`
	RunID        string                  `json:"run_id"`
	Metrics      map[string]ModelMetrics `json:"metrics"`
	ArtifactPath string                  `json:"artifact_path"`
	Timestamp    string                  `json:"timestamp"`
}

// ModelInfo is the read-only model status response.
type ModelInfo struct {
	Status       string    `json:"status"`
	ModelType    string    `json:"model_type,omitempty"`
	Period       string    `json:"period,omitempty"`
	IsTrained    bool      `json:"is_trained"`
	TrainedAt    time.Time `json:"trained_at,omitempty"`
	FeatureCount int       `json:"feature_count,omitempty"`

	Metrics           map[string]ModelMetrics `json:"metrics,omitempty"`
	FeatureImportance map[string]float64      `json:"feature_importance,omitempty"`
}
