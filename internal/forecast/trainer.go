package forecast

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"demand-forecast-service/internal/models"
)

// Minimum rows needed to form at least one chronological train/validation
// split worth evaluating.
const minTrainingRows = 10

const timeSeriesSplits = 5

const mapeEpsilon = 1e-6

// ModelTrainer fits the regression model(s) for one training run using a
// time-ordered split: validation rows are always later than training rows.
type ModelTrainer struct {
	ModelType string
	Seed      int64
	logger    *zap.Logger
}

// NewModelTrainer creates a trainer for the given model type.
func NewModelTrainer(modelType string, logger *zap.Logger) *ModelTrainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelTrainer{ModelType: modelType, Seed: DefaultSeed, logger: logger}
}

// TrainOutput bundles everything a training run produces for the artifact.
type TrainOutput struct {
	Members    map[string]Regressor
	Scaler     *StandardScaler
	Metrics    map[string]models.ModelMetrics
	Importance map[string]float64
}

// Train fits the member model(s) on the feature matrix and evaluates them on
// the held-out chronological tail.
func (t *ModelTrainer) Train(ctx context.Context, fm *FeatureMatrix) (*TrainOutput, error) {
	n := len(fm.Rows)
	if n == 0 {
		return nil, &InsufficientDataError{Reason: "feature matrix is empty"}
	}
	if n < minTrainingRows {
		return nil, &InsufficientDataError{
			Reason: fmt.Sprintf("%d rows available, need at least %d for a train/validation split", n, minTrainingRows),
		}
	}

	trainEnd := splitIndex(n, timeSeriesSplits)
	XTrain, XVal := fm.Rows[:trainEnd], fm.Rows[trainEnd:]
	yTrain, yVal := fm.Targets[:trainEnd], fm.Targets[trainEnd:]

	if constantValues(fm.Targets) {
		t.logger.Warn("All training targets are constant; r2 will be reported as 0")
	}

	scaler := &StandardScaler{}
	if err := scaler.Fit(XTrain); err != nil {
		return nil, err
	}
	XTrainScaled, err := scaler.Transform(XTrain)
	if err != nil {
		return nil, err
	}
	XValScaled, err := scaler.Transform(XVal)
	if err != nil {
		return nil, err
	}

	members, err := NewMemberSet(t.ModelType, t.Seed)
	if err != nil {
		return nil, err
	}

	metrics := make(map[string]models.ModelMetrics, len(members))
	for name, member := range members {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training cancelled: %w", err)
		}

		t.logger.Info("Fitting model",
			zap.String("model", name),
			zap.Int("train_rows", len(XTrainScaled)),
			zap.Int("val_rows", len(XValScaled)))

		if err := member.Fit(XTrainScaled, yTrain); err != nil {
			return nil, fmt.Errorf("fitting %s: %w", name, err)
		}

		preds := make([]float64, len(XValScaled))
		for i, row := range XValScaled {
			preds[i] = member.Predict(row)
		}
		m := computeMetrics(yVal, preds)
		metrics[name] = m

		t.logger.Info("Model evaluated",
			zap.String("model", name),
			zap.Float64("mae", m.MAE),
			zap.Float64("rmse", m.RMSE),
			zap.Float64("mape", m.MAPE),
			zap.Float64("r2", m.R2))
	}

	return &TrainOutput{
		Members:    members,
		Scaler:     scaler,
		Metrics:    metrics,
		Importance: t.featureImportance(members, fm.Columns),
	}, nil
}

// featureImportance aggregates per-feature split gain across members,
// normalized to sum to 1.
func (t *ModelTrainer) featureImportance(members map[string]Regressor, columns []string) map[string]float64 {
	total := make([]float64, len(columns))
	for _, member := range members {
		reporter, ok := member.(gainReporter)
		if !ok {
			continue
		}
		for j, g := range reporter.FeatureGain() {
			if j < len(total) {
				total[j] += g
			}
		}
	}

	var sum float64
	for _, g := range total {
		sum += g
	}

	out := make(map[string]float64, len(columns))
	for j, name := range columns {
		if sum > 0 {
			out[name] = total[j] / sum
		} else {
			out[name] = 0
		}
	}
	return out
}

// splitIndex returns the boundary of the last fold of a chronological
// time-series split: the final 1/(splits+1) of rows is held out.
func splitIndex(n, splits int) int {
	valSize := n / (splits + 1)
	if valSize < 1 {
		valSize = 1
	}
	return n - valSize
}

func computeMetrics(yTrue, yPred []float64) models.ModelMetrics {
	n := len(yTrue)
	var absSum, sqSum, mapeSum float64
	for i := range yTrue {
		err := yTrue[i] - yPred[i]
		absSum += math.Abs(err)
		sqSum += err * err
		denom := math.Abs(yTrue[i])
		if denom < mapeEpsilon {
			denom = mapeEpsilon
		}
		mapeSum += math.Abs(err) / denom
	}

	mean := stat.Mean(yTrue, nil)
	var ssTot float64
	for _, v := range yTrue {
		ssTot += (v - mean) * (v - mean)
	}

	// Degenerate variance is a valid state: report r2 = 0 instead of failing.
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - sqSum/ssTot
	}

	return models.ModelMetrics{
		MAE:  absSum / float64(n),
		RMSE: math.Sqrt(sqSum / float64(n)),
		MAPE: mapeSum / float64(n) * 100,
		R2:   r2,
	}
}

func constantValues(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
