package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-forecast-service/internal/models"
)

func trendMatrix(rows int) *FeatureMatrix {
	fm := &FeatureMatrix{Columns: []string{"a", "b"}}
	start := day(2024, time.March, 1)
	for i := 0; i < rows; i++ {
		fm.Rows = append(fm.Rows, []float64{float64(i % 3), float64(i % 7)})
		fm.Targets = append(fm.Targets, float64(i%7)*2+1)
		fm.Dates = append(fm.Dates, start.AddDate(0, 0, i))
		fm.Keys = append(fm.Keys, GroupKey{ItemID: 1, PlaceID: 2})
	}
	return fm
}

func TestSplitIndexHoldsOutChronologicalTail(t *testing.T) {
	assert.Equal(t, 10, splitIndex(12, 5))
	assert.Equal(t, 50, splitIndex(60, 5))
	assert.Equal(t, 10, splitIndex(11, 5))
}

func TestTrainProducesMetricsAndImportance(t *testing.T) {
	trainer := NewModelTrainer(models.ModelXGBoost, nil)

	out, err := trainer.Train(context.Background(), trendMatrix(56))
	require.NoError(t, err)

	require.Contains(t, out.Metrics, models.ModelXGBoost)
	m := out.Metrics[models.ModelXGBoost]
	assert.Less(t, m.MAE, 1.0, "a clean periodic signal should be learned closely")
	assert.Greater(t, m.R2, 0.5)

	require.NotNil(t, out.Scaler)
	assert.Len(t, out.Importance, 2)
	assert.Greater(t, out.Importance["b"], out.Importance["a"])
}

func TestTrainConstantTargetReportsZeroR2(t *testing.T) {
	fm := trendMatrix(40)
	for i := range fm.Targets {
		fm.Targets[i] = 5
	}

	trainer := NewModelTrainer(models.ModelLightGBM, nil)
	out, err := trainer.Train(context.Background(), fm)
	require.NoError(t, err)

	m := out.Metrics[models.ModelLightGBM]
	assert.Equal(t, 0.0, m.R2)
	assert.InDelta(t, 0.0, m.MAE, 1e-9)
}

func TestTrainRejectsTinyDataset(t *testing.T) {
	trainer := NewModelTrainer(models.ModelXGBoost, nil)

	var insErr *InsufficientDataError
	_, err := trainer.Train(context.Background(), trendMatrix(5))
	assert.ErrorAs(t, err, &insErr)

	_, err = trainer.Train(context.Background(), &FeatureMatrix{Columns: []string{"a", "b"}})
	assert.ErrorAs(t, err, &insErr)
}

func TestTrainIsIdempotent(t *testing.T) {
	fm := trendMatrix(56)

	first, err := NewModelTrainer(models.ModelEnsemble, nil).Train(context.Background(), fm)
	require.NoError(t, err)
	second, err := NewModelTrainer(models.ModelEnsemble, nil).Train(context.Background(), fm)
	require.NoError(t, err)

	assert.Equal(t, first.Metrics, second.Metrics, "same snapshot and seed must reproduce metrics exactly")
}

func TestTrainHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewModelTrainer(models.ModelXGBoost, nil).Train(ctx, trendMatrix(56))
	assert.ErrorIs(t, err, context.Canceled)
}
