package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"demand-forecast-service/config"
	"demand-forecast-service/internal/forecast"
	"demand-forecast-service/internal/models"
)

func testConfig() config.ForecastConfig {
	return config.ForecastConfig{
		ArtifactPath:     "models/demand_forecast.json",
		DefaultModelType: models.ModelXGBoost,
		DefaultPeriod:    models.PeriodDaily,
		MinHistoryDays:   7,
	}
}

func TestValidateTrainingRequest(t *testing.T) {
	assert.NoError(t, validateTrainingRequest(models.ModelEnsemble, models.PeriodWeekly))

	var vErr *forecast.ValidationError
	assert.ErrorAs(t, validateTrainingRequest("bogus", models.PeriodDaily), &vErr)
	assert.ErrorAs(t, validateTrainingRequest(models.ModelXGBoost, "yearly"), &vErr)
	assert.ErrorAs(t, validateTrainingRequest("bogus", "yearly"), &vErr)
}

func TestInfoBeforeAnyTraining(t *testing.T) {
	svc := NewForecastService(nil, nil, nil, testConfig())

	info := svc.Info()
	assert.Equal(t, "not_loaded", info.Status)
	assert.False(t, info.IsTrained)
	assert.Nil(t, svc.Artifact())
}

func TestPredictWithoutArtifact(t *testing.T) {
	svc := NewForecastService(nil, nil, nil, testConfig())

	_, err := svc.Predict(context.Background(), models.PredictionQuery{
		ItemID: 1, PlaceID: 2, Date: "2024-04-30",
	})
	assert.ErrorIs(t, err, forecast.ErrArtifactUnavailable)
}

func TestTrainRejectsBadRequestBeforeLocking(t *testing.T) {
	svc := NewForecastService(nil, nil, nil, testConfig())

	var vErr *forecast.ValidationError
	_, err := svc.Train(context.Background(), "bogus", models.PeriodDaily)
	assert.ErrorAs(t, err, &vErr)
}

func TestTrainFullPipeline(t *testing.T) {
	t.Skip("Requires a postgres snapshot; covered by the engine tests on synthetic series")
}
