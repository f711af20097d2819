package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-forecast-service/internal/models"
)

func TestValidatePredictionInputsRejectsBadFields(t *testing.T) {
	v := NewDataValidator(false, nil)

	report, err := v.ValidatePredictionInputs(-1, 2, "2024-13-40", "yearly")
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Len(t, report.Errors, 3, "item_id, date and period must each be reported")
}

func TestValidatePredictionInputsAccepts(t *testing.T) {
	v := NewDataValidator(false, nil)

	report, err := v.ValidatePredictionInputs(1, 2, "2024-06-15", models.PeriodDaily)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
}

func TestValidateDemandDatasetFindsDefects(t *testing.T) {
	v := NewDataValidator(false, nil)
	asOf := day(2024, time.March, 10)

	series := []models.DemandObservation{
		{ItemID: 1, PlaceID: 2, Date: day(2024, time.March, 1), Demand: 5},
		{ItemID: 1, PlaceID: 2, Date: day(2024, time.March, 1), Demand: 5},  // duplicate
		{ItemID: 1, PlaceID: 2, Date: day(2024, time.March, 20), Demand: 5}, // future
		{ItemID: 1, PlaceID: 2, Date: day(2024, time.March, 2), Demand: -1}, // negative
	}

	report, err := v.ValidateDemandDataset(series, asOf)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Len(t, report.Errors, 3)
}

func TestValidateOrdersEmptySnapshot(t *testing.T) {
	v := NewDataValidator(false, nil)
	report, _ := v.ValidateOrders(nil)
	assert.False(t, report.Valid)
}

func TestStrictModeReturnsError(t *testing.T) {
	v := NewDataValidator(true, nil)
	_, err := v.ValidateOrders(nil)

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestClassifyHistoryColdStart(t *testing.T) {
	v := NewDataValidator(false, nil)

	series := constantSeries(1, 2, day(2024, time.March, 1), 5, 4)
	cold, days := v.ClassifyHistory(series, 1, 2, 7)
	assert.True(t, cold)
	assert.Equal(t, 5, days)

	series = constantSeries(1, 2, day(2024, time.March, 1), 7, 4)
	cold, days = v.ClassifyHistory(series, 1, 2, 7)
	assert.False(t, cold)
	assert.Equal(t, 7, days)

	cold, days = v.ClassifyHistory(series, 99, 2, 7)
	assert.True(t, cold, "unseen pair is always a cold start")
	assert.Equal(t, 0, days)
}
