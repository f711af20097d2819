package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-forecast-service/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seriesFromDemands(itemID, placeID int64, start time.Time, demands []float64) []models.DemandObservation {
	out := make([]models.DemandObservation, len(demands))
	for i, d := range demands {
		out[i] = models.DemandObservation{
			ItemID:   itemID,
			PlaceID:  placeID,
			Date:     start.AddDate(0, 0, i),
			Demand:   d,
			AvgPrice: 12.5,
		}
	}
	return out
}

func constantSeries(itemID, placeID int64, start time.Time, days int, demand float64) []models.DemandObservation {
	demands := make([]float64, days)
	for i := range demands {
		demands[i] = demand
	}
	return seriesFromDemands(itemID, placeID, start, demands)
}

func testEngineer(series []models.DemandObservation) *FeatureEngineer {
	items := []models.Item{{ID: 1, Name: "espresso", Price: 3.5}}
	menu := []models.MenuItem{{ID: 1, Price: 4.0, Status: 1, Purchases: 250}}
	return NewFeatureEngineer(items, menu, ComputeFallbackStats(series))
}

func TestFeatureSchemaIsStableAndSorted(t *testing.T) {
	series := constantSeries(1, 2, day(2024, time.March, 1), 40, 10)
	fe := testEngineer(series)

	names := fe.FeatureNames()
	assert.True(t, len(names) >= 30)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i], "columns must be sorted")
	}

	fm, err := fe.BuildTrainingMatrix(series, models.PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, names, fm.Columns)
	for _, row := range fm.Rows {
		assert.Len(t, row, len(names))
	}

	inference := fe.BuildInferenceRow(1, 2, day(2024, time.April, 10), series)
	assert.Len(t, inference, len(names))
	coldStart := fe.BuildColdStartRow(99, 2, day(2024, time.April, 10))
	assert.Len(t, coldStart, len(names))
}

func TestInferenceRowUsesOnlyPastObservations(t *testing.T) {
	demands := make([]float64, 30)
	for i := range demands {
		demands[i] = float64(i%5) + float64(i)
	}
	series := seriesFromDemands(1, 2, day(2024, time.March, 1), demands)
	fe := testEngineer(series)
	target := day(2024, time.March, 21)

	truncated := make([]models.DemandObservation, 0, len(series))
	for _, obs := range series {
		if obs.Date.Before(target) {
			truncated = append(truncated, obs)
		}
	}

	full := fe.BuildInferenceRow(1, 2, target, series)
	past := fe.BuildInferenceRow(1, 2, target, truncated)
	assert.Equal(t, past, full, "observations at or after the target date must not change the row")
}

func TestTrainingRowMatchesInferenceRow(t *testing.T) {
	demands := make([]float64, 25)
	for i := range demands {
		demands[i] = float64(3 + i%4)
	}
	series := seriesFromDemands(1, 2, day(2024, time.March, 1), demands)
	fe := testEngineer(series)

	fm, err := fe.BuildTrainingMatrix(series, models.PeriodDaily)
	require.NoError(t, err)

	anchor := day(2024, time.March, 15)
	var trainingRow []float64
	for i, d := range fm.Dates {
		if d.Equal(anchor) {
			trainingRow = fm.Rows[i]
			break
		}
	}
	require.NotNil(t, trainingRow)

	inference := fe.BuildInferenceRow(1, 2, anchor, series)
	assert.Equal(t, trainingRow, inference)
}

func TestWeeklyLabelSumsSevenDays(t *testing.T) {
	demands := []float64{5, 1, 2, 3, 4, 5, 6, 7}
	series := seriesFromDemands(1, 2, day(2024, time.March, 4), demands)
	fe := testEngineer(series)

	fm, err := fe.BuildTrainingMatrix(series, models.PeriodWeekly)
	require.NoError(t, err)
	require.Len(t, fm.Targets, 1)
	assert.Equal(t, 28.0, fm.Targets[0])
	assert.Equal(t, day(2024, time.March, 5), fm.Dates[0])
}

func TestMonthlyRowsAnchorAtMonthStart(t *testing.T) {
	// Mid-March through end of April: only April 1 has a complete month window.
	start := day(2024, time.March, 15)
	demands := make([]float64, 17+30)
	for i := range demands {
		demands[i] = 2
	}
	series := seriesFromDemands(1, 2, start, demands)
	fe := testEngineer(series)

	fm, err := fe.BuildTrainingMatrix(series, models.PeriodMonthly)
	require.NoError(t, err)
	require.Len(t, fm.Targets, 1)
	assert.Equal(t, day(2024, time.April, 1), fm.Dates[0])
	assert.Equal(t, 60.0, fm.Targets[0]) // 30 days of April at 2/day
}

func TestTrainingMatrixIsChronological(t *testing.T) {
	series := append(
		constantSeries(1, 2, day(2024, time.March, 1), 20, 4),
		constantSeries(7, 2, day(2024, time.February, 20), 25, 9)...,
	)
	fe := testEngineer(series)

	fm, err := fe.BuildTrainingMatrix(series, models.PeriodDaily)
	require.NoError(t, err)
	for i := 1; i < len(fm.Dates); i++ {
		assert.False(t, fm.Dates[i].Before(fm.Dates[i-1]))
	}
}

func TestLagsFallBackInsteadOfZero(t *testing.T) {
	series := constantSeries(1, 2, day(2024, time.March, 1), 5, 8)
	fe := testEngineer(series)

	fm, err := fe.BuildTrainingMatrix(series, models.PeriodDaily)
	require.NoError(t, err)

	col := map[string]int{}
	for i, name := range fm.Columns {
		col[name] = i
	}
	// The earliest row has only one day of history; the 30-day lag cannot be
	// satisfied but must never degrade to zero.
	first := fm.Rows[0]
	assert.Greater(t, first[col["demand_lag_30"]], 0.0)
}

func TestColdStartRowUsesFallbackStats(t *testing.T) {
	series := constantSeries(1, 2, day(2024, time.March, 1), 30, 10)
	fe := testEngineer(series)
	fb := fe.Fallback()

	row := fe.BuildColdStartRow(42, 9, day(2024, time.May, 1))
	col := map[string]int{}
	for i, name := range fe.FeatureNames() {
		col[name] = i
	}

	assert.Equal(t, fb.AvgDemand, row[col["demand_lag_1"]])
	assert.Equal(t, fb.AvgDemand, row[col["demand_rolling_mean_7"]])
	assert.Equal(t, fb.AvgDemand*0.3, row[col["demand_rolling_std_7"]])
	assert.Equal(t, fb.AvgPlaceDemand, row[col["place_total_demand"]])
	assert.Equal(t, fb.AvgPrice, row[col["item_base_price"]], "unknown item gets the fallback price")
}

func TestTemporalFeaturesCyclicEncoding(t *testing.T) {
	fe := testEngineer(nil)

	// 2024-01-01 is a Monday.
	f := fe.temporalFeatures(day(2024, time.January, 1))
	assert.Equal(t, 0.0, f["day_of_week"])
	assert.Equal(t, 1.0, f["is_month_start"])
	assert.Equal(t, 0.0, f["is_weekend"])
	assert.InDelta(t, 0.0, f["day_of_week_sin"], 1e-12)
	assert.InDelta(t, 1.0, f["day_of_week_cos"], 1e-12)
	assert.InDelta(t, 0.5, f["month_sin"], 1e-12)
	assert.InDelta(t, math.Sqrt(3)/2, f["month_cos"], 1e-12)

	// 2024-06-30 is a Sunday.
	f = fe.temporalFeatures(day(2024, time.June, 30))
	assert.Equal(t, 6.0, f["day_of_week"])
	assert.Equal(t, 1.0, f["is_weekend"])
	assert.Equal(t, 1.0, f["is_month_end"])
	assert.Equal(t, 2.0, f["quarter"])
}

func TestBuildTrainingMatrixRejectsUnknownPeriod(t *testing.T) {
	series := constantSeries(1, 2, day(2024, time.March, 1), 20, 3)
	fe := testEngineer(series)

	_, err := fe.BuildTrainingMatrix(series, "yearly")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestBuildTrainingMatrixEmptySeries(t *testing.T) {
	fe := testEngineer(nil)
	_, err := fe.BuildTrainingMatrix(nil, models.PeriodDaily)
	var insErr *InsufficientDataError
	assert.ErrorAs(t, err, &insErr)
}
