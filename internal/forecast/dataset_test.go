package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"demand-forecast-service/internal/models"
)

func TestBuildDemandDatasetAggregatesCompletedOrders(t *testing.T) {
	created := day(2024, time.March, 4).Add(14 * time.Hour)
	snap := &models.TrainingSnapshot{
		Orders: []models.Order{
			{ID: 1, PlaceID: 2, Status: "Closed", Created: created},
			{ID: 2, PlaceID: 2, Status: "completed", Created: created.Add(2 * time.Hour)},
			{ID: 3, PlaceID: 2, Status: "cancelled", Created: created},
		},
		OrderItems: []models.OrderItem{
			{ID: 1, OrderID: 1, ItemID: 7, Quantity: 2, Price: 10},
			{ID: 2, OrderID: 2, ItemID: 7, Quantity: 3, Price: 14},
			{ID: 3, OrderID: 3, ItemID: 7, Quantity: 99, Price: 1}, // cancelled, excluded
		},
		AsOf: day(2024, time.March, 10),
	}

	series := BuildDemandDataset(snap, zap.NewNop())
	require.Len(t, series, 1)
	assert.Equal(t, int64(7), series[0].ItemID)
	assert.Equal(t, int64(2), series[0].PlaceID)
	assert.Equal(t, day(2024, time.March, 4), series[0].Date)
	assert.Equal(t, 5.0, series[0].Demand)
	assert.Equal(t, 12.0, series[0].AvgPrice)
}

func TestFillMissingDaysInsertsZeroRows(t *testing.T) {
	series := []models.DemandObservation{
		{ItemID: 1, PlaceID: 2, Date: day(2024, time.March, 1), Demand: 5, AvgPrice: 10},
		{ItemID: 1, PlaceID: 2, Date: day(2024, time.March, 4), Demand: 3, AvgPrice: 11},
	}

	filled := FillMissingDays(series)
	require.Len(t, filled, 4)
	assert.Equal(t, 0.0, filled[1].Demand)
	assert.Equal(t, 0.0, filled[2].Demand)
	assert.Equal(t, 10.0, filled[1].AvgPrice, "price carries forward over gaps")
	assert.Equal(t, day(2024, time.March, 2), filled[1].Date)
	assert.Equal(t, day(2024, time.March, 3), filled[2].Date)
}

func TestComputeFallbackStats(t *testing.T) {
	series := []models.DemandObservation{
		{ItemID: 1, PlaceID: 2, Date: day(2024, time.March, 1), Demand: 4, AvgPrice: 10},
		{ItemID: 5, PlaceID: 2, Date: day(2024, time.March, 1), Demand: 6, AvgPrice: 0},
		{ItemID: 1, PlaceID: 3, Date: day(2024, time.March, 1), Demand: 2, AvgPrice: 20},
	}

	fb := ComputeFallbackStats(series)
	assert.Equal(t, 4.0, fb.AvgDemand)
	assert.Equal(t, 15.0, fb.AvgPrice, "zero prices are excluded from the mean")
	assert.Equal(t, 6.0, fb.AvgPlaceDemand, "(4+6 and 2 across two places)")
}

func TestComputeFallbackStatsDefaults(t *testing.T) {
	fb := ComputeFallbackStats(nil)
	assert.Equal(t, 5.0, fb.AvgDemand)
	assert.Equal(t, 50.0, fb.AvgPrice)
	assert.Equal(t, 100.0, fb.AvgPlaceDemand)
}
