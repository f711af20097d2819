package forecast

import (
	"gonum.org/v1/gonum/stat"

	"demand-forecast-service/internal/models"
)

// Defaults used when no history exists at all.
const (
	defaultAvgDemand      = 5.0
	defaultAvgPrice       = 50.0
	defaultAvgPlaceDemand = 100.0
)

// FallbackStats holds global averages used in place of item/place-specific
// history for cold-start queries and for lags that reach past the start of a
// series. Computed once per training run and carried in the artifact.
type FallbackStats struct {
	AvgDemand      float64 `json:"avg_demand"`
	AvgPrice       float64 `json:"avg_price"`
	AvgPlaceDemand float64 `json:"avg_place_demand"`
}

// ComputeFallbackStats derives fallback statistics from the demand series.
func ComputeFallbackStats(series []models.DemandObservation) FallbackStats {
	if len(series) == 0 {
		return FallbackStats{
			AvgDemand:      defaultAvgDemand,
			AvgPrice:       defaultAvgPrice,
			AvgPlaceDemand: defaultAvgPlaceDemand,
		}
	}

	demands := make([]float64, 0, len(series))
	prices := make([]float64, 0, len(series))
	placeTotals := make(map[int64]float64)

	for _, obs := range series {
		demands = append(demands, obs.Demand)
		if obs.AvgPrice > 0 {
			prices = append(prices, obs.AvgPrice)
		}
		placeTotals[obs.PlaceID] += obs.Demand
	}

	totals := make([]float64, 0, len(placeTotals))
	for _, t := range placeTotals {
		totals = append(totals, t)
	}

	avgPrice := defaultAvgPrice
	if len(prices) > 0 {
		avgPrice = stat.Mean(prices, nil)
	}

	return FallbackStats{
		AvgDemand:      stat.Mean(demands, nil),
		AvgPrice:       avgPrice,
		AvgPlaceDemand: stat.Mean(totals, nil),
	}
}
