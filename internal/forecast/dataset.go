package forecast

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"demand-forecast-service/internal/models"
)

// GroupKey identifies one (item, place) demand series.
type GroupKey struct {
	ItemID  int64
	PlaceID int64
}

// BuildDemandDataset aggregates raw order line quantities into one demand
// observation per (item, place, day). Only completed orders contribute.
func BuildDemandDataset(snap *models.TrainingSnapshot, logger *zap.Logger) []models.DemandObservation {
	type dayKey struct {
		key GroupKey
		day int64
	}

	orderByID := make(map[int64]*models.Order, len(snap.Orders))
	for i := range snap.Orders {
		o := &snap.Orders[i]
		if !models.CompletedOrderStatuses[strings.ToLower(o.Status)] {
			continue
		}
		if o.Created.IsZero() {
			continue
		}
		orderByID[o.ID] = o
	}

	type agg struct {
		demand   float64
		priceSum float64
		priceN   int
	}
	buckets := make(map[dayKey]*agg)

	for _, it := range snap.OrderItems {
		order, ok := orderByID[it.OrderID]
		if !ok {
			continue
		}
		day := truncateDay(order.Created)
		k := dayKey{key: GroupKey{ItemID: it.ItemID, PlaceID: order.PlaceID}, day: day.Unix()}
		a, ok := buckets[k]
		if !ok {
			a = &agg{}
			buckets[k] = a
		}
		a.demand += it.Quantity
		a.priceSum += it.Price
		a.priceN++
	}

	series := make([]models.DemandObservation, 0, len(buckets))
	for k, a := range buckets {
		avgPrice := 0.0
		if a.priceN > 0 {
			avgPrice = a.priceSum / float64(a.priceN)
		}
		series = append(series, models.DemandObservation{
			ItemID:   k.key.ItemID,
			PlaceID:  k.key.PlaceID,
			Date:     time.Unix(k.day, 0).UTC(),
			Demand:   a.demand,
			AvgPrice: avgPrice,
		})
	}

	SortSeries(series)

	logger.Info("Demand dataset built",
		zap.Int("orders", len(snap.Orders)),
		zap.Int("order_items", len(snap.OrderItems)),
		zap.Int("observations", len(series)))

	return series
}

// FillMissingDays inserts explicit zero-demand observations for every day
// between the first and last observation of each (item, place) group. Lag and
// rolling windows require contiguous daily series.
func FillMissingDays(series []models.DemandObservation) []models.DemandObservation {
	groups := GroupSeries(series)

	filled := make([]models.DemandObservation, 0, len(series))
	for key, obs := range groups {
		byDay := make(map[int64]models.DemandObservation, len(obs))
		var minDay, maxDay time.Time
		for i, o := range obs {
			byDay[truncateDay(o.Date).Unix()] = o
			if i == 0 || o.Date.Before(minDay) {
				minDay = truncateDay(o.Date)
			}
			if i == 0 || o.Date.After(maxDay) {
				maxDay = truncateDay(o.Date)
			}
		}

		lastPrice := 0.0
		for d := minDay; !d.After(maxDay); d = d.AddDate(0, 0, 1) {
			if o, ok := byDay[d.Unix()]; ok {
				if o.AvgPrice > 0 {
					lastPrice = o.AvgPrice
				}
				filled = append(filled, o)
				continue
			}
			filled = append(filled, models.DemandObservation{
				ItemID:   key.ItemID,
				PlaceID:  key.PlaceID,
				Date:     d,
				Demand:   0,
				AvgPrice: lastPrice,
			})
		}
	}

	SortSeries(filled)
	return filled
}

// GroupSeries splits a demand series into per-(item, place) groups, each
// sorted by date.
func GroupSeries(series []models.DemandObservation) map[GroupKey][]models.DemandObservation {
	groups := make(map[GroupKey][]models.DemandObservation)
	for _, obs := range series {
		k := GroupKey{ItemID: obs.ItemID, PlaceID: obs.PlaceID}
		groups[k] = append(groups[k], obs)
	}
	for k := range groups {
		g := groups[k]
		sort.Slice(g, func(i, j int) bool { return g[i].Date.Before(g[j].Date) })
		groups[k] = g
	}
	return groups
}

// SortSeries orders observations by (item, place, date).
func SortSeries(series []models.DemandObservation) {
	sort.Slice(series, func(i, j int) bool {
		if series[i].ItemID != series[j].ItemID {
			return series[i].ItemID < series[j].ItemID
		}
		if series[i].PlaceID != series[j].PlaceID {
			return series[i].PlaceID < series[j].PlaceID
		}
		return series[i].Date.Before(series[j].Date)
	})
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
