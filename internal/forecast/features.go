package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"demand-forecast-service/internal/models"
)

// Feature configuration. Mirrors the signals that proved predictive for
// per-item daily demand: short lags, a weekly cycle, and monthly seasonality.
var (
	lagPeriods     = []int{1, 2, 3, 7, 14, 30}
	rollingWindows = []int{7, 14, 30}
	emaAlphas      = []float64{0.3, 0.7}
)

const placeShareEpsilon = 1e-6

// Default count of distinct items assumed for a place with no history.
const coldStartPlaceItems = 5.0

// FeatureMatrix is an engineered feature set with a fixed, ordered column
// schema. The same schema is produced for the many-row training path and the
// single-row inference path.
type FeatureMatrix struct {
	Columns []string
	Rows    [][]float64
	Targets []float64
	Dates   []time.Time
	Keys    []GroupKey
}

// FeatureEngineer converts a clean demand series into feature rows. All
// lag, rolling and place-aggregate features for a row anchored at date T are
// computed from observations dated strictly before T; the fallback stats
// stand in where the series is too short.
type FeatureEngineer struct {
	itemPrices map[int64]float64
	menuItems  map[int64]models.MenuItem
	fallback   FallbackStats
	columns    []string
}

// NewFeatureEngineer builds an engineer bound to the catalog dimensions and
// the fallback statistics of one training run.
func NewFeatureEngineer(items []models.Item, menuItems []models.MenuItem, fallback FallbackStats) *FeatureEngineer {
	fe := &FeatureEngineer{
		itemPrices: make(map[int64]float64, len(items)),
		menuItems:  make(map[int64]models.MenuItem, len(menuItems)),
		fallback:   fallback,
	}
	for _, it := range items {
		fe.itemPrices[it.ID] = it.Price
	}
	for _, mi := range menuItems {
		fe.menuItems[mi.ID] = mi
	}
	fe.columns = fe.buildColumnList()
	return fe
}

// FeatureNames returns the ordered column schema.
func (fe *FeatureEngineer) FeatureNames() []string {
	out := make([]string, len(fe.columns))
	copy(out, fe.columns)
	return out
}

// Fallback returns the fallback stats this engineer was built with.
func (fe *FeatureEngineer) Fallback() FallbackStats {
	return fe.fallback
}

func (fe *FeatureEngineer) buildColumnList() []string {
	names := []string{
		"year", "month", "day_of_month", "day_of_week", "week_of_year",
		"quarter", "is_weekend", "is_month_start", "is_month_end",
		"month_sin", "month_cos", "day_of_week_sin", "day_of_week_cos",
		"demand_same_dow_prev_week",
		"place_total_demand", "place_unique_items",
		"place_demand_rolling_mean_7", "item_share_of_place",
		"item_base_price", "menu_price", "menu_status", "menu_purchases",
	}
	for _, lag := range lagPeriods {
		names = append(names, fmt.Sprintf("demand_lag_%d", lag))
	}
	for _, w := range rollingWindows {
		names = append(names, fmt.Sprintf("demand_rolling_mean_%d", w))
		names = append(names, fmt.Sprintf("demand_rolling_std_%d", w))
	}
	for _, alpha := range emaAlphas {
		names = append(names, fmt.Sprintf("demand_ema_%.1f", alpha))
	}
	sort.Strings(names)
	return names
}

// BuildTrainingMatrix expands a demand series into training rows for the
// given period. A row anchored at date T carries features from strictly
// before T and a label summing demand over the window starting at T:
// 1 day for daily, 7 days for weekly, the anchor's calendar month for
// monthly (anchored at month start). Rows without a complete label window
// are dropped.
func (fe *FeatureEngineer) BuildTrainingMatrix(series []models.DemandObservation, period string) (*FeatureMatrix, error) {
	if !isValidPeriod(period) {
		return nil, &ValidationError{Subject: "period", Errors: []string{fmt.Sprintf("unknown period %q", period)}}
	}

	filled := FillMissingDays(series)
	groups := GroupSeries(filled)
	placeIdx := buildPlaceIndex(filled)

	fm := &FeatureMatrix{Columns: fe.FeatureNames()}

	for key, group := range groups {
		demands := make([]float64, len(group))
		for i, obs := range group {
			demands[i] = obs.Demand
		}
		n := len(group)

		for i := 1; i < n; i++ {
			anchor := group[i].Date

			var label float64
			switch period {
			case models.PeriodDaily:
				label = demands[i]
			case models.PeriodWeekly:
				if i+7 > n {
					continue
				}
				label = floats.Sum(demands[i : i+7])
			case models.PeriodMonthly:
				if anchor.Day() != 1 {
					continue
				}
				days := daysInMonth(anchor)
				if i+days > n {
					continue
				}
				label = floats.Sum(demands[i : i+days])
			}

			row := fe.buildRow(key, anchor, demands[:i], placeIdx)
			fm.Rows = append(fm.Rows, row)
			fm.Targets = append(fm.Targets, label)
			fm.Dates = append(fm.Dates, anchor)
			fm.Keys = append(fm.Keys, key)
		}
	}

	if len(fm.Rows) == 0 {
		return nil, &InsufficientDataError{Reason: fmt.Sprintf("no usable training rows for period %q", period)}
	}

	fm.sortChronological()
	return fm, nil
}

// BuildInferenceRow constructs the feature row for one query using actual
// history, identical in schema and semantics to the training-time rows.
// Only observations dated strictly before the target date are used.
func (fe *FeatureEngineer) BuildInferenceRow(itemID, placeID int64, target time.Time, history []models.DemandObservation) []float64 {
	target = truncateDay(target)

	prior := make([]models.DemandObservation, 0, len(history))
	for _, obs := range history {
		if truncateDay(obs.Date).Before(target) {
			prior = append(prior, obs)
		}
	}

	key := GroupKey{ItemID: itemID, PlaceID: placeID}
	groups := GroupSeries(FillMissingDays(prior))
	placeIdx := buildPlaceIndex(prior)

	demands := make([]float64, 0, len(groups[key]))
	for _, obs := range groups[key] {
		demands = append(demands, obs.Demand)
	}

	return fe.buildRow(key, target, demands, placeIdx)
}

// BuildColdStartRow constructs the feature row for an (item, place) pair
// with no usable history, substituting global fallback statistics for every
// historical signal.
func (fe *FeatureEngineer) BuildColdStartRow(itemID, placeID int64, target time.Time) []float64 {
	target = truncateDay(target)
	f := fe.temporalFeatures(target)

	for _, lag := range lagPeriods {
		f[fmt.Sprintf("demand_lag_%d", lag)] = fe.fallback.AvgDemand
	}
	f["demand_same_dow_prev_week"] = fe.fallback.AvgDemand
	for _, w := range rollingWindows {
		f[fmt.Sprintf("demand_rolling_mean_%d", w)] = fe.fallback.AvgDemand
		f[fmt.Sprintf("demand_rolling_std_%d", w)] = fe.fallback.AvgDemand * 0.3
	}
	for _, alpha := range emaAlphas {
		f[fmt.Sprintf("demand_ema_%.1f", alpha)] = fe.fallback.AvgDemand
	}

	f["place_total_demand"] = fe.fallback.AvgPlaceDemand
	f["place_unique_items"] = coldStartPlaceItems
	f["place_demand_rolling_mean_7"] = fe.fallback.AvgPlaceDemand
	f["item_share_of_place"] = fe.fallback.AvgDemand / (fe.fallback.AvgPlaceDemand + placeShareEpsilon)

	fe.addItemFeatures(f, itemID)

	return fe.toRow(f)
}

// buildRow assembles one feature row for the key at the anchor date.
// demands must be the contiguous daily series for the group ending the day
// before the anchor; it may be empty.
func (fe *FeatureEngineer) buildRow(key GroupKey, anchor time.Time, demands []float64, placeIdx *placeIndex) []float64 {
	f := fe.temporalFeatures(anchor)
	n := len(demands)

	lagValue := func(lag int) float64 {
		if n >= lag {
			return demands[n-lag]
		}
		if n > 0 {
			return demands[n-1]
		}
		return fe.fallback.AvgDemand
	}

	for _, lag := range lagPeriods {
		f[fmt.Sprintf("demand_lag_%d", lag)] = lagValue(lag)
	}
	f["demand_same_dow_prev_week"] = lagValue(7)

	for _, w := range rollingWindows {
		window := demands
		if n > w {
			window = demands[n-w:]
		}
		meanName := fmt.Sprintf("demand_rolling_mean_%d", w)
		stdName := fmt.Sprintf("demand_rolling_std_%d", w)
		if len(window) == 0 {
			f[meanName] = fe.fallback.AvgDemand
			f[stdName] = fe.fallback.AvgDemand * 0.3
			continue
		}
		f[meanName] = stat.Mean(window, nil)
		if len(window) < 2 {
			f[stdName] = 0
		} else {
			f[stdName] = stat.StdDev(window, nil)
		}
	}

	for _, alpha := range emaAlphas {
		name := fmt.Sprintf("demand_ema_%.1f", alpha)
		if n == 0 {
			f[name] = fe.fallback.AvgDemand
			continue
		}
		ema := demands[0]
		for _, d := range demands[1:] {
			ema = alpha*d + (1-alpha)*ema
		}
		f[name] = ema
	}

	total, unique, rolling7 := placeIdx.priorDay(key.PlaceID, anchor)
	f["place_total_demand"] = total
	f["place_unique_items"] = unique
	f["place_demand_rolling_mean_7"] = rolling7
	f["item_share_of_place"] = lagValue(1) / (total + placeShareEpsilon)

	fe.addItemFeatures(f, key.ItemID)

	return fe.toRow(f)
}

func (fe *FeatureEngineer) temporalFeatures(t time.Time) map[string]float64 {
	dow := float64((int(t.Weekday()) + 6) % 7) // Monday=0
	month := float64(t.Month())
	_, isoWeek := t.ISOWeek()

	f := map[string]float64{
		"year":         float64(t.Year()),
		"month":        month,
		"day_of_month": float64(t.Day()),
		"day_of_week":  dow,
		"week_of_year": float64(isoWeek),
		"quarter":      float64((int(t.Month())-1)/3 + 1),
	}
	f["is_weekend"] = boolToFloat(dow >= 5)
	f["is_month_start"] = boolToFloat(t.Day() <= 3)
	f["is_month_end"] = boolToFloat(t.Day() >= 28)

	f["month_sin"] = math.Sin(2 * math.Pi * month / 12)
	f["month_cos"] = math.Cos(2 * math.Pi * month / 12)
	f["day_of_week_sin"] = math.Sin(2 * math.Pi * dow / 7)
	f["day_of_week_cos"] = math.Cos(2 * math.Pi * dow / 7)

	return f
}

func (fe *FeatureEngineer) addItemFeatures(f map[string]float64, itemID int64) {
	if price, ok := fe.itemPrices[itemID]; ok && price > 0 {
		f["item_base_price"] = price
	} else {
		f["item_base_price"] = fe.fallback.AvgPrice
	}

	if mi, ok := fe.menuItems[itemID]; ok {
		if mi.Price > 0 {
			f["menu_price"] = mi.Price
		} else {
			f["menu_price"] = fe.fallback.AvgPrice
		}
		f["menu_status"] = float64(mi.Status)
		f["menu_purchases"] = float64(mi.Purchases)
	} else {
		f["menu_price"] = fe.fallback.AvgPrice
		f["menu_status"] = 0
		f["menu_purchases"] = 0
	}
}

func (fe *FeatureEngineer) toRow(f map[string]float64) []float64 {
	row := make([]float64, len(fe.columns))
	for i, name := range fe.columns {
		row[i] = f[name]
	}
	return row
}

func (fm *FeatureMatrix) sortChronological() {
	idx := make([]int, len(fm.Rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if !fm.Dates[i].Equal(fm.Dates[j]) {
			return fm.Dates[i].Before(fm.Dates[j])
		}
		if fm.Keys[i].ItemID != fm.Keys[j].ItemID {
			return fm.Keys[i].ItemID < fm.Keys[j].ItemID
		}
		return fm.Keys[i].PlaceID < fm.Keys[j].PlaceID
	})

	rows := make([][]float64, len(idx))
	targets := make([]float64, len(idx))
	dates := make([]time.Time, len(idx))
	keys := make([]GroupKey, len(idx))
	for pos, i := range idx {
		rows[pos] = fm.Rows[i]
		targets[pos] = fm.Targets[i]
		dates[pos] = fm.Dates[i]
		keys[pos] = fm.Keys[i]
	}
	fm.Rows, fm.Targets, fm.Dates, fm.Keys = rows, targets, dates, keys
}

// placeIndex provides prior-day place-level aggregates.
type placeIndex struct {
	totals  map[int64]map[int64]float64
	uniques map[int64]map[int64]int
}

func buildPlaceIndex(series []models.DemandObservation) *placeIndex {
	pi := &placeIndex{
		totals:  make(map[int64]map[int64]float64),
		uniques: make(map[int64]map[int64]int),
	}
	items := make(map[int64]map[int64]map[int64]bool)

	for _, obs := range series {
		day := truncateDay(obs.Date).Unix()
		if pi.totals[obs.PlaceID] == nil {
			pi.totals[obs.PlaceID] = make(map[int64]float64)
			items[obs.PlaceID] = make(map[int64]map[int64]bool)
		}
		pi.totals[obs.PlaceID][day] += obs.Demand
		if items[obs.PlaceID][day] == nil {
			items[obs.PlaceID][day] = make(map[int64]bool)
		}
		if obs.Demand > 0 {
			items[obs.PlaceID][day][obs.ItemID] = true
		}
	}

	for placeID, byDay := range items {
		pi.uniques[placeID] = make(map[int64]int, len(byDay))
		for day, set := range byDay {
			pi.uniques[placeID][day] = len(set)
		}
	}
	return pi
}

// priorDay returns the place totals for the day before the anchor and the
// mean of the seven prior days' totals. Days without data count as zero for
// the point lookups and are skipped in the rolling mean.
func (pi *placeIndex) priorDay(placeID int64, anchor time.Time) (total, unique, rolling7 float64) {
	days := pi.totals[placeID]
	if days == nil {
		return 0, 0, 0
	}

	prior := truncateDay(anchor).AddDate(0, 0, -1).Unix()
	total = days[prior]
	unique = float64(pi.uniques[placeID][prior])

	var sum float64
	var count int
	for back := 1; back <= 7; back++ {
		d := truncateDay(anchor).AddDate(0, 0, -back).Unix()
		if v, ok := days[d]; ok {
			sum += v
			count++
		}
	}
	if count > 0 {
		rolling7 = sum / float64(count)
	}
	return total, unique, rolling7
}

func daysInMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
