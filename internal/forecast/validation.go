package forecast

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"demand-forecast-service/internal/models"
)

// DefaultMinHistoryDays is the historical depth below which a query is
// classified as cold start.
const DefaultMinHistoryDays = 7

// Fraction of bad rows tolerated before a lenient warning becomes an error.
const maxBadRowFraction = 0.05

// DataValidator gatekeeps data quality at each pipeline checkpoint. In strict
// mode the first violation is returned as a *ValidationError; in lenient mode
// all findings are accumulated into a Report and the caller decides.
type DataValidator struct {
	strict bool
	logger *zap.Logger
}

// NewDataValidator creates a validator. Pass strict=true to fail on the first
// violation instead of collecting a report.
func NewDataValidator(strict bool, logger *zap.Logger) *DataValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataValidator{strict: strict, logger: logger}
}

// ValidateOrders checks the raw orders snapshot.
func (v *DataValidator) ValidateOrders(orders []models.Order) (*Report, error) {
	report := &Report{Valid: true}

	if len(orders) == 0 {
		report.addError("orders: snapshot is empty")
		return v.finish("orders", report)
	}

	var badTimestamps, nullPlaces int
	for _, o := range orders {
		if o.Created.IsZero() || o.Created.Year() < 1970 {
			badTimestamps++
		}
		if o.PlaceID == 0 {
			nullPlaces++
		}
	}

	if badTimestamps > 0 {
		msg := fmt.Sprintf("orders: %d rows have unparsable created timestamps", badTimestamps)
		if float64(badTimestamps) > maxBadRowFraction*float64(len(orders)) {
			report.addError(msg)
		} else {
			report.addWarning(msg)
		}
	}
	if nullPlaces > 0 {
		msg := fmt.Sprintf("orders: %d rows have null place_id", nullPlaces)
		if float64(nullPlaces) > maxBadRowFraction*float64(len(orders)) {
			report.addError(msg)
		} else {
			report.addWarning(msg)
		}
	}

	return v.finish("orders", report)
}

// ValidateOrderItems checks the raw order line items snapshot.
func (v *DataValidator) ValidateOrderItems(items []models.OrderItem) (*Report, error) {
	report := &Report{Valid: true}

	if len(items) == 0 {
		report.addError("order_items: snapshot is empty")
		return v.finish("order_items", report)
	}

	var badQty, negPrice int
	for _, it := range items {
		if it.Quantity <= 0 {
			badQty++
		}
		if it.Price < 0 {
			negPrice++
		}
	}

	if badQty > 0 {
		msg := fmt.Sprintf("order_items: %d rows have non-positive quantity", badQty)
		if float64(badQty) > maxBadRowFraction*float64(len(items)) {
			report.addError(msg)
		} else {
			report.addWarning(msg)
		}
	}
	if negPrice > 0 {
		report.addWarning(fmt.Sprintf("order_items: %d rows have negative price", negPrice))
	}

	return v.finish("order_items", report)
}

// ValidateDemandDataset checks the constructed demand series against the
// snapshot's as-of cutoff. Future-dated demand indicates an upstream bug.
func (v *DataValidator) ValidateDemandDataset(series []models.DemandObservation, asOf time.Time) (*Report, error) {
	report := &Report{Valid: true}

	if len(series) == 0 {
		report.addError("demand: dataset is empty")
		return v.finish("demand", report)
	}

	seen := make(map[string]bool, len(series))
	var duplicates, futureDates, negative int
	cutoff := truncateDay(asOf)

	for _, obs := range series {
		k := fmt.Sprintf("%d/%d/%d", obs.ItemID, obs.PlaceID, truncateDay(obs.Date).Unix())
		if seen[k] {
			duplicates++
		}
		seen[k] = true

		if truncateDay(obs.Date).After(cutoff) {
			futureDates++
		}
		if obs.Demand < 0 {
			negative++
		}
	}

	if duplicates > 0 {
		report.addError(fmt.Sprintf("demand: %d duplicate (item_id, place_id, date) entries", duplicates))
	}
	if futureDates > 0 {
		report.addError(fmt.Sprintf("demand: %d rows dated after the as-of cutoff", futureDates))
	}
	if negative > 0 {
		report.addError(fmt.Sprintf("demand: %d rows have negative demand", negative))
	}

	return v.finish("demand", report)
}

// ValidatePredictionInputs checks a single prediction query. Each violation is
// reported with a distinct message so the caller can identify the bad field.
func (v *DataValidator) ValidatePredictionInputs(itemID, placeID int64, date, period string) (*Report, error) {
	report := &Report{Valid: true}

	if itemID <= 0 {
		report.addError(fmt.Sprintf("item_id must be a positive integer, got %d", itemID))
	}
	if placeID <= 0 {
		report.addError(fmt.Sprintf("place_id must be a positive integer, got %d", placeID))
	}

	if parsed, err := time.Parse("2006-01-02", date); err != nil {
		report.addError(fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", date))
	} else if parsed.After(time.Now().AddDate(1, 0, 0)) {
		report.addWarning("prediction date is more than 1 year in the future")
	}

	if !isValidPeriod(period) {
		report.addError(fmt.Sprintf("period must be one of %v, got %q", models.ValidPeriods, period))
	}

	return v.finish("prediction inputs", report)
}

// ClassifyHistory reports whether the (item, place) pair has enough
// historical depth, and how many distinct days exist. Fewer than minDays is a
// cold start; this is an expected branch, not an error.
func (v *DataValidator) ClassifyHistory(series []models.DemandObservation, itemID, placeID int64, minDays int) (coldStart bool, days int) {
	if minDays <= 0 {
		minDays = DefaultMinHistoryDays
	}

	distinct := make(map[int64]bool)
	for _, obs := range series {
		if obs.ItemID == itemID && obs.PlaceID == placeID {
			distinct[truncateDay(obs.Date).Unix()] = true
		}
	}

	days = len(distinct)
	if days < minDays {
		v.logger.Warn("Cold start classification",
			zap.Int64("item_id", itemID),
			zap.Int64("place_id", placeID),
			zap.Int("history_days", days),
			zap.Int("min_days", minDays))
		return true, days
	}
	return false, days
}

func (v *DataValidator) finish(subject string, report *Report) (*Report, error) {
	for _, w := range report.Warnings {
		v.logger.Warn("Validation warning", zap.String("subject", subject), zap.String("detail", w))
	}
	for _, e := range report.Errors {
		v.logger.Error("Validation error", zap.String("subject", subject), zap.String("detail", e))
	}
	if v.strict && !report.Valid {
		return report, &ValidationError{Subject: subject, Errors: report.Errors}
	}
	return report, nil
}

func isValidPeriod(period string) bool {
	for _, p := range models.ValidPeriods {
		if p == period {
			return true
		}
	}
	return false
}
