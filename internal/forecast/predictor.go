package forecast

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"demand-forecast-service/internal/models"
)

// DemandPredictor answers single prediction queries against a trained
// artifact. It is read-only: safe for unlimited concurrent callers.
type DemandPredictor struct {
	artifact       *Artifact
	engineer       *FeatureEngineer
	validator      *DataValidator
	history        []models.DemandObservation
	minHistoryDays int
	logger         *zap.Logger
}

// NewDemandPredictor binds an artifact to the demand history used for
// feature reconstruction. An empty history makes every query a cold start.
func NewDemandPredictor(artifact *Artifact, engineer *FeatureEngineer, history []models.DemandObservation, minHistoryDays int, logger *zap.Logger) *DemandPredictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minHistoryDays <= 0 {
		minHistoryDays = DefaultMinHistoryDays
	}
	return &DemandPredictor{
		artifact:       artifact,
		engineer:       engineer,
		validator:      NewDataValidator(false, logger),
		history:        history,
		minHistoryDays: minHistoryDays,
		logger:         logger,
	}
}

// Predict answers one query. Cold start is an expected branch with its own
// success shape, never an error.
func (p *DemandPredictor) Predict(q models.PredictionQuery) (*models.PredictionResult, error) {
	period := q.Period
	if period == "" {
		period = p.artifact.Period
	}

	report, _ := p.validator.ValidatePredictionInputs(q.ItemID, q.PlaceID, q.Date, period)
	if !report.Valid {
		return nil, &ValidationError{Subject: "prediction inputs", Errors: report.Errors}
	}

	date, err := time.Parse("2006-01-02", q.Date)
	if err != nil {
		return nil, &ValidationError{Subject: "prediction inputs", Errors: []string{fmt.Sprintf("invalid date %q", q.Date)}}
	}

	coldStart, historyDays := p.validator.ClassifyHistory(p.history, q.ItemID, q.PlaceID, p.minHistoryDays)

	var row []float64
	if coldStart {
		row = p.engineer.BuildColdStartRow(q.ItemID, q.PlaceID, date)
	} else {
		row = p.engineer.BuildInferenceRow(q.ItemID, q.PlaceID, date, p.history)
	}

	aligned, err := p.alignToSchema(row)
	if err != nil {
		return nil, err
	}

	scaled, err := p.artifact.Scaler.TransformRow(aligned)
	if err != nil {
		return nil, &SchemaMismatchError{Detail: err.Error()}
	}

	raw, err := p.artifact.PredictRaw(scaled)
	if err != nil {
		return nil, err
	}
	predicted := math.Max(raw, 0)

	rescaled := false
	units := fmt.Sprintf("total %s demand", period)
	if period != p.artifact.Period {
		predicted = scalePeriod(predicted, p.artifact.Period, period, date)
		rescaled = true
		units = fmt.Sprintf("total %s demand (approximate: linearly rescaled from a %s-trained model)", period, p.artifact.Period)
		p.logger.Warn("Requested period differs from trained granularity; applying linear rescale",
			zap.String("trained", p.artifact.Period),
			zap.String("requested", period))
	}

	p.logger.Debug("Prediction served",
		zap.Int64("item_id", q.ItemID),
		zap.Int64("place_id", q.PlaceID),
		zap.String("date", q.Date),
		zap.Bool("cold_start", coldStart),
		zap.Int("history_days", historyDays),
		zap.Float64("predicted", predicted))

	return &models.PredictionResult{
		ItemID:          q.ItemID,
		PlaceID:         q.PlaceID,
		Date:            q.Date,
		Period:          period,
		PredictedDemand: predicted,
		IsColdStart:     coldStart,
		ModelType:       p.artifact.ModelType,
		Units:           units,
		PeriodRescaled:  rescaled,
	}, nil
}

// alignToSchema reorders the engineered row into the artifact's recorded
// training schema. Any divergence is fatal: it means training and inference
// code disagree about the feature set.
func (p *DemandPredictor) alignToSchema(row []float64) ([]float64, error) {
	produced := p.engineer.FeatureNames()
	if len(row) != len(produced) {
		return nil, &SchemaMismatchError{Detail: fmt.Sprintf("engineer produced %d values for %d columns", len(row), len(produced))}
	}

	byName := make(map[string]float64, len(produced))
	for i, name := range produced {
		byName[name] = row[i]
	}

	var missing []string
	aligned := make([]float64, len(p.artifact.FeatureNames))
	for i, name := range p.artifact.FeatureNames {
		v, ok := byName[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		aligned[i] = v
		delete(byName, name)
	}

	var extra []string
	for name := range byName {
		extra = append(extra, name)
	}

	if len(missing) > 0 || len(extra) > 0 {
		return nil, &SchemaMismatchError{Missing: missing, Extra: extra}
	}
	return aligned, nil
}

// scalePeriod converts a prediction between period granularities with a
// linear factor. This is a documented approximation: it ignores within-period
// autocorrelation and is inferior to a natively trained artifact for the
// requested period.
func scalePeriod(prediction float64, from, to string, date time.Time) float64 {
	if from == to {
		return prediction
	}
	dim := float64(daysInMonth(date))

	factors := map[[2]string]float64{
		{models.PeriodDaily, models.PeriodWeekly}:   7,
		{models.PeriodDaily, models.PeriodMonthly}:  dim,
		{models.PeriodWeekly, models.PeriodDaily}:   1.0 / 7,
		{models.PeriodWeekly, models.PeriodMonthly}: dim / 7,
		{models.PeriodMonthly, models.PeriodDaily}:  1.0 / dim,
		{models.PeriodMonthly, models.PeriodWeekly}: 7 / dim,
	}

	if f, ok := factors[[2]string{from, to}]; ok {
		return prediction * f
	}
	return prediction
}
