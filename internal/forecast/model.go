package forecast

import (
	"fmt"

	"demand-forecast-service/internal/models"
)

// DefaultSeed keeps repeated training runs on the same snapshot reproducible.
const DefaultSeed int64 = 42

// Regressor is the uniform capability contract every model variant fulfils.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) float64
}

// gainReporter is implemented by learners that track per-feature split gain.
type gainReporter interface {
	FeatureGain() []float64
}

// NewMemberSet instantiates the learner(s) for a model type. The ensemble
// type is a composite: all three members are trained and their predictions
// averaged at inference time.
func NewMemberSet(modelType string, seed int64) (map[string]Regressor, error) {
	switch modelType {
	case models.ModelXGBoost:
		return map[string]Regressor{
			models.ModelXGBoost: NewGradientBoost(BoostPresetA(seed)),
		}, nil
	case models.ModelLightGBM:
		return map[string]Regressor{
			models.ModelLightGBM: NewGradientBoost(BoostPresetB(seed + 1)),
		}, nil
	case models.ModelRandomForest:
		return map[string]Regressor{
			models.ModelRandomForest: NewRandomForest(ForestPreset(seed + 2)),
		}, nil
	case models.ModelEnsemble:
		return map[string]Regressor{
			models.ModelXGBoost:      NewGradientBoost(BoostPresetA(seed)),
			models.ModelLightGBM:     NewGradientBoost(BoostPresetB(seed + 1)),
			models.ModelRandomForest: NewRandomForest(ForestPreset(seed + 2)),
		}, nil
	default:
		return nil, &ValidationError{
			Subject: "model_type",
			Errors:  []string{fmt.Sprintf("model_type must be one of %v, got %q", models.ValidModelTypes, modelType)},
		}
	}
}

// ModelEnvelope is the serializable form of one fitted member. The kind tag
// selects which concrete learner is populated.
type ModelEnvelope struct {
	Kind   string         `json:"kind"`
	Boost  *GradientBoost `json:"boost,omitempty"`
	Forest *RandomForest  `json:"forest,omitempty"`
}

const (
	envelopeKindBoost  = "gradient_boost"
	envelopeKindForest = "random_forest"
)

// WrapModel converts a fitted regressor into its serializable envelope.
func WrapModel(r Regressor) (*ModelEnvelope, error) {
	switch m := r.(type) {
	case *GradientBoost:
		return &ModelEnvelope{Kind: envelopeKindBoost, Boost: m}, nil
	case *RandomForest:
		return &ModelEnvelope{Kind: envelopeKindForest, Forest: m}, nil
	default:
		return nil, fmt.Errorf("unsupported regressor type %T", r)
	}
}

// Regressor returns the concrete learner held by the envelope.
func (e *ModelEnvelope) Regressor() (Regressor, error) {
	switch e.Kind {
	case envelopeKindBoost:
		if e.Boost == nil {
			return nil, fmt.Errorf("envelope kind %q has no payload", e.Kind)
		}
		return e.Boost, nil
	case envelopeKindForest:
		if e.Forest == nil {
			return nil, fmt.Errorf("envelope kind %q has no payload", e.Kind)
		}
		return e.Forest, nil
	default:
		return nil, fmt.Errorf("unknown model envelope kind %q", e.Kind)
	}
}
