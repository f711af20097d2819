package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-forecast-service/internal/models"
)

// stepData is a clean threshold signal any tree learner must recover.
func stepData() ([][]float64, []float64) {
	X := make([][]float64, 100)
	y := make([]float64, 100)
	for i := range X {
		X[i] = []float64{float64(i), float64(i % 3)}
		if i >= 50 {
			y[i] = 10
		}
	}
	return X, y
}

func TestGradientBoostLearnsStepFunction(t *testing.T) {
	X, y := stepData()

	g := NewGradientBoost(BoostPresetB(DefaultSeed))
	require.NoError(t, g.Fit(X, y))

	assert.InDelta(t, 0.0, g.Predict([]float64{25, 1}), 1.0)
	assert.InDelta(t, 10.0, g.Predict([]float64{75, 0}), 1.0)
}

func TestRandomForestLearnsStepFunction(t *testing.T) {
	X, y := stepData()

	f := NewRandomForest(ForestPreset(DefaultSeed))
	require.NoError(t, f.Fit(X, y))

	assert.InDelta(t, 0.0, f.Predict([]float64{25, 1}), 1.5)
	assert.InDelta(t, 10.0, f.Predict([]float64{75, 0}), 1.5)
}

func TestFittingIsDeterministic(t *testing.T) {
	X, y := stepData()

	a := NewGradientBoost(BoostPresetA(DefaultSeed))
	b := NewGradientBoost(BoostPresetA(DefaultSeed))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	probe := []float64{42, 2}
	assert.Equal(t, a.Predict(probe), b.Predict(probe))
}

func TestFeatureGainConcentratesOnSplitFeature(t *testing.T) {
	X, y := stepData()

	g := NewGradientBoost(BoostPresetB(DefaultSeed))
	require.NoError(t, g.Fit(X, y))

	gain := g.FeatureGain()
	require.Len(t, gain, 2)
	assert.Greater(t, gain[0], gain[1], "the threshold feature must dominate")
}

func TestNewMemberSet(t *testing.T) {
	members, err := NewMemberSet(models.ModelEnsemble, DefaultSeed)
	require.NoError(t, err)
	assert.Len(t, members, 3)

	members, err = NewMemberSet(models.ModelXGBoost, DefaultSeed)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	_, err = NewMemberSet("bogus", DefaultSeed)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestModelEnvelopeRoundTrip(t *testing.T) {
	X, y := stepData()
	g := NewGradientBoost(BoostPresetB(DefaultSeed))
	require.NoError(t, g.Fit(X, y))

	env, err := WrapModel(g)
	require.NoError(t, err)
	assert.Equal(t, "gradient_boost", env.Kind)

	back, err := env.Regressor()
	require.NoError(t, err)
	assert.Equal(t, g.Predict([]float64{75, 0}), back.Predict([]float64{75, 0}))

	_, err = (&ModelEnvelope{Kind: "mystery"}).Regressor()
	assert.Error(t, err)
}
