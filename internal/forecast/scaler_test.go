package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalerFitTransform(t *testing.T) {
	X := [][]float64{{1, 10}, {2, 10}, {3, 10}}

	s := &StandardScaler{}
	require.NoError(t, s.Fit(X))

	assert.Equal(t, 2.0, s.Mean[0])
	assert.Equal(t, 1.0, s.Std[1], "constant columns keep std 1 to avoid division by zero")

	scaled, err := s.Transform(X)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, scaled[1][0], 1e-12)
	assert.InDelta(t, 0.0, scaled[0][1], 1e-12)
	assert.Equal(t, -scaled[0][0], scaled[2][0])
}

func TestScalerRejectsWrongWidth(t *testing.T) {
	s := &StandardScaler{}
	require.NoError(t, s.Fit([][]float64{{1, 2}, {3, 4}}))

	_, err := s.TransformRow([]float64{1})
	assert.Error(t, err)
}

func TestScalerEmptyMatrix(t *testing.T) {
	s := &StandardScaler{}
	var insErr *InsufficientDataError
	assert.ErrorAs(t, s.Fit(nil), &insErr)
}
