package forecast

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler standardizes features to zero mean and unit variance.
// Fit only on the training fold; the fitted parameters travel in the
// artifact so inference rows are scaled identically.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit computes per-column mean and standard deviation.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return &InsufficientDataError{Reason: "cannot fit scaler on empty matrix"}
	}
	cols := len(X[0])
	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)

	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || len(X) < 2 {
			std = 1
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return nil
}

// Transform returns a scaled copy of the matrix.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// TransformRow scales a single feature row.
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("scaler fitted on %d columns, got %d", len(s.Mean), len(row))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}
