package model

import "fmt"

// Linear is an ordinary least squares style model: intercept + w·x.
type Linear struct {
	intercept float64
	weights   []float64
}

// NewLinear resolves named coefficients onto column positions. Columns without
// a coefficient get weight 0; a coefficient for a column the model was not
// trained on is rejected.
func NewLinear(intercept float64, coefficients map[string]float64, columns []string) (*Linear, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: linear model without columns", ErrMalformedModel)
	}

	index := make(map[string]int, len(columns))
	for i, col := range columns {
		index[col] = i
	}

	weights := make([]float64, len(columns))
	for name, w := range coefficients {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: coefficient for unknown column %q", ErrMalformedModel, name)
		}
		weights[i] = w
	}

	return &Linear{intercept: intercept, weights: weights}, nil
}

func (m *Linear) Predict(features []float64) (float64, error) {
	if err := checkDimension(m, features); err != nil {
		return 0, err
	}

	y := m.intercept
	for i, x := range features {
		y += m.weights[i] * x
	}
	return y, nil
}

func (m *Linear) NumFeatures() int {
	return len(m.weights)
}
