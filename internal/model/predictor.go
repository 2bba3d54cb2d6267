// Package model evaluates pre-fit regression models exported by the offline
// training process. Models predict the natural logarithm of a price.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrDimensionMismatch = errors.New("feature vector length does not match model")
	ErrUnknownModelType  = errors.New("unknown model type")
	ErrMalformedModel    = errors.New("malformed model definition")
)

// Predictor is a trained regression model. Predict takes a vector positionally
// aligned with the model's training columns and returns a log-space value.
type Predictor interface {
	Predict(features []float64) (float64, error)
	NumFeatures() int
}

// Spec is the serialized form of a model as it appears in an artifact bundle.
type Spec struct {
	Type string `json:"type"`

	// linear
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients,omitempty"`

	// tree_ensemble
	Aggregation string     `json:"aggregation,omitempty"`
	BaseScore   float64    `json:"base_score"`
	Trees       []TreeSpec `json:"trees,omitempty"`
}

type TreeSpec struct {
	Nodes []Node `json:"nodes"`
}

// Decode builds a Predictor from raw JSON, binding it to the training columns.
// Linear coefficients are keyed by column name; tree nodes address features by
// their position in columns.
func Decode(raw json.RawMessage, columns []string) (Predictor, error) {
	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModel, err)
	}

	switch spec.Type {
	case "linear":
		return NewLinear(spec.Intercept, spec.Coefficients, columns)
	case "tree_ensemble":
		return NewTreeEnsemble(spec.Aggregation, spec.BaseScore, spec.Trees, len(columns))
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedModel)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModelType, spec.Type)
	}
}

func checkDimension(p Predictor, features []float64) error {
	if len(features) != p.NumFeatures() {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(features), p.NumFeatures())
	}
	return nil
}
