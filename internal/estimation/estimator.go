package estimation

import (
	"errors"
	"fmt"
	"math"

	"github.com/apartment-estimator/backend/internal/reference"
	"github.com/apartment-estimator/backend/internal/stats"
)

var (
	ErrPrediction            = errors.New("model prediction failed")
	ErrInsufficientErrorData = errors.New("insufficient error data for confidence bounds")
	ErrInvalidArea           = errors.New("area must be positive")
	// ErrOutOfRange means the inputs drove the model beyond any representable
	// price, e.g. an absurd area.
	ErrOutOfRange = errors.New("estimate outside representable price range")
)

// Quantiles of the signed error sample that delimit the 90% band.
const (
	LowerQuantile = 0.05
	UpperQuantile = 0.95
)

// Result is a price estimate with its 90% confidence bounds, in price space.
type Result struct {
	Point float64 `json:"point"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Estimate applies the artifact's model to a vector aligned with its expected
// columns. The model predicts log(price); the bounds divide the point estimate
// by exp of the 95th and 5th percentile of the signed log errors
// log(predicted/actual), so an over-predicting model pulls the lower bound down.
func Estimate(a *reference.ModelArtifact, vector []float64) (Result, error) {
	if len(a.ErrorsSigned) < 2 {
		return Result{}, fmt.Errorf("%w: %s has %d signed error samples",
			ErrInsufficientErrorData, a.Category, len(a.ErrorsSigned))
	}

	logPrediction, err := predict(a, vector)
	if err != nil {
		return Result{}, err
	}

	point := math.Exp(logPrediction)
	if math.IsInf(point, 0) || point == 0 {
		return Result{}, fmt.Errorf("%w: %s log prediction %g, check the submitted values", ErrOutOfRange, a.Category, logPrediction)
	}

	q := stats.Quantiles(a.ErrorsSigned, LowerQuantile, UpperQuantile)
	q05, q95 := q[0], q[1]

	return Result{
		Point: point,
		Lower: point / math.Exp(q95),
		Upper: point / math.Exp(q05),
	}, nil
}

// predict converts a panicking model into ErrPrediction.
func predict(a *reference.ModelArtifact, vector []float64) (y float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s model panicked: %v", ErrPrediction, a.Category, r)
		}
	}()

	if len(vector) != len(a.ExpectedColumns) {
		return 0, fmt.Errorf("%w: %s vector has %d values, schema has %d columns",
			ErrPrediction, a.Category, len(vector), len(a.ExpectedColumns))
	}

	y, err = a.Model.Predict(vector)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrPrediction, a.Category, err)
	}
	if math.IsNaN(y) {
		return 0, fmt.Errorf("%w: %s model returned NaN", ErrPrediction, a.Category)
	}
	return y, nil
}
