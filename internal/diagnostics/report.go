// Package diagnostics summarizes the stored out-of-sample error distributions
// of the loaded model artifacts.
package diagnostics

import (
	"math"

	"go.uber.org/zap"

	"github.com/apartment-estimator/backend/internal/estimation"
	"github.com/apartment-estimator/backend/internal/reference"
	"github.com/apartment-estimator/backend/internal/stats"
	"github.com/apartment-estimator/backend/pkg/logger"
)

type ArtifactReport struct {
	Category string `json:"category"`
	Columns  int    `json:"columns"`
	Checksum string `json:"checksum"`

	AbsSamples       int     `json:"abs_samples"`
	MeanAbsError     float64 `json:"mean_abs_error"`
	MedianAbsError   float64 `json:"median_abs_error"`
	AbsErrorP90      float64 `json:"abs_error_p90"`
	SignedSamples    int     `json:"signed_samples"`
	SignedQ05        float64 `json:"signed_q05"`
	SignedQ95        float64 `json:"signed_q95"`
	MeanSignedError  float64 `json:"mean_signed_error"`
	LowerBoundFactor float64 `json:"lower_bound_factor"`
	UpperBoundFactor float64 `json:"upper_bound_factor"`
	BoundsUsable     bool    `json:"bounds_usable"`
}

// Summarize reports error statistics for one artifact. The bound factors are
// the multipliers Estimate applies to a point estimate.
func Summarize(a *reference.ModelArtifact) ArtifactReport {
	r := ArtifactReport{
		Category:      string(a.Category),
		Columns:       len(a.ExpectedColumns),
		Checksum:      a.Checksum,
		AbsSamples:    len(a.ErrorsAbs),
		SignedSamples: len(a.ErrorsSigned),
	}

	if len(a.ErrorsAbs) > 0 {
		r.MeanAbsError = stats.Mean(a.ErrorsAbs)
		r.MedianAbsError = stats.Median(a.ErrorsAbs)
		r.AbsErrorP90 = stats.Percentile(a.ErrorsAbs, 90)
	}

	if len(a.ErrorsSigned) >= 2 {
		q := stats.Quantiles(a.ErrorsSigned, estimation.LowerQuantile, estimation.UpperQuantile)
		r.SignedQ05, r.SignedQ95 = q[0], q[1]
		r.MeanSignedError = stats.Mean(a.ErrorsSigned)
		r.LowerBoundFactor = 1 / math.Exp(r.SignedQ95)
		r.UpperBoundFactor = 1 / math.Exp(r.SignedQ05)
		r.BoundsUsable = r.LowerBoundFactor <= r.UpperBoundFactor
	}

	return r
}

// SummarizeProvider reports every artifact in estimation order.
func SummarizeProvider(p *reference.Provider) []ArtifactReport {
	var reports []ArtifactReport
	for _, cat := range reference.Categories {
		a, err := p.Artifact(cat)
		if err != nil {
			logger.Warn("Artifact unavailable for diagnostics", zap.String("category", string(cat)), zap.Error(err))
			continue
		}
		r := Summarize(a)
		logger.Debug("Artifact summarized",
			zap.String("category", r.Category),
			zap.Float64("median_abs_error", r.MedianAbsError),
			zap.Float64("signed_q05", r.SignedQ05),
			zap.Float64("signed_q95", r.SignedQ95),
		)
		reports = append(reports, r)
	}
	return reports
}
