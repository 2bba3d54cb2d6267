package estimation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apartment-estimator/backend/internal/features"
	"github.com/apartment-estimator/backend/internal/geo"
	"github.com/apartment-estimator/backend/internal/metrics"
	"github.com/apartment-estimator/backend/internal/reference"
	"github.com/apartment-estimator/backend/pkg/logger"
	"github.com/apartment-estimator/backend/pkg/utils"
)

// Diagnostic codes reported alongside a successful estimate.
const (
	DiagMissingColumn   = "missing_feature_column"
	DiagUnknownCategory = "unknown_category"
	DiagOutsideRegion   = "outside_supported_region"
)

type Diagnostic struct {
	Code     string `json:"code"`
	Category string `json:"category,omitempty"`
	Column   string `json:"column,omitempty"`
	Message  string `json:"message"`
}

// Estimates is the cacheable part of a report: it depends only on the
// projected vectors.
type Estimates struct {
	Buy  Result `json:"buy"`
	Rent Result `json:"rent"`
}

// Cache stores Estimates by a hash of the projected vectors. Implementations
// must be safe for concurrent use.
type Cache interface {
	GetEstimates(ctx context.Context, key string) (*Estimates, bool, error)
	SetEstimates(ctx context.Context, key string, e *Estimates) error
}

type LocationInfo struct {
	features.Location
	NearestCity   string  `json:"nearest_city,omitempty"`
	NearestCityKm float64 `json:"nearest_city_km,omitempty"`
	InRegion      bool    `json:"in_region"`
}

type Report struct {
	ID          string            `json:"id"`
	Input       features.RawInput `json:"input"`
	Location    LocationInfo      `json:"location"`
	Category    string            `json:"category"`
	Area        float64           `json:"area"`
	Buy         Result            `json:"buy"`
	Rent        Result            `json:"rent"`
	Derived     DerivedMetrics    `json:"derived"`
	Diagnostics []Diagnostic      `json:"diagnostics"`
	Cached      bool              `json:"cached"`
}

type Service struct {
	provider *reference.Provider
	builder  *features.Builder
	cache    Cache
}

// NewService wires the pipeline. cache may be nil.
func NewService(provider *reference.Provider, builder *features.Builder, cache Cache) *Service {
	return &Service{provider: provider, builder: builder, cache: cache}
}

func (s *Service) Provider() *reference.Provider {
	return s.provider
}

func (s *Service) Mapping() features.Mapping {
	return s.builder.Mapping()
}

// Estimate runs the full pipeline for one submission: features, buy and rent
// estimates, and derived ratios.
func (s *Service) Estimate(ctx context.Context, raw features.RawInput) (report *Report, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.EstimationDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		metrics.EstimationsTotal.WithLabelValues(status).Inc()
	}()

	report = &Report{ID: uuid.New().String(), Input: raw, Diagnostics: []Diagnostic{}}
	log := logger.With(zap.String("estimate_id", report.ID))

	f, err := s.builder.Features(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to build features: %w", err)
	}
	report.Category = f.Category
	report.Area = f.Area()
	report.Location = s.describeLocation(f.Location)

	if f.Category == features.CategoryUnknown {
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Code:    DiagUnknownCategory,
			Message: fmt.Sprintf("category %q is not recognized; no category feature set", raw[features.FieldCategory]),
		})
	}
	if !report.Location.InRegion {
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Code:    DiagOutsideRegion,
			Message: "coordinates lie outside the region the models were trained on",
		})
	}

	projections := make(map[reference.Category]*features.Projection, len(reference.Categories))
	vectors := make([][]float64, 0, len(reference.Categories))
	checksums := ""
	for _, cat := range reference.Categories {
		a, err := s.provider.Artifact(cat)
		if err != nil {
			return nil, err
		}
		checksums += a.Checksum

		p, err := s.builder.Project(f, cat)
		if err != nil {
			return nil, err
		}
		for _, col := range p.Missing {
			metrics.MissingFeatureColumns.WithLabelValues(string(cat), col).Inc()
			report.Diagnostics = append(report.Diagnostics, Diagnostic{
				Code:     DiagMissingColumn,
				Category: string(cat),
				Column:   col,
				Message:  fmt.Sprintf("%s not found in form data, value set to 0", col),
			})
		}
		projections[cat] = p
		vectors = append(vectors, p.Vector)
	}

	key := utils.HashString(checksums + utils.HashVectors(vectors...))
	estimates, cached := s.lookup(ctx, key)
	if !cached {
		estimates = &Estimates{}
		for _, cat := range reference.Categories {
			a, err := s.provider.Artifact(cat)
			if err != nil {
				return nil, err
			}
			r, err := Estimate(a, projections[cat].Vector)
			if err != nil {
				return nil, fmt.Errorf("failed to estimate %s price: %w", cat, err)
			}
			if cat == reference.CategoryBuy {
				estimates.Buy = r
			} else {
				estimates.Rent = r
			}
		}
		s.store(ctx, key, estimates)
	}

	report.Buy = estimates.Buy
	report.Rent = estimates.Rent
	report.Cached = cached

	report.Derived, err = Derive(report.Buy, report.Rent, report.Area)
	if err != nil {
		return nil, err
	}

	log.Info("Estimate computed",
		zap.Float64("buy", report.Buy.Point),
		zap.Float64("rent", report.Rent.Point),
		zap.Bool("cached", cached),
		zap.Int("diagnostics", len(report.Diagnostics)),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func (s *Service) describeLocation(loc features.Location) LocationInfo {
	info := LocationInfo{
		Location: loc,
		InRegion: geo.SupportedRegion.Contains(loc.Latitude, loc.Longitude),
	}
	if loc.Mode == features.LocationByCoordinates {
		if c, d, ok := geo.Nearest(s.provider.Cities().All(), loc.Latitude, loc.Longitude); ok {
			info.NearestCity = c.Name
			info.NearestCityKm = d
		}
	}
	return info
}

func (s *Service) lookup(ctx context.Context, key string) (*Estimates, bool) {
	if s.cache == nil {
		return nil, false
	}
	e, ok, err := s.cache.GetEstimates(ctx, key)
	if err != nil {
		logger.Warn("Estimate cache lookup failed", zap.Error(err))
		return nil, false
	}
	if ok {
		metrics.CacheHits.WithLabelValues("estimates").Inc()
		return e, true
	}
	metrics.CacheMisses.WithLabelValues("estimates").Inc()
	return nil, false
}

func (s *Service) store(ctx context.Context, key string, e *Estimates) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetEstimates(ctx, key, e); err != nil {
		logger.Warn("Failed to cache estimate", zap.Error(err))
	}
}
