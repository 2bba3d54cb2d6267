package reference

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/apartment-estimator/backend/pkg/logger"
)

// Provider holds the reference data needed to serve estimates. It is built
// once and shared read-only by all requests.
type Provider struct {
	cities    *CityTable
	artifacts map[Category]*ModelArtifact
}

func NewProvider(cities *CityTable, artifacts map[Category]*ModelArtifact) (*Provider, error) {
	if cities == nil {
		return nil, fmt.Errorf("%w: no city table", ErrArtifactMissing)
	}
	for _, cat := range Categories {
		if artifacts[cat] == nil {
			return nil, fmt.Errorf("%w: no model artifact for %s", ErrArtifactMissing, cat)
		}
	}
	return &Provider{cities: cities, artifacts: artifacts}, nil
}

// Load reads the city table from src and the model bundles from artifactsDir.
func Load(ctx context.Context, src CitySource, artifactsDir string) (*Provider, error) {
	cities, err := LoadCityTable(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to load city table: %w", err)
	}

	artifacts, err := LoadModelArtifacts(artifactsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load model artifacts: %w", err)
	}

	for _, cat := range Categories {
		a := artifacts[cat]
		logger.Info("Model artifact loaded",
			zap.String("category", string(cat)),
			zap.Int("columns", len(a.ExpectedColumns)),
			zap.Int("signed_errors", len(a.ErrorsSigned)),
			zap.Int("abs_errors", len(a.ErrorsAbs)),
		)
	}
	logger.Info("City table loaded", zap.Int("cities", cities.Len()))

	return NewProvider(cities, artifacts)
}

func (p *Provider) Cities() *CityTable {
	return p.cities
}

func (p *Provider) Artifact(cat Category) (*ModelArtifact, error) {
	a, ok := p.artifacts[cat]
	if !ok {
		return nil, fmt.Errorf("%w: no model artifact for %q", ErrArtifactMissing, cat)
	}
	return a, nil
}

// Schemas returns the expected column order of every loaded artifact.
func (p *Provider) Schemas() map[Category][]string {
	out := make(map[Category][]string, len(p.artifacts))
	for cat, a := range p.artifacts {
		out[cat] = a.ExpectedColumns
	}
	return out
}
