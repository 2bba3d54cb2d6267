// Package features turns submitted form input into the ordered numeric
// vectors the price models were trained on.
package features

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/apartment-estimator/backend/internal/reference"
	"github.com/apartment-estimator/backend/pkg/logger"
)

var (
	ErrUnknownCity   = errors.New("unknown city")
	ErrInvalidNumber = errors.New("invalid number")
)

// RawInput is the submitted form, field name to raw value. A checkbox that was
// not ticked is simply absent.
type RawInput map[string]string

type CityLookup interface {
	Lookup(name string) (reference.City, bool)
}

type Location struct {
	Mode      string  `json:"mode"`
	City      string  `json:"city,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Features is the named feature mapping built from one RawInput.
type Features struct {
	Values   map[string]float64
	Category string
	Location Location
}

func (f *Features) Area() float64 {
	return f.Values[FeatureArea]
}

// Projection is a feature vector aligned position by position with a model's
// expected columns.
type Projection struct {
	Category reference.Category
	Columns  []string
	Vector   []float64
	// Missing lists expected columns that the input did not produce; their
	// positions hold 0.
	Missing []string
}

type Builder struct {
	cities  CityLookup
	schemas map[reference.Category][]string
	mapping Mapping
}

func NewBuilder(cities CityLookup, schemas map[reference.Category][]string, mapping Mapping) *Builder {
	if mapping == nil {
		mapping = DefaultMapping
	}
	return &Builder{cities: cities, schemas: schemas, mapping: mapping}
}

func (b *Builder) Mapping() Mapping {
	return b.mapping
}

// CheckSchemas reports, per category, the expected columns the mapping never
// produces. Each is logged once at Warn.
func (b *Builder) CheckSchemas() map[reference.Category][]string {
	out := make(map[reference.Category][]string)
	for _, cat := range reference.Categories {
		unproduced := b.mapping.Unproduced(b.schemas[cat])
		if len(unproduced) == 0 {
			continue
		}
		out[cat] = unproduced
		logger.Warn("Model expects columns the form never produces",
			zap.String("category", string(cat)),
			zap.Strings("columns", unproduced),
		)
	}
	return out
}

// Build produces the vector for one price category.
func (b *Builder) Build(raw RawInput, cat reference.Category) (*Projection, error) {
	f, err := b.Features(raw)
	if err != nil {
		return nil, err
	}
	return b.Project(f, cat)
}

// Features resolves location, parses numerics and expands the category and
// flag selections into one named mapping.
func (b *Builder) Features(raw RawInput) (*Features, error) {
	loc, err := b.resolveLocation(raw)
	if err != nil {
		return nil, err
	}

	values := make(map[string]float64, len(b.mapping)+2)
	values[FeatureLatitude] = loc.Latitude
	values[FeatureLongitude] = loc.Longitude

	category := CategoryUnknown
	for _, rule := range b.mapping {
		switch rule.Kind {
		case KindNumeric:
			v, err := parseNumber(raw, rule.Field)
			if err != nil {
				return nil, err
			}
			values[rule.Feature] = v
		case KindOneHot:
			if raw[rule.Field] == rule.Value {
				values[rule.Feature] = 1
				category = rule.Value
			} else {
				values[rule.Feature] = 0
			}
		case KindFlag:
			if IsTruthy(raw[rule.Field]) {
				values[rule.Feature] = 1
			} else {
				values[rule.Feature] = 0
			}
		}
	}

	if category == CategoryUnknown {
		logger.Warn("Unrecognized category, one-hot encoding left all zero",
			zap.String("category", raw[FieldCategory]),
		)
	}

	return &Features{Values: values, Category: category, Location: loc}, nil
}

// Project aligns f with the expected columns of cat. Columns absent from f are
// set to 0 and logged; this degrades accuracy but never fails.
func (b *Builder) Project(f *Features, cat reference.Category) (*Projection, error) {
	columns, ok := b.schemas[cat]
	if !ok {
		return nil, fmt.Errorf("%w: no feature schema for %q", reference.ErrArtifactMissing, cat)
	}

	vector, missing := Project(f.Values, columns)
	for _, col := range missing {
		logger.Warn("Feature column not found in form input, value set to 0",
			zap.String("column", col),
			zap.String("category", string(cat)),
		)
	}

	return &Projection{Category: cat, Columns: columns, Vector: vector, Missing: missing}, nil
}

// Project lays values out in columns order, substituting 0 for absent names.
func Project(values map[string]float64, columns []string) ([]float64, []string) {
	vector := make([]float64, len(columns))
	var missing []string
	for i, col := range columns {
		v, ok := values[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		vector[i] = v
	}
	return vector, missing
}

func (b *Builder) resolveLocation(raw RawInput) (Location, error) {
	if raw[FieldLocationMode] == LocationByCity {
		name := raw[FieldCity]
		city, ok := b.cities.Lookup(name)
		if !ok {
			return Location{}, fmt.Errorf("%w: %q", ErrUnknownCity, name)
		}
		return Location{
			Mode:      LocationByCity,
			City:      city.Name,
			Latitude:  city.Latitude,
			Longitude: city.Longitude,
		}, nil
	}

	lat, err := parseNumber(raw, FieldLatitude)
	if err != nil {
		return Location{}, err
	}
	lon, err := parseNumber(raw, FieldLongitude)
	if err != nil {
		return Location{}, err
	}
	return Location{Mode: LocationByCoordinates, Latitude: lat, Longitude: lon}, nil
}

func parseNumber(raw RawInput, field string) (float64, error) {
	s, ok := raw[field]
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidNumber, field)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidNumber, field, s)
	}
	return v, nil
}

// IsTruthy reports whether a checkbox value counts as ticked.
func IsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes", "y":
		return true
	default:
		return false
	}
}
