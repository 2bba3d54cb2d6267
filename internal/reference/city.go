package reference

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// City is one row of the static city-to-coordinate table.
type City struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CitySource yields the reference city table from some static storage.
type CitySource interface {
	ListCities(ctx context.Context) ([]City, error)
}

// CityTable is a read-only exact-match index over the reference cities.
type CityTable struct {
	cities []City
	byName map[string]int
}

func NewCityTable(cities []City) (*CityTable, error) {
	if len(cities) == 0 {
		return nil, fmt.Errorf("%w: city table is empty", ErrArtifactMissing)
	}

	t := &CityTable{
		cities: make([]City, len(cities)),
		byName: make(map[string]int, len(cities)),
	}
	copy(t.cities, cities)

	for i, c := range t.cities {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: city table row %d has no name", ErrArtifactMissing, i+1)
		}
		if _, dup := t.byName[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate city %q", ErrArtifactMissing, c.Name)
		}
		t.byName[c.Name] = i
	}
	return t, nil
}

// Lookup matches the name exactly, without trimming or case folding.
func (t *CityTable) Lookup(name string) (City, bool) {
	i, ok := t.byName[name]
	if !ok {
		return City{}, false
	}
	return t.cities[i], true
}

// All returns the cities in table order. The slice is a copy.
func (t *CityTable) All() []City {
	out := make([]City, len(t.cities))
	copy(out, t.cities)
	return out
}

func (t *CityTable) Names() []string {
	names := make([]string, len(t.cities))
	for i, c := range t.cities {
		names[i] = c.Name
	}
	return names
}

func (t *CityTable) Len() int {
	return len(t.cities)
}

// CSVSource reads a CSV file with a header containing City, Latitude and
// Longitude columns (in any order).
type CSVSource struct {
	Path string
}

func (s CSVSource) ListCities(ctx context.Context) ([]City, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open city table: %v", ErrArtifactMissing, err)
	}
	defer f.Close()

	cities, err := ReadCitiesCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return cities, nil
}

func ReadCitiesCSV(r io.Reader) ([]City, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read city header: %v", ErrArtifactMissing, err)
	}

	cols := map[string]int{"City": -1, "Latitude": -1, "Longitude": -1}
	for i, h := range header {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		if _, ok := cols[h]; ok {
			cols[h] = i
		}
	}
	for name, i := range cols {
		if i < 0 {
			return nil, fmt.Errorf("%w: city table has no %s column", ErrArtifactMissing, name)
		}
	}

	var cities []City
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: city table line %d: %v", ErrArtifactMissing, line, err)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(record[cols["Latitude"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: city table line %d: latitude: %v", ErrArtifactMissing, line, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(record[cols["Longitude"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: city table line %d: longitude: %v", ErrArtifactMissing, line, err)
		}

		cities = append(cities, City{
			Name:      record[cols["City"]],
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return cities, nil
}

// LoadCityTable reads a city table from any source and indexes it.
func LoadCityTable(ctx context.Context, src CitySource) (*CityTable, error) {
	cities, err := src.ListCities(ctx)
	if err != nil {
		return nil, err
	}
	return NewCityTable(cities)
}
