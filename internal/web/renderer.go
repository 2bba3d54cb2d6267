// Package web renders the HTML estimator form and result pages.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/apartment-estimator/backend/internal/estimation"
	"github.com/apartment-estimator/backend/internal/features"
	"github.com/apartment-estimator/backend/internal/geo"
)

//go:embed templates/*.html
var templateFS embed.FS

// Form input ranges.
const (
	AreaMin, AreaMax, AreaDefault    = 20, 180, 100
	RoomsMin, RoomsMax, RoomsDefault = 1, 7, 4
	YearMin, YearMax, YearDefault    = 1850, 2021, 2010
)

// flags ticked on a fresh form
var defaultFlags = map[string]bool{"Maintained": true, "Balcony": true}

type FlagField struct {
	Name    string
	Checked bool
}

type FlagGroup struct {
	Title  string
	Fields []FlagField
}

type formPage struct {
	Cities      []string
	DefaultCity string
	Categories  []string
	Groups      []FlagGroup
	Region      geo.Region
	AreaMin     int
	AreaMax     int
	AreaDefault int
	RoomsMin    int
	RoomsMax    int
	RoomsDef    int
	YearMin     int
	YearMax     int
	YearDefault int
}

type Row struct {
	Label string
	Value string
}

type EstimateRow struct {
	Label string
	Point string
	Lower string
	Upper string
}

type resultPage struct {
	ID            string
	Configuration []Row
	Estimates     []EstimateRow
	Ratios        []Row
	Notes         []string
}

type errorPage struct {
	Status  int
	Message string
}

type Renderer struct {
	tmpl    *template.Template
	format  Formatter
	mapping features.Mapping
}

func NewRenderer(locale string, mapping features.Mapping) (*Renderer, error) {
	f, err := NewFormatter(locale)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		mapping = features.DefaultMapping
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Renderer{tmpl: tmpl, format: f, mapping: mapping}, nil
}

func (r *Renderer) Formatter() Formatter {
	return r.format
}

// Form renders the input form with cities in table order and defaultCity
// preselected.
func (r *Renderer) Form(cities []string, defaultCity string) ([]byte, error) {
	page := formPage{
		Cities:      cities,
		DefaultCity: defaultCity,
		Categories:  r.mapping.Categories(),
		Region:      geo.SupportedRegion,
		AreaMin:     AreaMin,
		AreaMax:     AreaMax,
		AreaDefault: AreaDefault,
		RoomsMin:    RoomsMin,
		RoomsMax:    RoomsMax,
		RoomsDef:    RoomsDefault,
		YearMin:     YearMin,
		YearMax:     YearMax,
		YearDefault: YearDefault,
	}
	for _, group := range []string{"Condition", "Outdoor"} {
		g := FlagGroup{Title: group}
		for _, rule := range r.mapping.Flags(group) {
			g.Fields = append(g.Fields, FlagField{Name: rule.Field, Checked: defaultFlags[rule.Field]})
		}
		page.Groups = append(page.Groups, g)
	}
	return r.execute("form.html", page)
}

func (r *Renderer) Result(report *estimation.Report) ([]byte, error) {
	f := r.format
	page := resultPage{
		ID:            report.ID,
		Configuration: r.Configuration(report.Input),
		Estimates: []EstimateRow{
			{"Buy-price", f.Euro(report.Buy.Point), f.Euro(report.Buy.Lower), f.Euro(report.Buy.Upper)},
			{"Buy-price per Area", f.EuroPerArea(report.Derived.BuyPerArea.Point), f.EuroPerArea(report.Derived.BuyPerArea.Lower), f.EuroPerArea(report.Derived.BuyPerArea.Upper)},
			{"Rent-price", f.Euro(report.Rent.Point), f.Euro(report.Rent.Lower), f.Euro(report.Rent.Upper)},
			{"Rent-price per Area", f.EuroPerAreaFine(report.Derived.RentPerArea.Point), f.EuroPerAreaFine(report.Derived.RentPerArea.Lower), f.EuroPerAreaFine(report.Derived.RentPerArea.Upper)},
		},
		Ratios: []Row{
			{"Buy-to-Rent-ratio", f.Whole(report.Derived.BuyToRent)},
			{"Rent-to-Buy-ratio", f.Percent(report.Derived.RentToBuyPercent)},
		},
	}
	for _, d := range report.Diagnostics {
		page.Notes = append(page.Notes, d.Message)
	}
	if report.Location.NearestCity != "" {
		page.Notes = append(page.Notes, fmt.Sprintf("Nearest reference city: %s (%s km)",
			report.Location.NearestCity, f.OneDecimal(report.Location.NearestCityKm)))
	}
	return r.execute("result.html", page)
}

func (r *Renderer) Error(status int, message string) ([]byte, error) {
	return r.execute("error.html", errorPage{Status: status, Message: message})
}

// Configuration echoes the submitted fields in form order. The location
// selector is hidden and ticked flags read "Yes".
func (r *Renderer) Configuration(raw features.RawInput) []Row {
	var rows []Row
	for _, field := range []string{
		features.FieldCity, features.FieldLatitude, features.FieldLongitude,
		features.FieldCategory, features.FieldArea, features.FieldRooms, features.FieldYear,
	} {
		if v, ok := raw[field]; ok {
			rows = append(rows, Row{Label: field, Value: v})
		}
	}
	for _, rule := range r.mapping.Flags("") {
		if features.IsTruthy(raw[rule.Field]) {
			rows = append(rows, Row{Label: rule.Field, Value: "Yes"})
		}
	}
	return rows
}

func (r *Renderer) execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
