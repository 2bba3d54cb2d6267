package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/apartment-estimator/backend/internal/cache/redis"
	"github.com/apartment-estimator/backend/internal/diagnostics"
	"github.com/apartment-estimator/backend/internal/estimation"
	"github.com/apartment-estimator/backend/internal/features"
	"github.com/apartment-estimator/backend/internal/reference"
	"github.com/apartment-estimator/backend/internal/storage/models"
	"github.com/apartment-estimator/backend/internal/storage/sqlite"
	"github.com/apartment-estimator/backend/internal/web"
	"github.com/apartment-estimator/backend/pkg/config"
	"github.com/apartment-estimator/backend/pkg/utils"
)

// =============================================================================
// ESTIMATE COMMAND
// =============================================================================

func estimateCommand() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "Estimate buy and rent prices for one apartment",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "city", Usage: "Reference city (mutually exclusive with --lat/--lon)"},
			&cli.Float64Flag{Name: "lat", Usage: "Latitude"},
			&cli.Float64Flag{Name: "lon", Usage: "Longitude"},
			&cli.StringFlag{Name: "category", Value: "Apartment", Usage: "Apartment category"},
			&cli.Float64Flag{Name: "area", Value: 100, Usage: "Living area in m²"},
			&cli.IntFlag{Name: "rooms", Value: 4, Usage: "Number of rooms"},
			&cli.IntFlag{Name: "year", Value: 2010, Usage: "Construction year"},
			&cli.StringSliceFlag{Name: "flag", Usage: "Condition or outdoor feature, repeatable (e.g. Balcony)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format (table, json)"},
		},
		Action: runEstimate,
	}
}

type estimateOptions struct {
	City     string
	Lat, Lon float64
	UseCoord bool
	Category string
	Area     float64
	Rooms    int
	Year     int
	Flags    []string
}

func buildInput(o estimateOptions) (features.RawInput, error) {
	accepted := features.DefaultMapping.FlagFields()
	for _, f := range o.Flags {
		if !slices.Contains(accepted, f) {
			return nil, fmt.Errorf("unknown --flag %q, accepted: %s", f, strings.Join(accepted, ", "))
		}
	}

	raw := features.RawInput{
		features.FieldCategory: o.Category,
		features.FieldArea:     strconv.FormatFloat(o.Area, 'f', -1, 64),
		features.FieldRooms:    strconv.Itoa(o.Rooms),
		features.FieldYear:     strconv.Itoa(o.Year),
	}
	if o.UseCoord {
		raw[features.FieldLocationMode] = features.LocationByCoordinates
		raw[features.FieldLatitude] = strconv.FormatFloat(o.Lat, 'f', -1, 64)
		raw[features.FieldLongitude] = strconv.FormatFloat(o.Lon, 'f', -1, 64)
	} else {
		raw[features.FieldLocationMode] = features.LocationByCity
		raw[features.FieldCity] = o.City
	}
	for _, f := range o.Flags {
		raw[f] = "1"
	}
	return raw, nil
}

func runEstimate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	opts := estimateOptions{
		City:     c.String("city"),
		Lat:      c.Float64("lat"),
		Lon:      c.Float64("lon"),
		UseCoord: c.IsSet("lat") || c.IsSet("lon"),
		Category: c.String("category"),
		Area:     c.Float64("area"),
		Rooms:    c.Int("rooms"),
		Year:     c.Int("year"),
		Flags:    c.StringSlice("flag"),
	}
	if opts.UseCoord && opts.City != "" {
		return fmt.Errorf("--city cannot be combined with --lat/--lon")
	}
	if !opts.UseCoord && opts.City == "" {
		opts.City = cfg.Reference.DefaultCity
	}

	raw, err := buildInput(opts)
	if err != nil {
		return err
	}

	provider, err := reference.Load(c.Context, citySource(cfg), cfg.Reference.ArtifactsDir)
	if err != nil {
		return err
	}

	builder := features.NewBuilder(provider.Cities(), provider.Schemas(), features.DefaultMapping)
	service := estimation.NewService(provider, builder, nil)

	report, err := service.Estimate(c.Context, raw)
	if err != nil {
		return err
	}

	if c.String("format") == "json" {
		return writeJSON(c.App.Writer, report)
	}

	f, err := web.NewFormatter(cfg.Display.Locale)
	if err != nil {
		return err
	}
	return printReport(c.App.Writer, f, report)
}

func printReport(out io.Writer, f web.Formatter, r *estimation.Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ESTIMATION TYPE\tVALUE\tLOWER\tUPPER\n")
	fmt.Fprintf(w, "Buy-price\t%s\t%s\t%s\n", f.Euro(r.Buy.Point), f.Euro(r.Buy.Lower), f.Euro(r.Buy.Upper))
	fmt.Fprintf(w, "Buy-price per Area\t%s\t%s\t%s\n",
		f.EuroPerArea(r.Derived.BuyPerArea.Point), f.EuroPerArea(r.Derived.BuyPerArea.Lower), f.EuroPerArea(r.Derived.BuyPerArea.Upper))
	fmt.Fprintf(w, "Rent-price\t%s\t%s\t%s\n", f.Euro(r.Rent.Point), f.Euro(r.Rent.Lower), f.Euro(r.Rent.Upper))
	fmt.Fprintf(w, "Rent-price per Area\t%s\t%s\t%s\n",
		f.EuroPerAreaFine(r.Derived.RentPerArea.Point), f.EuroPerAreaFine(r.Derived.RentPerArea.Lower), f.EuroPerAreaFine(r.Derived.RentPerArea.Upper))
	fmt.Fprintf(w, "Buy-to-Rent-ratio\t%s\t\t\n", f.Whole(r.Derived.BuyToRent))
	fmt.Fprintf(w, "Rent-to-Buy-ratio\t%s\t\t\n", f.Percent(r.Derived.RentToBuyPercent))
	if err := w.Flush(); err != nil {
		return err
	}

	for _, d := range r.Diagnostics {
		fmt.Fprintf(out, "note: %s\n", d.Message)
	}
	if r.Location.NearestCity != "" {
		fmt.Fprintf(out, "note: nearest reference city %s (%s km)\n", r.Location.NearestCity, f.OneDecimal(r.Location.NearestCityKm))
	}
	return nil
}

// =============================================================================
// CITIES COMMAND
// =============================================================================

func citiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "cities",
		Usage: "Manage the reference city table",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Replace the SQLite city table with the contents of a CSV file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "csv", Usage: "CSV with City, Latitude, Longitude columns"},
					&cli.StringFlag{Name: "db", Usage: "SQLite database path"},
				},
				Action: runCitiesImport,
			},
			{
				Name:  "list",
				Usage: "Print the city table the server would load",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					table, err := reference.LoadCityTable(c.Context, citySource(cfg))
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
					fmt.Fprintf(w, "CITY\tLATITUDE\tLONGITUDE\n")
					for _, city := range table.All() {
						fmt.Fprintf(w, "%s\t%.4f\t%.4f\n", city.Name, city.Latitude, city.Longitude)
					}
					return w.Flush()
				},
			},
		},
	}
}

func runCitiesImport(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	csvPath := cfg.Reference.CitiesPath
	if c.IsSet("csv") {
		csvPath = c.String("csv")
	}
	dbPath := cfg.Reference.CitiesDB
	if c.IsSet("db") {
		dbPath = c.String("db")
	}
	if dbPath == "" {
		return fmt.Errorf("no database given: set --db or reference.citiesDB")
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", csvPath, err)
	}
	table, err := reference.LoadCityTable(c.Context, reference.CSVSource{Path: csvPath})
	if err != nil {
		return err
	}

	store, err := sqlite.NewClient(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(c.Context); err != nil {
		return err
	}
	run := models.ImportRun{Source: csvPath, Checksum: utils.HashString(string(data)), ImportedAt: time.Now()}
	if err := store.ReplaceCities(c.Context, table.All(), run); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Imported %d cities from %s into %s\n", table.Len(), csvPath, dbPath)
	return nil
}

// =============================================================================
// ARTIFACTS COMMAND
// =============================================================================

func artifactsCommand() *cli.Command {
	return &cli.Command{
		Name:  "artifacts",
		Usage: "Inspect trained model artifacts",
		Subcommands: []*cli.Command{
			{
				Name:  "inspect",
				Usage: "Validate artifacts and summarize their error distributions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "Artifacts directory"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format (table, json)"},
				},
				Action: runArtifactsInspect,
			},
		},
	}
}

func runArtifactsInspect(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	dir := cfg.Reference.ArtifactsDir
	if c.IsSet("dir") {
		dir = c.String("dir")
	}

	artifacts, err := reference.LoadModelArtifacts(dir)
	if err != nil {
		return err
	}

	reports := make([]diagnostics.ArtifactReport, 0, len(reference.Categories))
	for _, cat := range reference.Categories {
		reports = append(reports, diagnostics.Summarize(artifacts[cat]))
	}

	if c.String("format") == "json" {
		return writeJSON(c.App.Writer, reports)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "CATEGORY\tCOLUMNS\tABS\tMEAN ABS\tMEDIAN ABS\tP90 ABS\tSIGNED\tQ05\tQ95\tLOWER x\tUPPER x\tCHECKSUM\n")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.4f\t%.4f\t%.4f\t%d\t%.4f\t%.4f\t%.3f\t%.3f\t%s\n",
			r.Category, r.Columns, r.AbsSamples, r.MeanAbsError, r.MedianAbsError, r.AbsErrorP90,
			r.SignedSamples, r.SignedQ05, r.SignedQ95, r.LowerBoundFactor, r.UpperBoundFactor, r.Checksum)
	}
	return w.Flush()
}

// =============================================================================
// CACHE COMMAND
// =============================================================================

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the Redis estimate cache",
		Subcommands: []*cli.Command{
			{
				Name:  "invalidate",
				Usage: "Drop every cached estimate",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					client, err := redis.NewClient(c.Context, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB,
						time.Duration(cfg.Redis.TTLSeconds)*time.Second)
					if err != nil {
						return err
					}
					defer client.Close()

					n, err := client.Invalidate(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Removed %d cached estimates\n", n)
					return nil
				},
			},
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func citySource(cfg *config.Config) reference.CitySource {
	if cfg.Reference.CitiesDB != "" {
		return lazySQLite{path: cfg.Reference.CitiesDB}
	}
	return reference.CSVSource{Path: cfg.Reference.CitiesPath}
}

// lazySQLite opens the store only for the duration of one listing.
type lazySQLite struct{ path string }

func (s lazySQLite) ListCities(ctx context.Context) ([]reference.City, error) {
	store, err := sqlite.NewClient(s.path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.ListCities(ctx)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
