package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/apartment-estimator/backend/internal/reference"
	"github.com/apartment-estimator/backend/internal/storage/models"
	"github.com/apartment-estimator/backend/pkg/logger"
)

// Client stores the reference city table. It satisfies reference.CitySource.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cities (
		name TEXT PRIMARY KEY,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		imported_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS city_imports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		checksum TEXT,
		city_count INTEGER NOT NULL,
		imported_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_city_imports_time ON city_imports(imported_at);
	`

	_, err := c.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// ReplaceCities swaps the whole city table in one transaction and records
// the import.
func (c *Client) ReplaceCities(ctx context.Context, cities []reference.City, run models.ImportRun) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM cities`); err != nil {
		return fmt.Errorf("failed to clear cities: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cities (name, latitude, longitude, imported_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	if run.ImportedAt.IsZero() {
		run.ImportedAt = time.Now()
	}
	ts := run.ImportedAt.Unix()

	for _, city := range cities {
		if _, err = stmt.ExecContext(ctx, city.Name, city.Latitude, city.Longitude, ts); err != nil {
			return fmt.Errorf("failed to insert city %q: %w", city.Name, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO city_imports (source, checksum, city_count, imported_at) VALUES (?, ?, ?, ?)`,
		run.Source, run.Checksum, len(cities), ts,
	)
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cities: %w", err)
	}

	logger.Info("Cities replaced", zap.Int("count", len(cities)), zap.String("source", run.Source))
	return nil
}

func (c *Client) ListCities(ctx context.Context) ([]reference.City, error) {
	records, err := c.CityRecords(ctx)
	if err != nil {
		return nil, err
	}

	cities := make([]reference.City, 0, len(records))
	for _, r := range records {
		cities = append(cities, reference.City{Name: r.Name, Latitude: r.Latitude, Longitude: r.Longitude})
	}
	return cities, nil
}

func (c *Client) CityRecords(ctx context.Context) ([]models.CityRecord, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, latitude, longitude, imported_at FROM cities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}
	defer rows.Close()

	var records []models.CityRecord
	for rows.Next() {
		var r models.CityRecord
		var importedAt int64
		if err := rows.Scan(&r.Name, &r.Latitude, &r.Longitude, &importedAt); err != nil {
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		r.ImportedAt = time.Unix(importedAt, 0)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cities: %w", err)
	}
	return records, nil
}

// LastImport returns the most recent import run, or nil if none exists.
func (c *Client) LastImport(ctx context.Context) (*models.ImportRun, error) {
	var run models.ImportRun
	var checksum sql.NullString
	var importedAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT id, source, checksum, city_count, imported_at FROM city_imports ORDER BY id DESC LIMIT 1`,
	).Scan(&run.ID, &run.Source, &checksum, &run.CityCount, &importedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last import: %w", err)
	}

	run.Checksum = checksum.String
	run.ImportedAt = time.Unix(importedAt, 0)
	return &run, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
