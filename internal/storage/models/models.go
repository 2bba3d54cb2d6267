package models

import "time"

type CityRecord struct {
	Name       string
	Latitude   float64
	Longitude  float64
	ImportedAt time.Time
}

// ImportRun records one replacement of the city table.
type ImportRun struct {
	ID         int64
	Source     string
	Checksum   string
	CityCount  int
	ImportedAt time.Time
}
