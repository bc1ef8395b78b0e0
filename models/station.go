// models/station.go
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawStation represents one row of the Divvy station CSV feed exactly as it
// arrives from the Chicago Data Portal's SODA endpoint. Every field is kept as
// a string; ParseStation is the boundary where typed conversion and validation
// happen. CSV tags EXACTLY match the portal's column headers.
type RawStation struct {
	ID             string `csv:"id"`
	StationName    string `csv:"station_name"`
	ShortName      string `csv:"short_name"`
	TotalDocks     string `csv:"total_docks"`
	DocksInService string `csv:"docks_in_service"`
	Status         string `csv:"status"`
	Latitude       string `csv:"latitude"`
	Longitude      string `csv:"longitude"`
}

// StationRecord is a validated, strongly-typed snapshot of one station.
// The upstream feed marks electrified stations with a trailing '*' on the
// station name, which is where IsElectric comes from.
type StationRecord struct {
	ID             string
	Name           string
	ShortName      string
	TotalDocks     int
	DocksInService int
	Status         string
	Latitude       float64
	Longitude      float64
	IsElectric     bool
	ObservedAt     time.Time
}

// PersistedStation is the store's view of a station: the most recently
// observed record plus when it was written. Rows are created on first
// observation, fully overwritten on every later one, and never deleted.
type PersistedStation struct {
	StationRecord
	LastUpdated time.Time
}

// Classification is the per-record outcome of reconciling a snapshot record
// against persisted state.
type Classification string

const (
	ClassificationNew         Classification = "new"
	ClassificationElectrified Classification = "electrified"
	ClassificationUnchanged   Classification = "unchanged"
)

// ChangeEvent is a transient pairing of a classification with the persisted
// row after the update. Produced once per qualifying record per cycle and
// consumed immediately by notification; never stored.
type ChangeEvent struct {
	Kind    Classification
	Station *PersistedStation
}

// Bounds is the geographic bounding box a station's coordinates must fall in.
type Bounds struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// ValidationError describes why a single raw record was rejected. It names
// the offending field and rule so a skipped record can be diagnosed from the
// log alone.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid station record: %s: %s", e.Field, e.Reason)
}

// ParseStation converts a RawStation into a StationRecord, enforcing the
// validation contract: required fields present, dock counts integer and in
// range, coordinates float and inside the configured bounding box. A failure
// is per-record; callers skip the record and keep processing the snapshot.
func ParseStation(raw RawStation, bounds Bounds, observedAt time.Time) (StationRecord, error) {
	var rec StationRecord

	required := []struct {
		field string
		value string
	}{
		{"id", raw.ID},
		{"station_name", raw.StationName},
		{"short_name", raw.ShortName},
		{"total_docks", raw.TotalDocks},
		{"docks_in_service", raw.DocksInService},
		{"status", raw.Status},
		{"latitude", raw.Latitude},
		{"longitude", raw.Longitude},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return rec, &ValidationError{Field: r.field, Reason: "missing required field"}
		}
	}

	totalDocks, err := strconv.Atoi(strings.TrimSpace(raw.TotalDocks))
	if err != nil {
		return rec, &ValidationError{Field: "total_docks", Reason: "must be an integer"}
	}
	docksInService, err := strconv.Atoi(strings.TrimSpace(raw.DocksInService))
	if err != nil {
		return rec, &ValidationError{Field: "docks_in_service", Reason: "must be an integer"}
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(raw.Latitude), 64)
	if err != nil {
		return rec, &ValidationError{Field: "latitude", Reason: "must be a float"}
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(raw.Longitude), 64)
	if err != nil {
		return rec, &ValidationError{Field: "longitude", Reason: "must be a float"}
	}

	if totalDocks <= 0 {
		return rec, &ValidationError{Field: "total_docks", Reason: "must be positive"}
	}
	if docksInService < 0 {
		return rec, &ValidationError{Field: "docks_in_service", Reason: "must be non-negative"}
	}
	if docksInService > totalDocks {
		return rec, &ValidationError{Field: "docks_in_service", Reason: "exceeds total_docks"}
	}
	// Inclusion form so NaN (which fails every comparison) is rejected too.
	if !(lat >= bounds.MinLat && lat <= bounds.MaxLat) {
		return rec, &ValidationError{
			Field:  "latitude",
			Reason: fmt.Sprintf("%g outside range %g..%g", lat, bounds.MinLat, bounds.MaxLat),
		}
	}
	if !(lon >= bounds.MinLon && lon <= bounds.MaxLon) {
		return rec, &ValidationError{
			Field:  "longitude",
			Reason: fmt.Sprintf("%g outside range %g..%g", lon, bounds.MinLon, bounds.MaxLon),
		}
	}

	name := strings.TrimSpace(raw.StationName)

	rec = StationRecord{
		ID:             strings.TrimSpace(raw.ID),
		Name:           name,
		ShortName:      strings.TrimSpace(raw.ShortName),
		TotalDocks:     totalDocks,
		DocksInService: docksInService,
		Status:         strings.TrimSpace(raw.Status),
		Latitude:       lat,
		Longitude:      lon,
		IsElectric:     strings.HasSuffix(name, "*"),
		ObservedAt:     observedAt,
	}
	return rec, nil
}
