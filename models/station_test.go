// models/station_test.go
package models

import (
	"errors"
	"testing"
	"time"
)

var chicagoBounds = Bounds{MinLat: 41.6, MaxLat: 42.1, MinLon: -87.9, MaxLon: -87.5}

func validRaw() RawStation {
	return RawStation{
		ID:             "1446",
		StationName:    "Clark St & Randolph St",
		ShortName:      "TA1305000030",
		TotalDocks:     "23",
		DocksInService: "23",
		Status:         "In Service",
		Latitude:       "41.884576228",
		Longitude:      "-87.63188991",
	}
}

func TestParseStationValid(t *testing.T) {
	now := time.Now().UTC()
	rec, err := ParseStation(validRaw(), chicagoBounds, now)
	if err != nil {
		t.Fatalf("ParseStation returned error for valid record: %v", err)
	}

	if rec.ID != "1446" {
		t.Errorf("Expected id '1446', got '%s'", rec.ID)
	}
	if rec.TotalDocks != 23 || rec.DocksInService != 23 {
		t.Errorf("Expected dock counts 23/23, got %d/%d", rec.TotalDocks, rec.DocksInService)
	}
	if rec.IsElectric {
		t.Error("Station without trailing '*' should not be electric")
	}
	if !rec.ObservedAt.Equal(now) {
		t.Errorf("Expected observed_at %v, got %v", now, rec.ObservedAt)
	}
}

func TestParseStationElectricMarker(t *testing.T) {
	raw := validRaw()
	raw.StationName = "Clark St & Randolph St*"

	rec, err := ParseStation(raw, chicagoBounds, time.Now())
	if err != nil {
		t.Fatalf("ParseStation returned error: %v", err)
	}
	if !rec.IsElectric {
		t.Error("Station name ending in '*' should be marked electric")
	}
	if rec.Name != "Clark St & Randolph St*" {
		t.Errorf("Station name should be preserved as-is, got '%s'", rec.Name)
	}
}

func TestParseStationRejections(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*RawStation)
		wantField string
	}{
		{"missing id", func(r *RawStation) { r.ID = "" }, "id"},
		{"missing name", func(r *RawStation) { r.StationName = "  " }, "station_name"},
		{"missing short name", func(r *RawStation) { r.ShortName = "" }, "short_name"},
		{"non-integer total docks", func(r *RawStation) { r.TotalDocks = "twenty" }, "total_docks"},
		{"non-integer docks in service", func(r *RawStation) { r.DocksInService = "3.5" }, "docks_in_service"},
		{"non-float latitude", func(r *RawStation) { r.Latitude = "north" }, "latitude"},
		{"non-float longitude", func(r *RawStation) { r.Longitude = "west" }, "longitude"},
		{"zero total docks", func(r *RawStation) { r.TotalDocks = "0" }, "total_docks"},
		{"negative total docks", func(r *RawStation) { r.TotalDocks = "-4" }, "total_docks"},
		{"negative docks in service", func(r *RawStation) { r.DocksInService = "-1" }, "docks_in_service"},
		{"docks in service above total", func(r *RawStation) { r.DocksInService = "24" }, "docks_in_service"},
		{"latitude above bounding box", func(r *RawStation) { r.Latitude = "45.0" }, "latitude"},
		{"latitude below bounding box", func(r *RawStation) { r.Latitude = "41.0" }, "latitude"},
		{"longitude outside bounding box", func(r *RawStation) { r.Longitude = "-88.5" }, "longitude"},
		{"NaN latitude", func(r *RawStation) { r.Latitude = "NaN" }, "latitude"},
		{"NaN longitude", func(r *RawStation) { r.Longitude = "NaN" }, "longitude"},
		{"infinite latitude", func(r *RawStation) { r.Latitude = "-Inf" }, "latitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)

			_, err := ParseStation(raw, chicagoBounds, time.Now())
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %T: %v", err, err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Expected rejection on field '%s', got '%s' (%v)", tt.wantField, verr.Field, verr)
			}
		})
	}
}

func TestParseStationBoundaryCoordinates(t *testing.T) {
	// Coordinates exactly on the bounding box edge are accepted.
	raw := validRaw()
	raw.Latitude = "41.6"
	raw.Longitude = "-87.9"

	if _, err := ParseStation(raw, chicagoBounds, time.Now()); err != nil {
		t.Errorf("Boundary coordinates should be accepted, got: %v", err)
	}
}
