// render/map_test.go
package render

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"divvymon/models"
)

var fakePNG = []byte("\x89PNG\r\n\x1a\nnot-really-a-png")

func testStation(electric bool) *models.PersistedStation {
	return &models.PersistedStation{
		StationRecord: models.StationRecord{
			ID:         "1446",
			Name:       "Clark St & Randolph St",
			Latitude:   41.884576,
			Longitude:  -87.631889,
			IsElectric: electric,
		},
	}
}

func TestRenderStationMap(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write(fakePNG)
	}))
	defer server.Close()

	renderer := NewMapRenderer(server.URL, 5*time.Second)
	path, err := renderer.RenderStationMap(testStation(false))
	if err != nil {
		t.Fatalf("RenderStationMap returned error: %v", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Artifact not readable: %v", err)
	}
	if string(data) != string(fakePNG) {
		t.Error("Artifact content does not match the fetched image")
	}
	if !strings.Contains(path, "1446_") || !strings.HasSuffix(path, ".png") {
		t.Errorf("Unexpected artifact filename: %s", path)
	}
	if !strings.Contains(gotQuery, "blue") {
		t.Errorf("Standard station should use a blue marker, query was: %s", gotQuery)
	}
}

func TestRenderStationMapElectricMarker(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write(fakePNG)
	}))
	defer server.Close()

	renderer := NewMapRenderer(server.URL, 5*time.Second)
	path, err := renderer.RenderStationMap(testStation(true))
	if err != nil {
		t.Fatalf("RenderStationMap returned error: %v", err)
	}
	defer os.Remove(path)

	if !strings.Contains(gotQuery, "red") {
		t.Errorf("Electric station should use a red marker, query was: %s", gotQuery)
	}
}

func TestRenderStationMapUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	renderer := NewMapRenderer(server.URL, 5*time.Second)
	_, err := renderer.RenderStationMap(testStation(false))
	if err == nil {
		t.Fatal("Expected error on non-200 response")
	}

	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Errorf("Expected *RenderError, got %T: %v", err, err)
	}
}

func TestRenderStationMapUnconfigured(t *testing.T) {
	renderer := NewMapRenderer("", 5*time.Second)
	if _, err := renderer.RenderStationMap(testStation(false)); err == nil {
		t.Error("Expected error when static map URL is not configured")
	}
}
