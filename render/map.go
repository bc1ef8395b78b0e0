// render/map.go
package render

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"divvymon/models"
)

// RenderError wraps a failure to produce a map artifact, so callers can tell
// "could not render" apart from "could not publish".
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("map rendering failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// MapRenderer fetches a static map image centered on a station and saves it
// to a temporary artifact file. The caller owns the artifact and must remove
// it after posting, whether the post succeeded or not.
type MapRenderer struct {
	staticMapURL string
	outputDir    string
	client       *http.Client
}

func NewMapRenderer(staticMapURL string, timeout time.Duration) *MapRenderer {
	return &MapRenderer{
		staticMapURL: staticMapURL,
		outputDir:    filepath.Join(os.TempDir(), "divvymon-maps"),
		client:       &http.Client{Timeout: timeout},
	}
}

// RenderStationMap fetches the map image for a station and returns the saved
// artifact path. Electric stations get a red marker, standard ones blue,
// matching the posts' framing.
func (r *MapRenderer) RenderStationMap(station *models.PersistedStation) (string, error) {
	if r.staticMapURL == "" {
		return "", &RenderError{Err: fmt.Errorf("static map URL is not configured")}
	}

	markerColor := "blue"
	if station.IsElectric {
		markerColor = "red"
	}

	params := url.Values{}
	params.Set("center", fmt.Sprintf("%f,%f", station.Latitude, station.Longitude))
	params.Set("zoom", "16")
	params.Set("size", "800x600")
	params.Set("markers", fmt.Sprintf("%f,%f,%s", station.Latitude, station.Longitude, markerColor))

	resp, err := r.client.Get(r.staticMapURL + "?" + params.Encode())
	if err != nil {
		return "", &RenderError{Err: fmt.Errorf("failed to fetch static map for station %s: %w", station.ID, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &RenderError{Err: fmt.Errorf("static map for station %s: received status code %d", station.ID, resp.StatusCode)}
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", &RenderError{Err: fmt.Errorf("failed to create map output directory: %w", err)}
	}

	filename := fmt.Sprintf("%s_%s.png", station.ID, uuid.NewString())
	artifactPath := filepath.Join(r.outputDir, filename)

	outFile, err := os.Create(artifactPath)
	if err != nil {
		return "", &RenderError{Err: fmt.Errorf("failed to create map file %s: %w", artifactPath, err)}
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, resp.Body); err != nil {
		os.Remove(artifactPath)
		return "", &RenderError{Err: fmt.Errorf("failed to write map file %s: %w", artifactPath, err)}
	}

	log.Printf("Render: Saved map for station %s to %s\n", station.ID, artifactPath)
	return artifactPath, nil
}
