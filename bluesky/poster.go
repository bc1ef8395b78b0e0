// bluesky/poster.go
package bluesky

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"divvymon/models"
)

// PublishError wraps a failure to publish a post, as distinct from a failure
// to render the artifact being posted.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed: %v", e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Poster publishes station announcements to Bluesky over the XRPC API. In
// test mode no session is created and posts are logged as previews instead of
// being published; credentials may be absent entirely.
type Poster struct {
	baseURL  string
	testMode bool
	client   *http.Client

	accessJwt string
	did       string
}

// NewPoster builds a poster. Outside test mode it reads BLUESKY_HANDLE and
// BLUESKY_APP_PASSWORD from the environment and logs in immediately, so a
// credentials problem surfaces at startup rather than on the first change.
func NewPoster(baseURL string, timeout time.Duration, testMode bool) (*Poster, error) {
	p := &Poster{
		baseURL:  baseURL,
		testMode: testMode,
		client:   &http.Client{Timeout: timeout},
	}
	if testMode {
		return p, nil
	}

	handle := os.Getenv("BLUESKY_HANDLE")
	password := os.Getenv("BLUESKY_APP_PASSWORD")
	if handle == "" || password == "" {
		return nil, fmt.Errorf("bluesky credentials not found in environment variables")
	}
	if err := p.login(handle, password); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Poster) login(handle, password string) error {
	body := map[string]string{"identifier": handle, "password": password}
	var session struct {
		AccessJwt string `json:"accessJwt"`
		Did       string `json:"did"`
	}
	if err := p.postJSON("/xrpc/com.atproto.server.createSession", body, &session, ""); err != nil {
		return fmt.Errorf("failed to create bluesky session: %w", err)
	}
	p.accessJwt = session.AccessJwt
	p.did = session.Did
	log.Printf("Bluesky: Logged in as %s\n", handle)
	return nil
}

// PostNewStation announces a newly observed station. It returns the created
// post's URI as an opaque handle.
func (p *Poster) PostNewStation(station *models.PersistedStation, mapPath string) (string, error) {
	bikes := "Standard bikes only"
	if station.IsElectric {
		bikes = "Electric bikes available!"
	}
	text := fmt.Sprintf("🆕 New Divvy Station Alert!\n\n📍 %s\n🚲 %d docks\n⚡ %s\n",
		station.Name, station.TotalDocks, bikes)

	return p.createPost(text, mapPath)
}

// PostElectrifiedStation announces an existing station gaining electric-bike
// support.
func (p *Poster) PostElectrifiedStation(station *models.PersistedStation, mapPath string) (string, error) {
	text := fmt.Sprintf("⚡ Divvy Station Electrified!\n\n📍 %s\n🚲 %d docks\nNow supporting electric bikes! 🔌",
		station.Name, station.TotalDocks)

	return p.createPost(text, mapPath)
}

func (p *Poster) createPost(text, imagePath string) (string, error) {
	if p.testMode {
		log.Printf("Bluesky: === POST PREVIEW ===\nText:\n%s\nImage: %s\n===================", text, imagePath)
		return "", nil
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return "", &PublishError{Err: fmt.Errorf("failed to read map artifact %s: %w", imagePath, err)}
	}

	blob, err := p.uploadBlob(imageData)
	if err != nil {
		return "", &PublishError{Err: err}
	}

	record := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"embed": map[string]any{
			"$type": "app.bsky.embed.images",
			"images": []map[string]any{
				{
					"alt":   "Map showing the location of the Divvy station",
					"image": blob,
				},
			},
		},
	}
	body := map[string]any{
		"repo":       p.did,
		"collection": "app.bsky.feed.post",
		"record":     record,
	}

	var created struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := p.postJSON("/xrpc/com.atproto.repo.createRecord", body, &created, p.accessJwt); err != nil {
		return "", &PublishError{Err: fmt.Errorf("failed to create post record: %w", err)}
	}

	log.Printf("Bluesky: Successfully posted: %.50s...\n", text)
	return created.URI, nil
}

func (p *Poster) uploadBlob(data []byte) (json.RawMessage, error) {
	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/xrpc/com.atproto.repo.uploadBlob", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build blob upload request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Authorization", "Bearer "+p.accessJwt)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload blob: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blob upload: received status code %d", resp.StatusCode)
	}

	var uploaded struct {
		Blob json.RawMessage `json:"blob"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, fmt.Errorf("failed to decode blob upload response: %w", err)
	}
	return uploaded.Blob, nil
}

func (p *Poster) postJSON(path string, body any, out any, token string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: received status code %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}
