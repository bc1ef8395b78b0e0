// scraper/portal_checker_test.go
package scraper

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func portalPage(metaText string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<div class="about-section">
				<div class="metadata-pair"><span>%s</span></div>
			</div>
		</body></html>`, metaText)
	}
}

func TestFetchPortalUpdated(t *testing.T) {
	server := httptest.NewServer(portalPage("Updated August 12, 2026"))
	defer server.Close()

	updated, err := FetchPortalUpdated(server.URL, ".about-section", 5*time.Second)
	if err != nil {
		t.Fatalf("FetchPortalUpdated returned error: %v", err)
	}

	want := time.Date(2026, time.August, 12, 0, 0, 0, 0, time.UTC)
	if !updated.Equal(want) {
		t.Errorf("Expected %s, got %s", want, updated)
	}
}

func TestFetchPortalUpdatedDefaultSelector(t *testing.T) {
	server := httptest.NewServer(portalPage("Data Updated January 3, 2026"))
	defer server.Close()

	// Empty selector falls back to searching the whole body.
	updated, err := FetchPortalUpdated(server.URL, "", 5*time.Second)
	if err != nil {
		t.Fatalf("FetchPortalUpdated returned error: %v", err)
	}
	if updated.Month() != time.January || updated.Year() != 2026 {
		t.Errorf("Unexpected date: %s", updated)
	}
}

func TestFetchPortalUpdatedMissingStamp(t *testing.T) {
	server := httptest.NewServer(portalPage("This dataset has no date here"))
	defer server.Close()

	if _, err := FetchPortalUpdated(server.URL, ".about-section", 5*time.Second); err == nil {
		t.Error("Expected error when no updated stamp is present")
	}
}

func TestFetchPortalUpdatedHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := FetchPortalUpdated(server.URL, ".about-section", 5*time.Second); err == nil {
		t.Error("Expected error on non-200 response")
	}
}
