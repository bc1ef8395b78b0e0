// handlers/admin_handler_test.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeForcedPoster struct {
	gotID  string
	called bool
	err    error
}

func (f *fakeForcedPoster) RunForced(ctx context.Context, stationID string) error {
	f.called = true
	f.gotID = stationID
	return f.err
}

func TestForcePostHandlerSpecificStation(t *testing.T) {
	poster := &fakeForcedPoster{}
	handler := ForcePostHandler(poster)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/force-post/1234", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !poster.called || poster.gotID != "1234" {
		t.Errorf("Expected forced post for station 1234, got called=%t id=%q", poster.called, poster.gotID)
	}
}

func TestForcePostHandlerRandomStation(t *testing.T) {
	poster := &fakeForcedPoster{}
	handler := ForcePostHandler(poster)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/force-post/random", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if !poster.called || poster.gotID != "" {
		t.Errorf("random must map to an empty station id, got called=%t id=%q", poster.called, poster.gotID)
	}
}

func TestForcePostHandlerMethodNotAllowed(t *testing.T) {
	poster := &fakeForcedPoster{}
	handler := ForcePostHandler(poster)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/force-post/1234", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rr.Code)
	}
	if poster.called {
		t.Error("Monitor must not be invoked on a rejected method")
	}
}

func TestForcePostHandlerBadPath(t *testing.T) {
	poster := &fakeForcedPoster{}
	handler := ForcePostHandler(poster)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/force-post/", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	if poster.called {
		t.Error("Monitor must not be invoked on a bad path")
	}
}

func TestForcePostHandlerMonitorError(t *testing.T) {
	poster := &fakeForcedPoster{err: errors.New("station 77 not found in store")}
	handler := ForcePostHandler(poster)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/force-post/77", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not found") {
		t.Errorf("Expected the failure reason in the body, got %s", rr.Body.String())
	}
}
