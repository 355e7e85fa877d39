package http

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestRouter_UnknownRoute(t *testing.T) {
	t.Parallel()

	api := newTestAPI()
	rec := api.do(http.MethodGet, "/missing", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != codeNotFound {
		t.Fatalf("expected code %s, got %s", codeNotFound, resp.Code)
	}
}

func TestRouter_HealthWithoutDatabase(t *testing.T) {
	t.Parallel()

	api := newTestAPI()
	rec := api.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestRouter_StatsRouteOptional(t *testing.T) {
	t.Parallel()

	router := NewRouter(Services{AdminToken: testAdminToken})
	api := &testAPI{router: router}
	rec := api.do(http.MethodGet, "/admin/stats", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a stats source, got %d", rec.Code)
	}
}
