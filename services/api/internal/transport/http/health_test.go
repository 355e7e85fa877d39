package http

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_OK(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	HealthHandler(pingerFunc(func(context.Context) error { return nil }))(rec, req)

	res := rec.Result()
	if res.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d", res.StatusCode)
	}

	body := rec.Body.String()
	if body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	HealthHandler(pingerFunc(func(context.Context) error { return errors.New("refused") }))(rec, req)

	if rec.Code != 503 {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}
