package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/shopspring/decimal"
)

func TestHandleAdminSites(t *testing.T) {
	t.Parallel()

	api := newTestAPI()
	api.admin.site = domain.Site{
		ID:         "site-1",
		Title:      "Blog",
		URL:        "https://blog.example",
		FixedPrice: decimal.NewNullDecimal(decimal.RequireFromString("99.90")),
		Status:     domain.SiteStatusAvailable,
	}

	rec := api.do(http.MethodPost, "/admin/sites", `{"title":"Blog","url":"https://blog.example","fixed_price":"99.90"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if api.admin.gotSite.FixedPrice == nil || !api.admin.gotSite.FixedPrice.Equal(decimal.RequireFromString("99.90")) {
		t.Fatalf("unexpected fixed price input: %+v", api.admin.gotSite)
	}
	if !strings.Contains(rec.Body.String(), `"fixed_price":"99.9"`) {
		t.Fatalf("expected fixed price in response, got %s", rec.Body.String())
	}

	rec = api.do(http.MethodGet, "/admin/sites?status=hidden", "")
	if rec.Code != http.StatusOK || api.admin.gotStatus != domain.SiteStatusHidden {
		t.Fatalf("unexpected list: %d status=%q", rec.Code, api.admin.gotStatus)
	}

	rec = api.do(http.MethodPut, "/admin/sites", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleAdminSites_RequiresToken(t *testing.T) {
	t.Parallel()

	api := newTestAPI()
	rec := api.do(http.MethodGet, "/admin/sites", "", adminHeader, "wrong")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleAdminSiteStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		path           string
		serviceErr     error
		expectedStatus int
		expectedAction string
	}{
		{"hide", "/admin/sites/site-1/hide", nil, http.StatusOK, "hide"},
		{"restore", "/admin/sites/site-1/restore", nil, http.StatusOK, "restore"},
		{"unknown action", "/admin/sites/site-1/sell", nil, http.StatusNotFound, ""},
		{"sold site", "/admin/sites/site-1/hide", domain.ErrSiteSold, http.StatusUnprocessableEntity, "hide"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newTestAPI()
			api.admin.err = tt.serviceErr
			rec := api.do(http.MethodPost, tt.path, "")
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected %d, got %d", tt.expectedStatus, rec.Code)
			}
			if api.admin.action != tt.expectedAction {
				t.Fatalf("expected action %q, got %q", tt.expectedAction, api.admin.action)
			}
		})
	}
}

func TestHandleAdminBlockUser(t *testing.T) {
	t.Parallel()

	api := newTestAPI()
	until := testNow.Add(4 * time.Hour)
	api.blocks.user = domain.User{ID: "u-7", Username: "bob", IsBlocked: true, BlockedUntil: &until}

	rec := api.do(http.MethodPost, "/admin/users/u-7/block", `{"hours":4,"reason":" spam "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := api.blocks.gotBlock
	if got.UserID != "u-7" || got.Duration != 4*time.Hour || got.Reason != "spam" {
		t.Fatalf("unexpected block input: %+v", got)
	}

	rec = api.do(http.MethodPost, "/admin/users/u-7/block", "")
	if rec.Code != http.StatusOK || api.blocks.gotBlock.Duration != 0 {
		t.Fatalf("expected indefinite block, got %d %+v", rec.Code, api.blocks.gotBlock)
	}

	api.blocks.err = domain.ErrInvalidDuration
	rec = api.do(http.MethodPost, "/admin/users/u-7/block", `{"hours":-1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleAdminUnblockUser(t *testing.T) {
	t.Parallel()

	api := newTestAPI()
	rec := api.do(http.MethodPost, "/admin/users/u-7/unblock", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	api.blocks.err = domain.ErrUserNotFound
	rec = api.do(http.MethodPost, "/admin/users/u-7/unblock", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleBlockStatus(t *testing.T) {
	t.Parallel()

	api := newTestAPI()
	rec := api.do(http.MethodGet, "/me/block-status", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"blocked":false`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	api.blocks.blocked = true
	api.blocks.until = testNow.Add(time.Hour)
	rec = api.do(http.MethodGet, "/me/block-status", "")
	if !strings.Contains(rec.Body.String(), `"blocked_until":"2025-03-01T13:00:00Z"`) {
		t.Fatalf("expected blocked_until, got %s", rec.Body.String())
	}
}

func TestHandleAdminConfirmOrder(t *testing.T) {
	t.Parallel()

	api := newTestAPI()
	api.orders.order = domain.Order{ID: "order-1", Status: domain.OrderStatusConfirmed, ConfirmedAt: &testNow}
	rec := api.do(http.MethodPost, "/admin/orders/order-1/confirm", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"confirmed"`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	api.orders.err = domain.ErrIllegalTransition
	rec = api.do(http.MethodPost, "/admin/orders/order-1/confirm", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandleAdminStats(t *testing.T) {
	t.Parallel()

	api := newTestAPI()
	rec := api.do(http.MethodGet, "/admin/stats", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"users":0`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}
