package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/site-market/services/api/internal/app"
	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/shopspring/decimal"
)

// AdminSiteService is the minimal interface needed for admin site and user endpoints.
type AdminSiteService interface {
	CreateSite(ctx context.Context, in app.CreateSiteInput) (domain.Site, error)
	ListSites(ctx context.Context, status domain.SiteStatus) ([]domain.Site, error)
	HideSite(ctx context.Context, siteID string) (domain.Site, error)
	RestoreSite(ctx context.Context, siteID string) (domain.Site, error)
	CreateUser(ctx context.Context, in app.CreateUserInput) (domain.User, error)
}

// BlockService is the minimal interface needed for block endpoints.
type BlockService interface {
	BlockUser(ctx context.Context, in app.BlockUserInput) (domain.User, error)
	UnblockUser(ctx context.Context, userID string) error
	IsUserBlocked(ctx context.Context, userID string) (bool, time.Time, error)
}

// OrderConfirmer is the minimal interface needed to confirm an order.
type OrderConfirmer interface {
	ConfirmOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// StatsService is the minimal interface needed for the stats endpoint.
type StatsService interface {
	MarketStats(ctx context.Context) (domain.MarketStats, error)
}

// HandleAdminSites returns an HTTP handler for admin site creation/listing.
func HandleAdminSites(svc AdminSiteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			sites, err := svc.ListSites(r.Context(), domain.SiteStatus(r.URL.Query().Get("status")))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			resp := make([]siteResponse, 0, len(sites))
			for _, site := range sites {
				resp = append(resp, newSiteResponse(site))
			}
			writeJSON(w, http.StatusOK, resp)
			return
		case http.MethodPost:
			var req createSiteRequest
			if !decodeBody(w, r, &req, false) {
				return
			}
			site, err := svc.CreateSite(r.Context(), app.CreateSiteInput{
				Title:      req.Title,
				URL:        req.URL,
				FixedPrice: req.FixedPrice,
			})
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, newSiteResponse(site))
			return
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
	}
}

// HandleAdminSiteStatus serves POST /admin/sites/{id}/{action} for hide and restore.
func HandleAdminSiteStatus(svc AdminSiteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var change func(context.Context, string) (domain.Site, error)
		switch r.PathValue("action") {
		case "hide":
			change = svc.HideSite
		case "restore":
			change = svc.RestoreSite
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		site, err := change(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSiteResponse(site))
	}
}

// HandleAdminCreateUser serves POST /admin/users.
func HandleAdminCreateUser(svc AdminSiteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		user, err := svc.CreateUser(r.Context(), app.CreateUserInput{Username: req.Username})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newUserResponse(user))
	}
}

// HandleAdminBlockUser serves POST /admin/users/{id}/block. Zero hours blocks
// until a manual unblock.
func HandleAdminBlockUser(svc BlockService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req blockUserRequest
		if !decodeBody(w, r, &req, true) {
			return
		}
		user, err := svc.BlockUser(r.Context(), app.BlockUserInput{
			UserID:   r.PathValue("id"),
			Duration: time.Duration(req.Hours) * time.Hour,
			Reason:   strings.TrimSpace(req.Reason),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newUserResponse(user))
	}
}

// HandleAdminUnblockUser serves POST /admin/users/{id}/unblock.
func HandleAdminUnblockUser(svc BlockService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.UnblockUser(r.Context(), r.PathValue("id")); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleBlockStatus serves GET /me/block-status for the calling user.
func HandleBlockStatus(svc BlockService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blocked, until, err := svc.IsUserBlocked(r.Context(), userFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp := blockStatusResponse{Blocked: blocked}
		if blocked && !until.IsZero() {
			resp.BlockedUntil = &until
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleAdminConfirmOrder serves POST /admin/orders/{id}/confirm.
func HandleAdminConfirmOrder(svc OrderConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.ConfirmOrder(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newOrderResponse(order))
	}
}

// HandleAdminStats serves GET /admin/stats.
func HandleAdminStats(svc StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.MarketStats(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{
			Users:           s.Users,
			BlockedUsers:    s.BlockedUsers,
			AvailableSites:  s.AvailableSites,
			SoldSites:       s.SoldSites,
			ActiveOffers:    s.ActiveOffers,
			WinningOffers:   s.WinningOffers,
			PendingOrders:   s.PendingOrders,
			ConfirmedOrders: s.ConfirmedOrders,
			Revenue:         s.Revenue,
		})
	}
}

type createSiteRequest struct {
	Title      string           `json:"title"`
	URL        string           `json:"url"`
	FixedPrice *decimal.Decimal `json:"fixed_price,omitempty"`
}

type createUserRequest struct {
	Username string `json:"username"`
}

type blockUserRequest struct {
	Hours  int    `json:"hours"`
	Reason string `json:"reason"`
}
