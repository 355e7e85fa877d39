package http

import (
	"context"
	"net/http"

	"github.com/cimillas/site-market/services/api/internal/app"
	"github.com/cimillas/site-market/services/api/internal/domain"
)

// CartService is the minimal interface needed for cart endpoints.
type CartService interface {
	GetCart(ctx context.Context, userID string) (app.CartView, error)
	AddItem(ctx context.Context, in app.AddItemInput) (domain.CartItem, error)
	RemoveItem(ctx context.Context, userID, siteID string) error
	Clear(ctx context.Context, userID string) (int, error)
	Reserve(ctx context.Context, userID string) (app.Reservation, error)
	CheckAvailability(ctx context.Context, userID string) (app.Availability, error)
}

type addItemRequest struct {
	SiteID    string `json:"site_id"`
	PriceType string `json:"price_type"`
}

// HandleGetCart serves GET /cart.
func HandleGetCart(svc CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.GetCart(r.Context(), userFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newCartResponse(view))
	}
}

// HandleAddCartItem serves POST /cart/items. The price is derived server side
// from the site or the caller's winning offer.
func HandleAddCartItem(svc CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addItemRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		if req.SiteID == "" || req.PriceType == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "site_id and price_type are required")
			return
		}

		item, err := svc.AddItem(r.Context(), app.AddItemInput{
			UserID:    userFromContext(r.Context()),
			SiteID:    req.SiteID,
			PriceType: domain.PriceType(req.PriceType),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newCartItemResponse(item))
	}
}

// HandleRemoveCartItem serves DELETE /cart/items/{site_id}.
func HandleRemoveCartItem(svc CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RemoveItem(r.Context(), userFromContext(r.Context()), r.PathValue("site_id")); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleClearCart serves DELETE /cart.
func HandleClearCart(svc CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := svc.Clear(r.Context(), userFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
	}
}

// HandleReserveCart serves POST /cart/reserve.
func HandleReserveCart(svc CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Reserve(r.Context(), userFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reservationResponse{Items: res.Items, ExpiresAt: res.ExpiresAt})
	}
}

// HandleCheckAvailability serves POST /cart/check-availability. Unavailable
// items are removed from the cart as a side effect.
func HandleCheckAvailability(svc CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.CheckAvailability(r.Context(), userFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAvailabilityResponse(a))
	}
}
