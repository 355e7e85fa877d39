package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/cimillas/site-market/services/api/internal/app"
	"github.com/cimillas/site-market/services/api/internal/domain"
)

const idempotencyHeader = "Idempotency-Key"

// OrderService is the minimal interface needed for order endpoints.
type OrderService interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (app.CreateOrderResult, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error)
}

type createOrderRequest struct {
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
}

// HandleCreateOrder serves POST /orders. A repeated Idempotency-Key returns
// the original order with 200 instead of 201.
func HandleCreateOrder(svc OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if !decodeBody(w, r, &req, true) {
			return
		}

		res, err := svc.CreateOrder(r.Context(), app.CreateOrderInput{
			UserID:         userFromContext(r.Context()),
			PaymentMethod:  strings.TrimSpace(req.PaymentMethod),
			Notes:          strings.TrimSpace(req.Notes),
			IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, newOrderResponse(res.Order))
	}
}

// HandleListOrders serves GET /orders, newest first.
func HandleListOrders(svc OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := svc.ListOrders(r.Context(), userFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp := make([]orderResponse, 0, len(orders))
		for _, order := range orders {
			resp = append(resp, newOrderResponse(order))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleGetOrder serves GET /orders/{id}.
func HandleGetOrder(svc OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.GetOrder(r.Context(), userFromContext(r.Context()), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newOrderResponse(order))
	}
}
