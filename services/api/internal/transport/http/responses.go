package http

import (
	"time"

	"github.com/cimillas/site-market/services/api/internal/app"
	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/shopspring/decimal"
)

type offerResponse struct {
	ID               string          `json:"id"`
	SiteID           string          `json:"site_id"`
	UserID           string          `json:"user_id"`
	Price            decimal.Decimal `json:"price"`
	Status           string          `json:"status"`
	ExpiresAt        time.Time       `json:"expires_at"`
	PurchaseDeadline *time.Time      `json:"purchase_deadline,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func newOfferResponse(o domain.PriceOffer) offerResponse {
	return offerResponse{
		ID:               o.ID,
		SiteID:           o.SiteID,
		UserID:           o.UserID,
		Price:            o.Price,
		Status:           string(o.Status),
		ExpiresAt:        o.ExpiresAt,
		PurchaseDeadline: o.PurchaseDeadline,
		CreatedAt:        o.CreatedAt,
	}
}

type cartItemResponse struct {
	SiteID               string          `json:"site_id"`
	Title                string          `json:"title,omitempty"`
	URL                  string          `json:"url,omitempty"`
	PriceType            string          `json:"price_type"`
	Price                decimal.Decimal `json:"price"`
	ReservedAt           *time.Time      `json:"reserved_at,omitempty"`
	ReservationExpiresAt *time.Time      `json:"reservation_expires_at,omitempty"`
}

func newCartItemResponse(item domain.CartItem) cartItemResponse {
	return cartItemResponse{
		SiteID:               item.SiteID,
		Title:                item.Title,
		URL:                  item.URL,
		PriceType:            string(item.PriceType),
		Price:                item.Price,
		ReservedAt:           item.ReservedAt,
		ReservationExpiresAt: item.ReservationExpiresAt,
	}
}

func newCartItemResponses(items []domain.CartItem) []cartItemResponse {
	out := make([]cartItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, newCartItemResponse(item))
	}
	return out
}

type cartResponse struct {
	Items                []cartItemResponse `json:"items"`
	ItemCount            int                `json:"item_count"`
	Total                decimal.Decimal    `json:"total"`
	Reserved             bool               `json:"reserved"`
	ReservationExpiresAt *time.Time         `json:"reservation_expires_at,omitempty"`
	CanReserve           bool               `json:"can_reserve"`
}

func newCartResponse(v app.CartView) cartResponse {
	return cartResponse{
		Items:                newCartItemResponses(v.Items),
		ItemCount:            len(v.Items),
		Total:                v.Total,
		Reserved:             v.Reserved,
		ReservationExpiresAt: v.ReservationExpiresAt,
		CanReserve:           v.CanReserve,
	}
}

type reservationResponse struct {
	Items     int       `json:"items"`
	ExpiresAt time.Time `json:"expires_at"`
}

type removedItemResponse struct {
	SiteID string `json:"site_id"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

type availabilityResponse struct {
	Available []cartItemResponse    `json:"available"`
	Removed   []removedItemResponse `json:"removed"`
}

func newAvailabilityResponse(a app.Availability) availabilityResponse {
	removed := make([]removedItemResponse, 0, len(a.Removed))
	for _, r := range a.Removed {
		removed = append(removed, removedItemResponse{SiteID: r.SiteID, Title: r.Title, Reason: r.Reason})
	}
	return availabilityResponse{
		Available: newCartItemResponses(a.Available),
		Removed:   removed,
	}
}

type orderItemResponse struct {
	SiteID    string          `json:"site_id"`
	Price     decimal.Decimal `json:"price"`
	PriceType string          `json:"price_type"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	Status        string              `json:"status"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	ConfirmedAt   *time.Time          `json:"confirmed_at,omitempty"`
	Items         []orderItemResponse `json:"items"`
}

func newOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			SiteID:    item.SiteID,
			Price:     item.Price,
			PriceType: string(item.PriceType),
		})
	}
	return orderResponse{
		ID:            o.ID,
		Status:        string(o.Status),
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		Notes:         o.Notes,
		CreatedAt:     o.CreatedAt,
		ConfirmedAt:   o.ConfirmedAt,
		Items:         items,
	}
}

type siteResponse struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	URL        string           `json:"url"`
	FixedPrice *decimal.Decimal `json:"fixed_price"`
	Status     string           `json:"status"`
	SoldAt     *time.Time       `json:"sold_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

func newSiteResponse(s domain.Site) siteResponse {
	resp := siteResponse{
		ID:        s.ID,
		Title:     s.Title,
		URL:       s.URL,
		Status:    string(s.Status),
		SoldAt:    s.SoldAt,
		CreatedAt: s.CreatedAt,
	}
	if s.FixedPrice.Valid {
		price := s.FixedPrice.Decimal
		resp.FixedPrice = &price
	}
	return resp
}

type userResponse struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	IsBlocked    bool       `json:"is_blocked"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

func newUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Username:     u.Username,
		IsBlocked:    u.IsBlocked,
		BlockedUntil: u.BlockedUntil,
	}
}

type blockStatusResponse struct {
	Blocked      bool       `json:"blocked"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

type statsResponse struct {
	Users           int             `json:"users"`
	BlockedUsers    int             `json:"blocked_users"`
	AvailableSites  int             `json:"available_sites"`
	SoldSites       int             `json:"sold_sites"`
	ActiveOffers    int             `json:"active_offers"`
	WinningOffers   int             `json:"winning_offers"`
	PendingOrders   int             `json:"pending_orders"`
	ConfirmedOrders int             `json:"confirmed_orders"`
	Revenue         decimal.Decimal `json:"revenue"`
}
