package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order records a completed checkout. Only Status and ConfirmedAt change
// after creation.
type Order struct {
	ID             string
	UserID         string
	IdempotencyKey string
	Total          decimal.Decimal
	Status         OrderStatus
	PaymentMethod  string
	Notes          string
	CreatedAt      time.Time
	ConfirmedAt    *time.Time
	Items          []OrderItem
}

type OrderItem struct {
	ID        string
	OrderID   string
	SiteID    string
	Price     decimal.Decimal
	PriceType PriceType
}
