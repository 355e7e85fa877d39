package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinReservationItems is the smallest cart that may be reserved.
const MinReservationItems = 2

type PriceType string

const (
	PriceTypeFixed PriceType = "fixed"
	PriceTypeOffer PriceType = "offer"
)

func (p PriceType) Valid() bool {
	return p == PriceTypeFixed || p == PriceTypeOffer
}

// CartItem is one site pending purchase at a locked-in price.
type CartItem struct {
	UserID               string
	SiteID               string
	PriceType            PriceType
	Price                decimal.Decimal
	ReservedAt           *time.Time
	ReservationExpiresAt *time.Time
	CreatedAt            time.Time

	// Read-only listing details, filled by queries that join sites.
	Title string
	URL   string
}

// Reserved reports a live reservation on the item.
func (c CartItem) Reserved(now time.Time) bool {
	return c.ReservedAt != nil && c.ReservationExpiresAt != nil && c.ReservationExpiresAt.After(now)
}

// Cart is the full contents of one user's cart.
type Cart struct {
	UserID string
	Items  []CartItem
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price)
	}
	return total
}

func (c Cart) SiteIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.SiteID)
	}
	return ids
}

// Reserved reports whether any item is under a live reservation.
func (c Cart) Reserved(now time.Time) bool {
	for _, item := range c.Items {
		if item.Reserved(now) {
			return true
		}
	}
	return false
}

// FullyReserved reports whether every item is under a live reservation.
func (c Cart) FullyReserved(now time.Time) bool {
	if len(c.Items) == 0 {
		return false
	}
	for _, item := range c.Items {
		if !item.Reserved(now) {
			return false
		}
	}
	return true
}

// ReservationExpiresAt returns the live reservation deadline, if any.
func (c Cart) ReservationExpiresAt(now time.Time) *time.Time {
	for _, item := range c.Items {
		if item.Reserved(now) {
			t := *item.ReservationExpiresAt
			return &t
		}
	}
	return nil
}

func (c Cart) CanReserve(now time.Time) bool {
	return len(c.Items) >= MinReservationItems && !c.Reserved(now)
}
