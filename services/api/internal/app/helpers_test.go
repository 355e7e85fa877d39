package app

import (
	"io"
	"log"
	"time"

	"github.com/cimillas/site-market/services/api/internal/clock"
	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// marketFixture wires every service over one fake store and a manual clock.
type marketFixture struct {
	store     *fakeStore
	clock     *clock.Manual
	offers    *OfferService
	carts     *CartService
	penalties *PenaltyService
	orders    *OrderService
	admin     *AdminService
}

func newMarketFixture() *marketFixture {
	store := newFakeStore()
	clk := clock.NewManual(testNow)
	penalties := NewPenaltyService(store, clk, WithPenaltyLogger(quietLogger()))
	return &marketFixture{
		store:     store,
		clock:     clk,
		offers:    NewOfferService(store, clk, WithOfferLogger(quietLogger())),
		carts:     NewCartService(store, clk, penalties),
		penalties: penalties,
		orders:    NewOrderService(store, clk, penalties),
		admin:     NewAdminService(store, clk),
	}
}

func (m *marketFixture) user(id string) domain.User {
	return m.store.addUser(domain.User{ID: id, Username: "user-" + id})
}

func (m *marketFixture) site(id string, fixed string) domain.Site {
	s := domain.Site{ID: id, Title: "Site " + id, URL: "https://" + id + ".example", CreatedAt: testNow}
	if fixed != "" {
		s.FixedPrice = decimal.NewNullDecimal(dec(fixed))
	}
	return m.store.addSite(s)
}

// winningOffer stores a winning offer and the matching cart item, the state
// an auction win leaves behind.
func (m *marketFixture) winningOffer(id, siteID, userID, price string, deadline time.Time) domain.PriceOffer {
	o := m.store.addOffer(domain.PriceOffer{
		ID:               id,
		SiteID:           siteID,
		UserID:           userID,
		Price:            dec(price),
		Status:           domain.OfferStatusWinning,
		ExpiresAt:        deadline.Add(-15 * time.Minute),
		PurchaseDeadline: &deadline,
		CreatedAt:        deadline.Add(-45 * time.Minute),
	})
	m.store.addCartItem(domain.CartItem{
		UserID:    userID,
		SiteID:    siteID,
		PriceType: domain.PriceTypeOffer,
		Price:     o.Price,
		CreatedAt: o.ExpiresAt,
	})
	return o
}
