package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type OfferStatus string

const (
	OfferStatusActive        OfferStatus = "active"
	OfferStatusWinning       OfferStatus = "winning"
	OfferStatusExpired       OfferStatus = "expired"
	OfferStatusPurchased     OfferStatus = "purchased"
	OfferStatusExpiredWinner OfferStatus = "expired_winner"
)

// CanTransitionTo is the complete offer lifecycle. Anything not listed is illegal.
func (s OfferStatus) CanTransitionTo(next OfferStatus) bool {
	switch s {
	case OfferStatusActive:
		return next == OfferStatusWinning || next == OfferStatusExpired
	case OfferStatusWinning:
		return next == OfferStatusPurchased || next == OfferStatusExpiredWinner
	default:
		return false
	}
}

func (s OfferStatus) Terminal() bool {
	switch s {
	case OfferStatusExpired, OfferStatusPurchased, OfferStatusExpiredWinner:
		return true
	}
	return false
}

// PriceOffer is a bid on a site by a user.
type PriceOffer struct {
	ID               string
	SiteID           string
	UserID           string
	Price            decimal.Decimal
	Status           OfferStatus
	ExpiresAt        time.Time
	PurchaseDeadline *time.Time
	LastReminderSent *time.Time
	CreatedAt        time.Time
}

func (o *PriceOffer) transition(next OfferStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: offer %s %s -> %s", ErrIllegalTransition, o.ID, o.Status, next)
	}
	o.Status = next
	return nil
}

// Promote closes the auction in favour of o and starts its purchase window.
func (o *PriceOffer) Promote(now time.Time, purchaseWindow time.Duration) error {
	if err := o.transition(OfferStatusWinning); err != nil {
		return err
	}
	deadline := now.Add(purchaseWindow)
	o.PurchaseDeadline = &deadline
	return nil
}

func (o *PriceOffer) Expire() error {
	return o.transition(OfferStatusExpired)
}

func (o *PriceOffer) MarkPurchased() error {
	return o.transition(OfferStatusPurchased)
}

func (o *PriceOffer) ExpireWinner() error {
	return o.transition(OfferStatusExpiredWinner)
}

// Due reports whether the bid window has closed.
func (o PriceOffer) Due(now time.Time) bool {
	return !o.ExpiresAt.After(now)
}

// DeadlinePassed reports whether a winning offer ran out of purchase time.
func (o PriceOffer) DeadlinePassed(now time.Time) bool {
	return o.PurchaseDeadline != nil && now.After(*o.PurchaseDeadline)
}

// HighestFirst orders offers by price descending, then earliest bid first.
func HighestFirst(offers []PriceOffer) {
	sort.SliceStable(offers, func(i, j int) bool {
		if c := offers[i].Price.Cmp(offers[j].Price); c != 0 {
			return c > 0
		}
		return offers[i].CreatedAt.Before(offers[j].CreatedAt)
	})
}

// MaxPrice returns the highest price among offers, zero when empty.
func MaxPrice(offers []PriceOffer) decimal.Decimal {
	highest := decimal.Zero
	for _, o := range offers {
		if o.Price.GreaterThan(highest) {
			highest = o.Price
		}
	}
	return highest
}

// AuctionOutcome is the set of transitions one resolution pass applies to a site.
type AuctionOutcome struct {
	Winner  *PriceOffer
	Expired []PriceOffer
}

func (a AuctionOutcome) Empty() bool {
	return a.Winner == nil && len(a.Expired) == 0
}

// ResolveAuction decides what happens to the active offers of one site at now.
//
// While any active offer is still inside its bid window the auction stays
// open and only the due offers expire. Once every active offer is due, the
// highest one wins (earliest bid on ties) and the rest expire.
func ResolveAuction(active []PriceOffer, now time.Time) AuctionOutcome {
	var due []PriceOffer
	open := false
	for _, o := range active {
		if o.Status != OfferStatusActive {
			continue
		}
		if o.Due(now) {
			due = append(due, o)
		} else {
			open = true
		}
	}
	if len(due) == 0 {
		return AuctionOutcome{}
	}
	if open {
		return AuctionOutcome{Expired: due}
	}

	HighestFirst(due)
	winner := due[0]
	return AuctionOutcome{Winner: &winner, Expired: due[1:]}
}
