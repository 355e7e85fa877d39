package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/site-market/services/api/internal/clock"
	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/shopspring/decimal"
)

type CartRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUserForUpdate(ctx context.Context, userID string) (domain.User, error)
	GetSite(ctx context.Context, siteID string) (domain.Site, error)
	LockSites(ctx context.Context, siteIDs []string) ([]domain.Site, error)
	ListCartItems(ctx context.Context, userID string) ([]domain.CartItem, error)
	FindWinningOffer(ctx context.Context, siteID, userID string) (*domain.PriceOffer, error)
	CreateCartItem(ctx context.Context, item domain.CartItem) error
	DeleteCartItem(ctx context.Context, userID, siteID string) error
	DeleteCart(ctx context.Context, userID string) (int, error)
	ReserveCart(ctx context.Context, userID string, reservedAt, expiresAt time.Time) (int, error)
	ClearExpiredReservations(ctx context.Context, now time.Time) (int, error)
}

// Penalizer applies the missed-deadline penalty for a winning offer in its
// own transaction.
type Penalizer interface {
	Penalize(ctx context.Context, offerID string) error
}

type CartService struct {
	repo              CartRepository
	clock             clock.Clock
	penalizer         Penalizer
	reservationWindow time.Duration
}

const defaultReservationWindow = 15 * time.Minute

func NewCartService(repo CartRepository, clk clock.Clock, penalizer Penalizer, opts ...CartServiceOption) *CartService {
	svc := &CartService{
		repo:              repo,
		clock:             clk,
		penalizer:         penalizer,
		reservationWindow: defaultReservationWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CartServiceOption func(*CartService)

// WithReservationWindow overrides how long a cart reservation lasts.
func WithReservationWindow(d time.Duration) CartServiceOption {
	return func(s *CartService) {
		if d > 0 {
			s.reservationWindow = d
		}
	}
}

type AddItemInput struct {
	UserID    string
	SiteID    string
	PriceType domain.PriceType
}

// AddItem puts a site in the cart at its fixed price or at the user's winning
// offer price. A winning offer past its purchase deadline is penalized instead.
func (s *CartService) AddItem(ctx context.Context, in AddItemInput) (domain.CartItem, error) {
	if in.UserID == "" || in.SiteID == "" {
		return domain.CartItem{}, domain.ErrInvalidID
	}
	if !in.PriceType.Valid() {
		return domain.CartItem{}, domain.ErrInvalidPriceType
	}

	now := s.clock.Now()
	var (
		item    domain.CartItem
		overdue *domain.PriceOffer
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetUserForUpdate(txCtx, in.UserID)
		if err != nil {
			return err
		}
		if blocked, _ := user.BlockedAt(now); blocked {
			return domain.ErrUserBlocked
		}

		site, err := s.repo.GetSite(txCtx, in.SiteID)
		if err != nil {
			return err
		}
		if !site.Available() {
			return domain.ErrSiteUnavailable
		}

		var price decimal.Decimal
		switch in.PriceType {
		case domain.PriceTypeFixed:
			if !site.FixedPrice.Valid {
				return domain.ErrNoFixedPrice
			}
			price = site.FixedPrice.Decimal
		case domain.PriceTypeOffer:
			offer, err := s.repo.FindWinningOffer(txCtx, in.SiteID, in.UserID)
			if err != nil {
				return err
			}
			if offer == nil {
				return domain.ErrNoWinningOffer
			}
			if offer.DeadlinePassed(now) {
				overdue = offer
				return nil
			}
			price = offer.Price
		}

		existing, err := s.repo.ListCartItems(txCtx, in.UserID)
		if err != nil {
			return err
		}
		for _, it := range existing {
			if it.SiteID == in.SiteID {
				return domain.ErrAlreadyInCart
			}
		}

		item = domain.CartItem{
			UserID:    in.UserID,
			SiteID:    in.SiteID,
			PriceType: in.PriceType,
			Price:     price,
			CreatedAt: now,
			Title:     site.Title,
			URL:       site.URL,
		}
		return s.repo.CreateCartItem(txCtx, item)
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	if overdue != nil {
		return domain.CartItem{}, s.penalize(ctx, overdue.ID)
	}
	return item, nil
}

func (s *CartService) penalize(ctx context.Context, offerID string) error {
	if err := s.penalizer.Penalize(ctx, offerID); err != nil {
		return fmt.Errorf("apply purchase penalty: %w", err)
	}
	return domain.ErrPurchaseDeadline
}

type Reservation struct {
	Items     int
	ExpiresAt time.Time
}

// Reserve locks every item in a cart of two or more for the reservation
// window. All sites must still be available.
func (s *CartService) Reserve(ctx context.Context, userID string) (Reservation, error) {
	if userID == "" {
		return Reservation{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.reservationWindow)
	var res Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetUserForUpdate(txCtx, userID)
		if err != nil {
			return err
		}
		if blocked, _ := user.BlockedAt(now); blocked {
			return domain.ErrUserBlocked
		}

		items, err := s.repo.ListCartItems(txCtx, userID)
		if err != nil {
			return err
		}
		cart := domain.Cart{UserID: userID, Items: items}
		if len(items) < domain.MinReservationItems {
			return domain.ErrTooFewToReserve
		}
		if cart.Reserved(now) {
			return domain.ErrAlreadyReserved
		}

		sites, err := s.repo.LockSites(txCtx, cart.SiteIDs())
		if err != nil {
			return err
		}
		if len(sites) != len(items) {
			return domain.ErrSiteUnavailable
		}
		for _, site := range sites {
			if !site.Available() {
				return domain.ErrSiteUnavailable
			}
		}

		n, err := s.repo.ReserveCart(txCtx, userID, now, expiresAt)
		if err != nil {
			return err
		}
		if n != len(items) {
			return domain.ErrConcurrentUpdate
		}
		res = Reservation{Items: n, ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// ExpireReservations clears reservation timestamps that have run out. Items
// stay in their carts.
func (s *CartService) ExpireReservations(ctx context.Context) (int, error) {
	return s.repo.ClearExpiredReservations(ctx, s.clock.Now())
}

type RemovedItem struct {
	SiteID string
	Title  string
	Reason string
}

type Availability struct {
	Available []domain.CartItem
	Removed   []RemovedItem
}

// CheckAvailability drops items whose site is gone or no longer for sale and
// reports what was removed.
func (s *CartService) CheckAvailability(ctx context.Context, userID string) (Availability, error) {
	if userID == "" {
		return Availability{}, domain.ErrInvalidID
	}

	var res Availability
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetUserForUpdate(txCtx, userID); err != nil {
			return err
		}
		items, err := s.repo.ListCartItems(txCtx, userID)
		if err != nil {
			return err
		}

		res = Availability{Available: make([]domain.CartItem, 0, len(items))}
		for _, item := range items {
			reason := ""
			site, err := s.repo.GetSite(txCtx, item.SiteID)
			switch {
			case errors.Is(err, domain.ErrSiteNotFound):
				reason = "site deleted"
			case err != nil:
				return err
			case !site.Available():
				reason = "site " + string(site.Status)
			}
			if reason == "" {
				res.Available = append(res.Available, item)
				continue
			}
			if err := s.repo.DeleteCartItem(txCtx, userID, item.SiteID); err != nil {
				return err
			}
			res.Removed = append(res.Removed, RemovedItem{SiteID: item.SiteID, Title: item.Title, Reason: reason})
		}
		return nil
	})
	if err != nil {
		return Availability{}, err
	}
	return res, nil
}

// RemoveItem deletes one unreserved item.
func (s *CartService) RemoveItem(ctx context.Context, userID, siteID string) error {
	if userID == "" || siteID == "" {
		return domain.ErrInvalidID
	}
	now := s.clock.Now()

	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetUserForUpdate(txCtx, userID); err != nil {
			return err
		}
		items, err := s.repo.ListCartItems(txCtx, userID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.SiteID != siteID {
				continue
			}
			if item.Reserved(now) {
				return domain.ErrItemReserved
			}
			return s.repo.DeleteCartItem(txCtx, userID, siteID)
		}
		return domain.ErrCartItemNotFound
	})
}

// Clear empties a cart unless it holds a live reservation.
func (s *CartService) Clear(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrInvalidID
	}
	now := s.clock.Now()

	var removed int
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetUserForUpdate(txCtx, userID); err != nil {
			return err
		}
		items, err := s.repo.ListCartItems(txCtx, userID)
		if err != nil {
			return err
		}
		if (domain.Cart{Items: items}).Reserved(now) {
			return domain.ErrItemReserved
		}
		n, err := s.repo.DeleteCart(txCtx, userID)
		if err != nil {
			return err
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

type CartView struct {
	UserID               string
	Items                []domain.CartItem
	Total                decimal.Decimal
	Reserved             bool
	ReservationExpiresAt *time.Time
	CanReserve           bool
}

func (s *CartService) GetCart(ctx context.Context, userID string) (CartView, error) {
	if userID == "" {
		return CartView{}, domain.ErrInvalidID
	}
	items, err := s.repo.ListCartItems(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	now := s.clock.Now()
	cart := domain.Cart{UserID: userID, Items: items}
	return CartView{
		UserID:               userID,
		Items:                items,
		Total:                cart.Total(),
		Reserved:             cart.Reserved(now),
		ReservationExpiresAt: cart.ReservationExpiresAt(now),
		CanReserve:           cart.CanReserve(now),
	}, nil
}
