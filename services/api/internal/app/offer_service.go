package app

import (
	"context"
	"log"
	"time"

	"github.com/cimillas/site-market/services/api/internal/clock"
	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/shopspring/decimal"
)

type OfferRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetUserForUpdate(ctx context.Context, userID string) (domain.User, error)
	GetSiteForUpdate(ctx context.Context, siteID string) (domain.Site, error)
	ListActiveOffers(ctx context.Context, siteID string) ([]domain.PriceOffer, error)
	HasWinningOffer(ctx context.Context, siteID string) (bool, error)
	FindUserOffer(ctx context.Context, siteID, userID string) (*domain.PriceOffer, error)
	ExpireActiveOffers(ctx context.Context, siteID, userID string) (int, error)
	CreateOffer(ctx context.Context, offer domain.PriceOffer) error
	ListSitesWithDueOffers(ctx context.Context, now time.Time) ([]string, error)
	UpdateOffer(ctx context.Context, offer domain.PriceOffer, from domain.OfferStatus) error
	ListCartItems(ctx context.Context, userID string) ([]domain.CartItem, error)
	UpsertCartItem(ctx context.Context, item domain.CartItem) error
	AppendEvents(ctx context.Context, events ...domain.Event) error
}

// OfferService owns price offers and every status transition they go through
// before purchase or penalty.
type OfferService struct {
	repo           OfferRepository
	clock          clock.Clock
	logger         *log.Logger
	bidWindow      time.Duration
	purchaseWindow time.Duration
}

const (
	defaultBidWindow      = 30 * time.Minute
	defaultPurchaseWindow = 15 * time.Minute
)

func NewOfferService(repo OfferRepository, clk clock.Clock, opts ...OfferServiceOption) *OfferService {
	svc := &OfferService{
		repo:           repo,
		clock:          clk,
		logger:         log.Default(),
		bidWindow:      defaultBidWindow,
		purchaseWindow: defaultPurchaseWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type OfferServiceOption func(*OfferService)

// WithBidWindow overrides how long a new offer stays biddable.
func WithBidWindow(d time.Duration) OfferServiceOption {
	return func(s *OfferService) {
		if d > 0 {
			s.bidWindow = d
		}
	}
}

// WithPurchaseWindow overrides how long a winner has to check out.
func WithPurchaseWindow(d time.Duration) OfferServiceOption {
	return func(s *OfferService) {
		if d > 0 {
			s.purchaseWindow = d
		}
	}
}

func WithOfferLogger(logger *log.Logger) OfferServiceOption {
	return func(s *OfferService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type SubmitOfferInput struct {
	SiteID string
	UserID string
	Price  decimal.Decimal
}

// SubmitOffer places a bid. A previous active bid by the same user on the
// site is expired in the same transaction.
func (s *OfferService) SubmitOffer(ctx context.Context, in SubmitOfferInput) (domain.PriceOffer, error) {
	if in.SiteID == "" || in.UserID == "" {
		return domain.PriceOffer{}, domain.ErrInvalidID
	}
	if !domain.ValidPrice(in.Price) {
		return domain.PriceOffer{}, domain.ErrInvalidPrice
	}

	now := s.clock.Now()
	var result domain.PriceOffer

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetUser(txCtx, in.UserID)
		if err != nil {
			return err
		}
		if blocked, _ := user.BlockedAt(now); blocked {
			return domain.ErrUserBlocked
		}

		site, err := s.repo.GetSiteForUpdate(txCtx, in.SiteID)
		if err != nil {
			return err
		}
		if !site.Available() {
			return domain.ErrSiteUnavailable
		}

		closed, err := s.repo.HasWinningOffer(txCtx, in.SiteID)
		if err != nil {
			return err
		}
		if closed {
			return domain.ErrAuctionClosed
		}

		active, err := s.repo.ListActiveOffers(txCtx, in.SiteID)
		if err != nil {
			return err
		}
		if !in.Price.GreaterThan(domain.MaxPrice(active)) {
			return domain.ErrOfferTooLow
		}

		if _, err := s.repo.ExpireActiveOffers(txCtx, in.SiteID, in.UserID); err != nil {
			return err
		}

		offer := domain.PriceOffer{
			ID:        newUUID(),
			SiteID:    in.SiteID,
			UserID:    in.UserID,
			Price:     in.Price,
			Status:    domain.OfferStatusActive,
			ExpiresAt: now.Add(s.bidWindow),
			CreatedAt: now,
		}
		if err := s.repo.CreateOffer(txCtx, offer); err != nil {
			return err
		}

		event := newEvent(domain.EventOfferCreated, now, map[string]string{
			"offer_id":    offer.ID,
			"site_id":     site.ID,
			"site_title":  site.Title,
			"site_url":    site.URL,
			"fixed_price": fixedPriceString(site),
			"user_id":     user.ID,
			"username":    user.Username,
			"price":       offer.Price.String(),
			"expires_at":  formatTime(offer.ExpiresAt),
		})
		if err := s.repo.AppendEvents(txCtx, event); err != nil {
			return err
		}

		result = offer
		return nil
	})
	if err != nil {
		return domain.PriceOffer{}, err
	}
	return result, nil
}

// ListSiteOffers returns the open bids on a site, highest first.
func (s *OfferService) ListSiteOffers(ctx context.Context, siteID string) ([]domain.PriceOffer, error) {
	if siteID == "" {
		return nil, domain.ErrInvalidID
	}
	offers, err := s.repo.ListActiveOffers(ctx, siteID)
	if err != nil {
		return nil, err
	}
	domain.HighestFirst(offers)
	return offers, nil
}

// UserOffer returns the caller's active or winning offer on a site, or nil.
func (s *OfferService) UserOffer(ctx context.Context, siteID, userID string) (*domain.PriceOffer, error) {
	if siteID == "" || userID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.FindUserOffer(ctx, siteID, userID)
}

type ResolveResult struct {
	Sites    int
	Promoted int
	Expired  int
}

// ResolveExpiredOffers closes every auction whose bids have all run out and
// expires bids that were overtaken. Each site resolves in its own transaction;
// a failing site is logged and retried on the next sweep.
func (s *OfferService) ResolveExpiredOffers(ctx context.Context) (ResolveResult, error) {
	now := s.clock.Now()

	siteIDs, err := s.repo.ListSitesWithDueOffers(ctx, now)
	if err != nil {
		return ResolveResult{}, err
	}

	var res ResolveResult
	for _, siteID := range siteIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		outcome, err := s.resolveSite(ctx, siteID, now)
		if err != nil {
			s.logger.Printf("WARN: resolve offers site=%s: %v", siteID, err)
			continue
		}
		res.Sites++
		res.Expired += len(outcome.Expired)
		if outcome.Winner != nil {
			res.Promoted++
		}
	}
	return res, nil
}

func (s *OfferService) resolveSite(ctx context.Context, siteID string, now time.Time) (domain.AuctionOutcome, error) {
	var outcome domain.AuctionOutcome

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		site, err := s.repo.GetSiteForUpdate(txCtx, siteID)
		if err != nil {
			return err
		}
		active, err := s.repo.ListActiveOffers(txCtx, siteID)
		if err != nil {
			return err
		}

		outcome = domain.ResolveAuction(active, now)
		if outcome.Winner != nil && !site.Available() {
			// The site left the catalog while bids were running; nobody wins it.
			outcome.Expired = append(outcome.Expired, *outcome.Winner)
			outcome.Winner = nil
		}

		for _, offer := range outcome.Expired {
			if err := offer.Expire(); err != nil {
				return err
			}
			if err := s.repo.UpdateOffer(txCtx, offer, domain.OfferStatusActive); err != nil {
				return err
			}
		}
		if outcome.Winner == nil {
			return nil
		}

		winner := *outcome.Winner
		if err := winner.Promote(now, s.purchaseWindow); err != nil {
			return err
		}
		if err := s.repo.UpdateOffer(txCtx, winner, domain.OfferStatusActive); err != nil {
			return err
		}
		if err := s.addWonItem(txCtx, winner, now); err != nil {
			return err
		}

		event := newEvent(domain.EventAuctionWon, now, map[string]string{
			"offer_id":          winner.ID,
			"site_id":           site.ID,
			"site_title":        site.Title,
			"site_url":          site.URL,
			"user_id":           winner.UserID,
			"price":             winner.Price.String(),
			"purchase_deadline": formatTime(*winner.PurchaseDeadline),
		})
		if err := s.repo.AppendEvents(txCtx, event); err != nil {
			return err
		}

		outcome.Winner = &winner
		return nil
	})
	if err != nil {
		return domain.AuctionOutcome{}, err
	}
	return outcome, nil
}

// addWonItem puts the won site in the winner's cart. The user row is locked
// like every other cart edit, and a live reservation is extended to the new
// item so the cart never ends up partly reserved.
func (s *OfferService) addWonItem(ctx context.Context, winner domain.PriceOffer, now time.Time) error {
	if _, err := s.repo.GetUserForUpdate(ctx, winner.UserID); err != nil {
		return err
	}
	items, err := s.repo.ListCartItems(ctx, winner.UserID)
	if err != nil {
		return err
	}

	item := domain.CartItem{
		UserID:    winner.UserID,
		SiteID:    winner.SiteID,
		PriceType: domain.PriceTypeOffer,
		Price:     winner.Price,
		CreatedAt: now,
	}
	for _, existing := range items {
		if existing.Reserved(now) {
			item.ReservedAt = existing.ReservedAt
			item.ReservationExpiresAt = existing.ReservationExpiresAt
			break
		}
	}
	return s.repo.UpsertCartItem(ctx, item)
}

func fixedPriceString(site domain.Site) string {
	if !site.FixedPrice.Valid {
		return ""
	}
	return site.FixedPrice.Decimal.String()
}
