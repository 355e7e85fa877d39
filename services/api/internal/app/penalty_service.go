package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cimillas/site-market/services/api/internal/clock"
	"github.com/cimillas/site-market/services/api/internal/domain"
)

type PenaltyRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetSite(ctx context.Context, siteID string) (domain.Site, error)
	GetOfferForUpdate(ctx context.Context, offerID string) (domain.PriceOffer, error)
	ListOverdueWinningOffers(ctx context.Context, now time.Time) ([]domain.PriceOffer, error)
	ListReminderCandidates(ctx context.Context, now, before time.Time) ([]domain.PriceOffer, error)
	MarkReminderSent(ctx context.Context, offerID string, at time.Time) (bool, error)
	UpdateOffer(ctx context.Context, offer domain.PriceOffer, from domain.OfferStatus) error
	DeleteCartItem(ctx context.Context, userID, siteID string) error
	BlockUser(ctx context.Context, userID string, until time.Time) error
	UnblockUser(ctx context.Context, userID string) error
	UnblockExpiredUsers(ctx context.Context, now time.Time) ([]string, error)
	AppendBlockLog(ctx context.Context, userID string, action domain.BlockAction, reason string, at time.Time) error
	AppendEvents(ctx context.Context, events ...domain.Event) error
}

// PenaltyService blocks winners who miss their purchase deadline, reminds
// them before it passes, and handles manual and automatic unblocking.
type PenaltyService struct {
	repo              PenaltyRepository
	clock             clock.Clock
	logger            *log.Logger
	penaltyDuration   time.Duration
	reminderThreshold time.Duration
}

const (
	defaultPenaltyDuration   = 4 * time.Hour
	defaultReminderThreshold = 5 * time.Minute

	deadlineReason = "missed purchase deadline"
)

func NewPenaltyService(repo PenaltyRepository, clk clock.Clock, opts ...PenaltyServiceOption) *PenaltyService {
	svc := &PenaltyService{
		repo:              repo,
		clock:             clk,
		logger:            log.Default(),
		penaltyDuration:   defaultPenaltyDuration,
		reminderThreshold: defaultReminderThreshold,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type PenaltyServiceOption func(*PenaltyService)

// WithPenaltyDuration overrides how long a missed deadline blocks the user.
func WithPenaltyDuration(d time.Duration) PenaltyServiceOption {
	return func(s *PenaltyService) {
		if d > 0 {
			s.penaltyDuration = d
		}
	}
}

// WithReminderThreshold sets how close to the deadline the last-chance
// reminder goes out.
func WithReminderThreshold(d time.Duration) PenaltyServiceOption {
	return func(s *PenaltyService) {
		if d > 0 {
			s.reminderThreshold = d
		}
	}
}

func WithPenaltyLogger(logger *log.Logger) PenaltyServiceOption {
	return func(s *PenaltyService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Penalize expires an overdue winning offer, drops it from the cart and blocks
// the user. It is a no-op for offers that are no longer winning or whose
// deadline has not passed. When the site is no longer for sale the offer is
// expired but the user is not blocked.
func (s *PenaltyService) Penalize(ctx context.Context, offerID string) error {
	if offerID == "" {
		return domain.ErrInvalidID
	}
	_, err := s.penalize(ctx, offerID, s.clock.Now())
	return err
}

func (s *PenaltyService) penalize(ctx context.Context, offerID string, now time.Time) (bool, error) {
	applied := false
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		offer, err := s.repo.GetOfferForUpdate(txCtx, offerID)
		if err != nil {
			return err
		}
		if offer.Status != domain.OfferStatusWinning || !offer.DeadlinePassed(now) {
			return nil
		}

		if err := offer.ExpireWinner(); err != nil {
			return err
		}
		if err := s.repo.UpdateOffer(txCtx, offer, domain.OfferStatusWinning); err != nil {
			return err
		}
		if err := s.repo.DeleteCartItem(txCtx, offer.UserID, offer.SiteID); err != nil && err != domain.ErrCartItemNotFound {
			return err
		}

		// A site sold to someone else or pulled from the catalog could not be
		// bought, so the offer lapses without a block.
		site, err := s.repo.GetSite(txCtx, offer.SiteID)
		switch {
		case errors.Is(err, domain.ErrSiteNotFound):
			return nil
		case err != nil:
			return err
		case !site.Available():
			return nil
		}

		user, err := s.repo.GetUser(txCtx, offer.UserID)
		if err != nil {
			return err
		}
		until := now.Add(s.penaltyDuration)
		if blocked, current := user.BlockedAt(now); blocked && (current.IsZero() || current.After(until)) {
			// Keep a longer or indefinite block already in place.
			until = current
		}
		if err := s.block(txCtx, user, until, deadlineReason, now, offer.SiteID); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// block writes the block, its audit row and the notification event. A zero
// until blocks indefinitely.
func (s *PenaltyService) block(ctx context.Context, user domain.User, until time.Time, reason string, now time.Time, siteID string) error {
	if err := s.repo.BlockUser(ctx, user.ID, until); err != nil {
		return err
	}
	if err := s.repo.AppendBlockLog(ctx, user.ID, domain.BlockActionBlocked, reason, now); err != nil {
		return err
	}
	payload := map[string]string{
		"user_id":  user.ID,
		"username": user.Username,
		"reason":   reason,
	}
	if !until.IsZero() {
		payload["blocked_until"] = formatTime(until)
	}
	if siteID != "" {
		payload["site_id"] = siteID
	}
	return s.repo.AppendEvents(ctx, newEvent(domain.EventUserBlocked, now, payload))
}

// EnforcePurchaseDeadlines penalizes every winning offer whose purchase
// deadline has passed and returns how many were penalized.
func (s *PenaltyService) EnforcePurchaseDeadlines(ctx context.Context) (int, error) {
	now := s.clock.Now()
	overdue, err := s.repo.ListOverdueWinningOffers(ctx, now)
	if err != nil {
		return 0, err
	}

	penalized := 0
	for _, offer := range overdue {
		if err := ctx.Err(); err != nil {
			return penalized, err
		}
		applied, err := s.penalize(ctx, offer.ID, now)
		if err != nil {
			s.logger.Printf("WARN: penalize offer=%s user=%s: %v", offer.ID, offer.UserID, err)
			continue
		}
		if applied {
			penalized++
		}
	}
	return penalized, nil
}

// SendReminders queues one last-chance reminder per winning offer whose
// deadline falls within the reminder threshold.
func (s *PenaltyService) SendReminders(ctx context.Context) (int, error) {
	now := s.clock.Now()
	candidates, err := s.repo.ListReminderCandidates(ctx, now, now.Add(s.reminderThreshold))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, offer := range candidates {
		if offer.PurchaseDeadline == nil {
			continue
		}
		queued := false
		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			ok, err := s.repo.MarkReminderSent(txCtx, offer.ID, now)
			if err != nil || !ok {
				return err
			}
			payload := map[string]string{
				"offer_id":          offer.ID,
				"site_id":           offer.SiteID,
				"user_id":           offer.UserID,
				"price":             offer.Price.String(),
				"purchase_deadline": formatTime(*offer.PurchaseDeadline),
			}
			if site, err := s.repo.GetSite(txCtx, offer.SiteID); err == nil {
				payload["site_title"] = site.Title
				payload["site_url"] = site.URL
			}
			if err := s.repo.AppendEvents(txCtx, newEvent(domain.EventLastChance, now, payload)); err != nil {
				return err
			}
			queued = true
			return nil
		})
		if err != nil {
			s.logger.Printf("WARN: reminder offer=%s: %v", offer.ID, err)
			continue
		}
		if queued {
			sent++
		}
	}
	return sent, nil
}

type BlockUserInput struct {
	UserID string
	// Duration of zero blocks until manually unblocked.
	Duration time.Duration
	Reason   string
}

// BlockUser is the administrative block.
func (s *PenaltyService) BlockUser(ctx context.Context, in BlockUserInput) (domain.User, error) {
	if in.UserID == "" {
		return domain.User{}, domain.ErrInvalidID
	}
	if in.Duration < 0 {
		return domain.User{}, domain.ErrInvalidDuration
	}
	reason := in.Reason
	if reason == "" {
		reason = "blocked by administrator"
	}

	now := s.clock.Now()
	var result domain.User
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetUser(txCtx, in.UserID)
		if err != nil {
			return err
		}
		var until time.Time
		if in.Duration > 0 {
			until = now.Add(in.Duration)
		}
		if err := s.block(txCtx, user, until, reason, now, ""); err != nil {
			return err
		}
		user.IsBlocked = true
		user.BlockedUntil = nil
		if !until.IsZero() {
			user.BlockedUntil = &until
		}
		result = user
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return result, nil
}

func (s *PenaltyService) UnblockUser(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrInvalidID
	}
	now := s.clock.Now()

	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetUser(txCtx, userID)
		if err != nil {
			return err
		}
		if err := s.repo.UnblockUser(txCtx, userID); err != nil {
			return err
		}
		if err := s.repo.AppendBlockLog(txCtx, userID, domain.BlockActionUnblocked, "unblocked by administrator", now); err != nil {
			return err
		}
		return s.repo.AppendEvents(txCtx, newEvent(domain.EventUserUnblocked, now, map[string]string{
			"user_id":  user.ID,
			"username": user.Username,
		}))
	})
}

// UnblockExpired lifts every timed block that has run out.
func (s *PenaltyService) UnblockExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	var count int

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ids, err := s.repo.UnblockExpiredUsers(txCtx, now)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := s.repo.AppendBlockLog(txCtx, id, domain.BlockActionAutoUnblocked, "block expired", now); err != nil {
				return err
			}
		}
		count = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// IsUserBlocked reports an effective block and its end, zero when indefinite.
func (s *PenaltyService) IsUserBlocked(ctx context.Context, userID string) (bool, time.Time, error) {
	if userID == "" {
		return false, time.Time{}, domain.ErrInvalidID
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return false, time.Time{}, err
	}
	blocked, until := user.BlockedAt(s.clock.Now())
	return blocked, until, nil
}
