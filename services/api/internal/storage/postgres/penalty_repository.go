package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PenaltyRepository struct {
	store
}

func NewPenaltyRepository(pool *pgxpool.Pool) *PenaltyRepository {
	return &PenaltyRepository{store{pool: pool}}
}

func (r *PenaltyRepository) GetOfferForUpdate(ctx context.Context, offerID string) (domain.PriceOffer, error) {
	o, err := scanOffer(r.queryRow(ctx, `SELECT `+offerColumns+` FROM price_offers WHERE id = $1 FOR UPDATE`, offerID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.PriceOffer{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PriceOffer{}, domain.ErrOfferNotFound
		}
		return domain.PriceOffer{}, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

func (r *PenaltyRepository) ListOverdueWinningOffers(ctx context.Context, now time.Time) ([]domain.PriceOffer, error) {
	offers, err := r.listOffers(ctx, `
SELECT `+offerColumns+`
FROM price_offers
WHERE status = 'winning' AND purchase_deadline < $1
ORDER BY purchase_deadline`, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue offers: %w", err)
	}
	return offers, nil
}

// ListReminderCandidates returns winning offers due within (now, before] that
// have not been reminded yet.
func (r *PenaltyRepository) ListReminderCandidates(ctx context.Context, now, before time.Time) ([]domain.PriceOffer, error) {
	offers, err := r.listOffers(ctx, `
SELECT `+offerColumns+`
FROM price_offers
WHERE status = 'winning'
  AND purchase_deadline > $1
  AND purchase_deadline <= $2
  AND last_reminder_sent IS NULL
ORDER BY purchase_deadline`, now, before)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	return offers, nil
}

// MarkReminderSent claims the reminder for an offer. It reports false when
// another sweep got there first.
func (r *PenaltyRepository) MarkReminderSent(ctx context.Context, offerID string, at time.Time) (bool, error) {
	tag, err := r.exec(ctx, `
UPDATE price_offers
SET last_reminder_sent = $2
WHERE id = $1 AND status = 'winning' AND last_reminder_sent IS NULL`, offerID, at)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// BlockUser sets the block in one statement. A zero until blocks
// indefinitely.
func (r *PenaltyRepository) BlockUser(ctx context.Context, userID string, until time.Time) error {
	tag, err := r.exec(ctx, `UPDATE users SET is_blocked = TRUE, blocked_until = $2 WHERE id = $1`, userID, nullableTime(until))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("block user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PenaltyRepository) UnblockUser(ctx context.Context, userID string) error {
	tag, err := r.exec(ctx, `UPDATE users SET is_blocked = FALSE, blocked_until = NULL WHERE id = $1`, userID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("unblock user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PenaltyRepository) UnblockExpiredUsers(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.query(ctx, `
UPDATE users
SET is_blocked = FALSE, blocked_until = NULL
WHERE is_blocked AND blocked_until IS NOT NULL AND blocked_until <= $1
RETURNING id`, now)
	if err != nil {
		return nil, fmt.Errorf("unblock expired users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unblock expired users: %w", err)
	}
	return ids, nil
}

func (r *PenaltyRepository) AppendBlockLog(ctx context.Context, userID string, action domain.BlockAction, reason string, at time.Time) error {
	_, err := r.exec(ctx, `
INSERT INTO block_logs (user_id, action, reason, created_at)
VALUES ($1, $2, $3, $4)`, userID, action, reason, at)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("append block log: %w", err)
	}
	return nil
}
