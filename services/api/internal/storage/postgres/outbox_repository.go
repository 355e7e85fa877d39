package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxRepository struct {
	store
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{store{pool: pool}}
}

// ClaimPending leases up to limit undelivered events, oldest first, until
// the given time. Rows locked or leased by another dispatcher are skipped.
// The claim is a single statement, so no transaction stays open while the
// events are delivered.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit, maxAttempts int, now, until time.Time) ([]domain.Event, error) {
	rows, err := r.query(ctx, `
WITH due AS (
	SELECT id
	FROM outbox_events
	WHERE delivered_at IS NULL
		AND attempts < $2
		AND (claimed_until IS NULL OR claimed_until <= $3)
	ORDER BY occurred_at
	LIMIT $1
	FOR UPDATE SKIP LOCKED
)
UPDATE outbox_events e
SET claimed_until = $4
FROM due
WHERE e.id = due.id
RETURNING e.id, e.type, e.payload, e.occurred_at, e.attempts`, limit, maxAttempts, now, until)
	if err != nil {
		return nil, fmt.Errorf("claim events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Type, &e.Payload, &e.OccurredAt, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim events: %w", err)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].OccurredAt.Before(events[j].OccurredAt) })
	return events, nil
}

func (r *OutboxRepository) MarkDelivered(ctx context.Context, eventID string, at time.Time) error {
	_, err := r.exec(ctx, `
UPDATE outbox_events
SET delivered_at = $2, attempts = attempts + 1, last_error = NULL, claimed_until = NULL
WHERE id = $1`, eventID, at)
	if err != nil {
		return fmt.Errorf("mark event delivered: %w", err)
	}
	return nil
}

// MarkFailed records the attempt and releases the lease so the next sweep
// retries the event.
func (r *OutboxRepository) MarkFailed(ctx context.Context, eventID string, reason string) error {
	_, err := r.exec(ctx, `
UPDATE outbox_events
SET attempts = attempts + 1, last_error = $2, claimed_until = NULL
WHERE id = $1`, eventID, reason)
	if err != nil {
		return fmt.Errorf("mark event failed: %w", err)
	}
	return nil
}

func (r *OutboxRepository) DeleteDeliveredBefore(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.exec(ctx, `DELETE FROM outbox_events WHERE delivered_at IS NOT NULL AND delivered_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
