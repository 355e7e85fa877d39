package notify

import (
	"context"
	"log"
	"time"

	"github.com/cimillas/site-market/services/api/internal/clock"
	"github.com/cimillas/site-market/services/api/internal/domain"
)

// OutboxStore is the queue side of the outbox table. ClaimPending hides the
// returned events from other claims until the lease runs out; each Mark call
// releases one of them.
type OutboxStore interface {
	ClaimPending(ctx context.Context, limit, maxAttempts int, now, leaseUntil time.Time) ([]domain.Event, error)
	MarkDelivered(ctx context.Context, eventID string, at time.Time) error
	MarkFailed(ctx context.Context, eventID string, reason string) error
	DeleteDeliveredBefore(ctx context.Context, before time.Time) (int, error)
}

const (
	defaultBatchSize   = 50
	defaultMaxAttempts = 5
	defaultRetention   = 7 * 24 * time.Hour
	defaultLease       = 5 * time.Minute
)

// Dispatcher drains the outbox into a Notifier. Events that keep failing are
// left in the table with their last error once maxAttempts is reached.
type Dispatcher struct {
	store       OutboxStore
	notifier    Notifier
	clock       clock.Clock
	logger      *log.Logger
	batchSize   int
	maxAttempts int
	retention   time.Duration
	lease       time.Duration
}

type DispatcherOption func(*Dispatcher)

func WithBatchSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

func WithRetention(r time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if r > 0 {
			d.retention = r
		}
	}
}

// WithLease sets how long claimed events stay hidden from other dispatchers.
// It should outlast the delivery of a full batch.
func WithLease(l time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if l > 0 {
			d.lease = l
		}
	}
}

func WithDispatcherLogger(logger *log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDispatcher(store OutboxStore, notifier Notifier, clk clock.Clock, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		notifier:    notifier,
		clock:       clk,
		logger:      log.Default(),
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		retention:   defaultRetention,
		lease:       defaultLease,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DispatchPending delivers one batch and returns how many events were
// delivered. A failed delivery is recorded on the event and does not stop
// the batch. Events whose outcome cannot be recorded are delivered again
// once their lease runs out.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	now := d.clock.Now()
	events, err := d.store.ClaimPending(ctx, d.batchSize, d.maxAttempts, now, now.Add(d.lease))
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := d.notifier.Notify(ctx, event); err != nil {
			d.logger.Printf("WARN: deliver event=%s id=%s attempt=%d: %v", event.Type, event.ID, event.Attempts+1, err)
			if err := d.store.MarkFailed(ctx, event.ID, err.Error()); err != nil {
				d.logger.Printf("WARN: record failure id=%s: %v", event.ID, err)
				continue
			}
			if event.Attempts+1 >= d.maxAttempts {
				d.logger.Printf("ERROR: event id=%s gave up after %d attempts", event.ID, d.maxAttempts)
			}
			continue
		}
		if err := d.store.MarkDelivered(ctx, event.ID, d.clock.Now()); err != nil {
			d.logger.Printf("WARN: record delivery id=%s: %v", event.ID, err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// PurgeDelivered removes delivered events older than the retention period.
func (d *Dispatcher) PurgeDelivered(ctx context.Context) (int, error) {
	return d.store.DeleteDeliveredBefore(ctx, d.clock.Now().Add(-d.retention))
}
