package app

import (
	"context"
	"log"
	"time"

	"github.com/cimillas/site-market/services/api/internal/scheduler"
)

// SweepIntervals sets how often each background sweep runs.
type SweepIntervals struct {
	ResolveOffers      time.Duration
	ExpireReservations time.Duration
	EnforceDeadlines   time.Duration
	SendReminders      time.Duration
	UnblockUsers       time.Duration
	DispatchEvents     time.Duration
	PurgeEvents        time.Duration
}

// EventDispatcher delivers and prunes queued domain events.
type EventDispatcher interface {
	DispatchPending(ctx context.Context) (int, error)
	PurgeDelivered(ctx context.Context) (int, error)
}

// SweepTasks wires every periodic job of the marketplace core into scheduler
// tasks. Sweeps log only when they changed something.
func SweepTasks(iv SweepIntervals, logger *log.Logger, offers *OfferService, carts *CartService, penalties *PenaltyService, dispatcher EventDispatcher) []scheduler.Task {
	if logger == nil {
		logger = log.Default()
	}
	counted := func(name string, fn func(ctx context.Context) (int, error)) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			n, err := fn(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Printf("sweep=%s affected=%d", name, n)
			}
			return nil
		}
	}

	tasks := []scheduler.Task{
		{
			Name:     "resolve-offers",
			Interval: iv.ResolveOffers,
			Run: func(ctx context.Context) error {
				res, err := offers.ResolveExpiredOffers(ctx)
				if err != nil {
					return err
				}
				if res.Sites > 0 {
					logger.Printf("sweep=resolve-offers sites=%d promoted=%d expired=%d", res.Sites, res.Promoted, res.Expired)
				}
				return nil
			},
		},
		{Name: "expire-reservations", Interval: iv.ExpireReservations, Run: counted("expire-reservations", carts.ExpireReservations)},
		{Name: "enforce-deadlines", Interval: iv.EnforceDeadlines, Run: counted("enforce-deadlines", penalties.EnforcePurchaseDeadlines)},
		{Name: "send-reminders", Interval: iv.SendReminders, Run: counted("send-reminders", penalties.SendReminders)},
		{Name: "unblock-users", Interval: iv.UnblockUsers, Run: counted("unblock-users", penalties.UnblockExpired)},
	}
	if dispatcher != nil {
		tasks = append(tasks,
			scheduler.Task{Name: "dispatch-events", Interval: iv.DispatchEvents, Run: counted("dispatch-events", dispatcher.DispatchPending)},
			scheduler.Task{Name: "purge-events", Interval: iv.PurgeEvents, Run: counted("purge-events", dispatcher.PurgeDelivered)},
		)
	}
	return tasks
}
