// Package notify delivers domain events queued in the outbox to the admin
// chat. Delivery happens after the producing transaction has committed, so a
// slow or failing channel never blocks a marketplace transition.
package notify

import (
	"context"
	"log"

	"github.com/cimillas/site-market/services/api/internal/domain"
)

// Notifier delivers one event. Returning an error leaves the event queued
// for another attempt.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}

// LogNotifier writes rendered events to a logger. It stands in for the chat
// channel when no bot token is configured.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event domain.Event) error {
	n.logger.Printf("notify event=%s id=%s\n%s", event.Type, event.ID, Render(event))
	return nil
}
