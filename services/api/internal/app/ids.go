package app

import (
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/google/uuid"
)

func newUUID() string {
	return uuid.NewString()
}

func newEvent(typ domain.EventType, at time.Time, payload map[string]string) domain.Event {
	return domain.Event{
		ID:         newUUID(),
		Type:       typ,
		Payload:    payload,
		OccurredAt: at,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
