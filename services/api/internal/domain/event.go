package domain

import "time"

type EventType string

const (
	EventOfferCreated  EventType = "offer.created"
	EventAuctionWon    EventType = "auction.won"
	EventLastChance    EventType = "auction.last_chance"
	EventUserBlocked   EventType = "user.blocked"
	EventUserUnblocked EventType = "user.unblocked"
	EventOrderCreated  EventType = "order.created"
)

// Event is a domain event recorded in the outbox alongside the transition
// that produced it and delivered later by the notification dispatcher.
type Event struct {
	ID          string
	Type        EventType
	Payload     map[string]string
	OccurredAt  time.Time
	Attempts    int
	DeliveredAt *time.Time
}
