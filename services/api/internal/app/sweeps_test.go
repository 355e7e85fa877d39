package app

import (
	"context"
	"testing"
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/cimillas/site-market/services/api/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDispatcher struct {
	dispatched int
	purged     int
}

func (d *countingDispatcher) DispatchPending(ctx context.Context) (int, error) {
	d.dispatched++
	return 0, nil
}

func (d *countingDispatcher) PurgeDelivered(ctx context.Context) (int, error) {
	d.purged++
	return 0, nil
}

func testIntervals() SweepIntervals {
	return SweepIntervals{
		ResolveOffers:      time.Minute,
		ExpireReservations: 2 * time.Minute,
		EnforceDeadlines:   2 * time.Minute,
		SendReminders:      time.Minute,
		UnblockUsers:       5 * time.Minute,
		DispatchEvents:     15 * time.Second,
		PurgeEvents:        24 * time.Hour,
	}
}

func TestSweepTasks_RunOnce(t *testing.T) {
	ctx := context.Background()
	m := newMarketFixture()
	m.user("u1")
	m.site("s1", "")
	_, err := m.offers.SubmitOffer(ctx, SubmitOfferInput{SiteID: "s1", UserID: "u1", Price: dec("10")})
	require.NoError(t, err)

	d := &countingDispatcher{}
	s := scheduler.New(quietLogger(), SweepTasks(testIntervals(), quietLogger(), m.offers, m.carts, m.penalties, d)...)

	m.clock.Advance(31 * time.Minute)
	require.NoError(t, s.RunOnce(ctx, "resolve-offers"))
	_, ok := m.store.cart[cartKey{"u1", "s1"}]
	assert.True(t, ok, "winner's cart holds the site")

	m.clock.Advance(16 * time.Minute)
	require.NoError(t, s.RunOnce(ctx, "enforce-deadlines"))
	assert.True(t, m.store.users["u1"].IsBlocked)

	m.clock.Advance(4 * time.Hour)
	require.NoError(t, s.RunOnce(ctx, "unblock-users"))
	assert.False(t, m.store.users["u1"].IsBlocked)

	for _, name := range []string{"expire-reservations", "send-reminders", "dispatch-events", "purge-events"} {
		require.NoError(t, s.RunOnce(ctx, name), name)
	}
	assert.Equal(t, 1, d.dispatched)
	assert.Equal(t, 1, d.purged)
	assert.Len(t, m.store.eventsOfType(domain.EventAuctionWon), 1)
}

func TestSweepTasks_WithoutDispatcher(t *testing.T) {
	m := newMarketFixture()
	tasks := SweepTasks(testIntervals(), quietLogger(), m.offers, m.carts, m.penalties, nil)
	assert.Len(t, tasks, 5)
}
