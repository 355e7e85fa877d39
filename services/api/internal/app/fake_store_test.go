package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
)

type cartKey struct {
	userID string
	siteID string
}

type blockLog struct {
	userID string
	action domain.BlockAction
	reason string
	at     time.Time
}

type fakeTxKey struct{}

// fakeStore is an in-memory implementation of every repository interface in
// this package. WithTx serializes transactions and rolls state back when fn
// fails.
type fakeStore struct {
	mu sync.Mutex

	users     map[string]domain.User
	sites     map[string]domain.Site
	offers    map[string]domain.PriceOffer
	cart      map[cartKey]domain.CartItem
	orders    map[string]domain.Order
	events    []domain.Event
	blockLogs []blockLog

	// failOn injects an error into the named method.
	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  map[string]domain.User{},
		sites:  map[string]domain.Site{},
		offers: map[string]domain.PriceOffer{},
		cart:   map[cartKey]domain.CartItem{},
		orders: map[string]domain.Order{},
		failOn: map[string]error{},
	}
}

type fakeSnapshot struct {
	users     map[string]domain.User
	sites     map[string]domain.Site
	offers    map[string]domain.PriceOffer
	cart      map[cartKey]domain.CartItem
	orders    map[string]domain.Order
	events    []domain.Event
	blockLogs []blockLog
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *fakeStore) snapshot() fakeSnapshot {
	return fakeSnapshot{
		users:     copyMap(f.users),
		sites:     copyMap(f.sites),
		offers:    copyMap(f.offers),
		cart:      copyMap(f.cart),
		orders:    copyMap(f.orders),
		events:    append([]domain.Event(nil), f.events...),
		blockLogs: append([]blockLog(nil), f.blockLogs...),
	}
}

func (f *fakeStore) restore(s fakeSnapshot) {
	f.users = s.users
	f.sites = s.sites
	f.offers = s.offers
	f.cart = s.cart
	f.orders = s.orders
	f.events = s.events
	f.blockLogs = s.blockLogs
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := f.snapshot()
	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

// lock guards calls made outside a transaction.
func (f *fakeStore) lock(ctx context.Context) func() {
	if ctx.Value(fakeTxKey{}) != nil {
		return func() {}
	}
	f.mu.Lock()
	return f.mu.Unlock
}

func (f *fakeStore) fail(method string) error {
	return f.failOn[method]
}

// fixtures

func (f *fakeStore) addUser(u domain.User) domain.User {
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addSite(s domain.Site) domain.Site {
	if s.Status == "" {
		s.Status = domain.SiteStatusAvailable
	}
	f.sites[s.ID] = s
	return s
}

func (f *fakeStore) addOffer(o domain.PriceOffer) domain.PriceOffer {
	f.offers[o.ID] = o
	return o
}

func (f *fakeStore) addCartItem(item domain.CartItem) domain.CartItem {
	f.cart[cartKey{item.UserID, item.SiteID}] = item
	return item
}

func (f *fakeStore) eventsOfType(typ domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range f.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// users

func (f *fakeStore) GetUser(ctx context.Context, userID string) (domain.User, error) {
	defer f.lock(ctx)()
	if err := f.fail("GetUser"); err != nil {
		return domain.User{}, err
	}
	u, ok := f.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserForUpdate(ctx context.Context, userID string) (domain.User, error) {
	return f.GetUser(ctx, userID)
}

func (f *fakeStore) CreateUser(ctx context.Context, user domain.User) error {
	defer f.lock(ctx)()
	for _, u := range f.users {
		if u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) BlockUser(ctx context.Context, userID string, until time.Time) error {
	defer f.lock(ctx)()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsBlocked = true
	u.BlockedUntil = nil
	if !until.IsZero() {
		u.BlockedUntil = &until
	}
	f.users[userID] = u
	return nil
}

func (f *fakeStore) UnblockUser(ctx context.Context, userID string) error {
	defer f.lock(ctx)()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsBlocked = false
	u.BlockedUntil = nil
	f.users[userID] = u
	return nil
}

func (f *fakeStore) UnblockExpiredUsers(ctx context.Context, now time.Time) ([]string, error) {
	defer f.lock(ctx)()
	var ids []string
	for id, u := range f.users {
		if u.IsBlocked && u.BlockedUntil != nil && !u.BlockedUntil.After(now) {
			u.IsBlocked = false
			u.BlockedUntil = nil
			f.users[id] = u
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) AppendBlockLog(ctx context.Context, userID string, action domain.BlockAction, reason string, at time.Time) error {
	defer f.lock(ctx)()
	f.blockLogs = append(f.blockLogs, blockLog{userID: userID, action: action, reason: reason, at: at})
	return nil
}

// sites

func (f *fakeStore) GetSite(ctx context.Context, siteID string) (domain.Site, error) {
	defer f.lock(ctx)()
	s, ok := f.sites[siteID]
	if !ok {
		return domain.Site{}, domain.ErrSiteNotFound
	}
	return s, nil
}

func (f *fakeStore) GetSiteForUpdate(ctx context.Context, siteID string) (domain.Site, error) {
	return f.GetSite(ctx, siteID)
}

func (f *fakeStore) LockSites(ctx context.Context, siteIDs []string) ([]domain.Site, error) {
	defer f.lock(ctx)()
	var out []domain.Site
	for _, id := range siteIDs {
		if s, ok := f.sites[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateSite(ctx context.Context, site domain.Site) error {
	defer f.lock(ctx)()
	if err := f.fail("CreateSite"); err != nil {
		return err
	}
	f.sites[site.ID] = site
	return nil
}

func (f *fakeStore) ListSites(ctx context.Context, status domain.SiteStatus) ([]domain.Site, error) {
	defer f.lock(ctx)()
	var out []domain.Site
	for _, s := range f.sites {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateSiteStatus(ctx context.Context, siteID string, from, to domain.SiteStatus) error {
	defer f.lock(ctx)()
	s, ok := f.sites[siteID]
	if !ok {
		return domain.ErrSiteNotFound
	}
	if s.Status != from {
		return domain.ErrConcurrentUpdate
	}
	s.Status = to
	f.sites[siteID] = s
	return nil
}

func (f *fakeStore) MarkSiteSold(ctx context.Context, siteID, buyerID string, at time.Time) error {
	defer f.lock(ctx)()
	if err := f.fail("MarkSiteSold"); err != nil {
		return err
	}
	s, ok := f.sites[siteID]
	if !ok {
		return domain.ErrSiteNotFound
	}
	if s.Status != domain.SiteStatusAvailable {
		return domain.ErrSiteUnavailable
	}
	s.Status = domain.SiteStatusSold
	s.SoldTo = &buyerID
	s.SoldAt = &at
	f.sites[siteID] = s
	return nil
}

// offers

func (f *fakeStore) sortedOffers(keep func(domain.PriceOffer) bool) []domain.PriceOffer {
	var out []domain.PriceOffer
	for _, o := range f.offers {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (f *fakeStore) ListActiveOffers(ctx context.Context, siteID string) ([]domain.PriceOffer, error) {
	defer f.lock(ctx)()
	return f.sortedOffers(func(o domain.PriceOffer) bool {
		return o.SiteID == siteID && o.Status == domain.OfferStatusActive
	}), nil
}

func (f *fakeStore) HasWinningOffer(ctx context.Context, siteID string) (bool, error) {
	defer f.lock(ctx)()
	for _, o := range f.offers {
		if o.SiteID == siteID && o.Status == domain.OfferStatusWinning {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) FindUserOffer(ctx context.Context, siteID, userID string) (*domain.PriceOffer, error) {
	defer f.lock(ctx)()
	offers := f.sortedOffers(func(o domain.PriceOffer) bool {
		return o.SiteID == siteID && o.UserID == userID &&
			(o.Status == domain.OfferStatusActive || o.Status == domain.OfferStatusWinning)
	})
	if len(offers) == 0 {
		return nil, nil
	}
	return &offers[len(offers)-1], nil
}

func (f *fakeStore) FindWinningOffer(ctx context.Context, siteID, userID string) (*domain.PriceOffer, error) {
	defer f.lock(ctx)()
	for _, o := range f.offers {
		if o.SiteID == siteID && o.UserID == userID && o.Status == domain.OfferStatusWinning {
			return &o, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetOfferForUpdate(ctx context.Context, offerID string) (domain.PriceOffer, error) {
	defer f.lock(ctx)()
	o, ok := f.offers[offerID]
	if !ok {
		return domain.PriceOffer{}, domain.ErrOfferNotFound
	}
	return o, nil
}

func (f *fakeStore) ExpireActiveOffers(ctx context.Context, siteID, userID string) (int, error) {
	defer f.lock(ctx)()
	n := 0
	for id, o := range f.offers {
		if o.SiteID == siteID && o.UserID == userID && o.Status == domain.OfferStatusActive {
			o.Status = domain.OfferStatusExpired
			f.offers[id] = o
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateOffer(ctx context.Context, offer domain.PriceOffer) error {
	defer f.lock(ctx)()
	if err := f.fail("CreateOffer"); err != nil {
		return err
	}
	f.offers[offer.ID] = offer
	return nil
}

func (f *fakeStore) ListSitesWithDueOffers(ctx context.Context, now time.Time) ([]string, error) {
	defer f.lock(ctx)()
	seen := map[string]bool{}
	var ids []string
	for _, o := range f.offers {
		if o.Status == domain.OfferStatusActive && o.Due(now) && !seen[o.SiteID] {
			seen[o.SiteID] = true
			ids = append(ids, o.SiteID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) UpdateOffer(ctx context.Context, offer domain.PriceOffer, from domain.OfferStatus) error {
	defer f.lock(ctx)()
	if err := f.fail("UpdateOffer"); err != nil {
		return err
	}
	current, ok := f.offers[offer.ID]
	if !ok {
		return domain.ErrOfferNotFound
	}
	if current.Status != from {
		return domain.ErrConcurrentUpdate
	}
	f.offers[offer.ID] = offer
	return nil
}

func (f *fakeStore) ListOverdueWinningOffers(ctx context.Context, now time.Time) ([]domain.PriceOffer, error) {
	defer f.lock(ctx)()
	return f.sortedOffers(func(o domain.PriceOffer) bool {
		return o.Status == domain.OfferStatusWinning && o.DeadlinePassed(now)
	}), nil
}

func (f *fakeStore) ListReminderCandidates(ctx context.Context, now, before time.Time) ([]domain.PriceOffer, error) {
	defer f.lock(ctx)()
	return f.sortedOffers(func(o domain.PriceOffer) bool {
		return o.Status == domain.OfferStatusWinning && o.PurchaseDeadline != nil &&
			o.PurchaseDeadline.After(now) && !o.PurchaseDeadline.After(before) &&
			o.LastReminderSent == nil
	}), nil
}

func (f *fakeStore) MarkReminderSent(ctx context.Context, offerID string, at time.Time) (bool, error) {
	defer f.lock(ctx)()
	o, ok := f.offers[offerID]
	if !ok || o.LastReminderSent != nil || o.Status != domain.OfferStatusWinning {
		return false, nil
	}
	o.LastReminderSent = &at
	f.offers[offerID] = o
	return true, nil
}

// cart

func (f *fakeStore) ListCartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	defer f.lock(ctx)()
	var out []domain.CartItem
	for k, item := range f.cart {
		if k.userID != userID {
			continue
		}
		if s, ok := f.sites[item.SiteID]; ok {
			item.Title = s.Title
			item.URL = s.URL
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SiteID < out[j].SiteID
	})
	return out, nil
}

func (f *fakeStore) CreateCartItem(ctx context.Context, item domain.CartItem) error {
	defer f.lock(ctx)()
	k := cartKey{item.UserID, item.SiteID}
	if _, ok := f.cart[k]; ok {
		return domain.ErrAlreadyInCart
	}
	f.cart[k] = item
	return nil
}

func (f *fakeStore) UpsertCartItem(ctx context.Context, item domain.CartItem) error {
	defer f.lock(ctx)()
	k := cartKey{item.UserID, item.SiteID}
	if existing, ok := f.cart[k]; ok {
		existing.PriceType = item.PriceType
		existing.Price = item.Price
		existing.ReservedAt = item.ReservedAt
		existing.ReservationExpiresAt = item.ReservationExpiresAt
		f.cart[k] = existing
		return nil
	}
	f.cart[k] = item
	return nil
}

func (f *fakeStore) DeleteCartItem(ctx context.Context, userID, siteID string) error {
	defer f.lock(ctx)()
	k := cartKey{userID, siteID}
	if _, ok := f.cart[k]; !ok {
		return domain.ErrCartItemNotFound
	}
	delete(f.cart, k)
	return nil
}

func (f *fakeStore) DeleteCart(ctx context.Context, userID string) (int, error) {
	defer f.lock(ctx)()
	n := 0
	for k := range f.cart {
		if k.userID == userID {
			delete(f.cart, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ReserveCart(ctx context.Context, userID string, reservedAt, expiresAt time.Time) (int, error) {
	defer f.lock(ctx)()
	n := 0
	for k, item := range f.cart {
		if k.userID != userID {
			continue
		}
		r, e := reservedAt, expiresAt
		item.ReservedAt = &r
		item.ReservationExpiresAt = &e
		f.cart[k] = item
		n++
	}
	return n, nil
}

func (f *fakeStore) ClearExpiredReservations(ctx context.Context, now time.Time) (int, error) {
	defer f.lock(ctx)()
	n := 0
	for k, item := range f.cart {
		if item.ReservationExpiresAt != nil && !item.ReservationExpiresAt.After(now) {
			item.ReservedAt = nil
			item.ReservationExpiresAt = nil
			f.cart[k] = item
			n++
		}
	}
	return n, nil
}

// orders

func (f *fakeStore) CreateOrder(ctx context.Context, order domain.Order) error {
	defer f.lock(ctx)()
	if err := f.fail("CreateOrder"); err != nil {
		return err
	}
	f.orders[order.ID] = order
	return nil
}

func (f *fakeStore) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	defer f.lock(ctx)()
	for _, o := range f.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	defer f.lock(ctx)()
	var out []domain.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	defer f.lock(ctx)()
	o, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeStore) ConfirmOrder(ctx context.Context, orderID string, at time.Time) error {
	defer f.lock(ctx)()
	o, ok := f.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusPending {
		return domain.ErrIllegalTransition
	}
	o.Status = domain.OrderStatusConfirmed
	o.ConfirmedAt = &at
	f.orders[orderID] = o
	return nil
}

// events

func (f *fakeStore) AppendEvents(ctx context.Context, events ...domain.Event) error {
	defer f.lock(ctx)()
	if err := f.fail("AppendEvents"); err != nil {
		return err
	}
	f.events = append(f.events, events...)
	return nil
}
