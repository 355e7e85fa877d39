package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// store carries the pool and the queries shared by several repositories.
// Every query joins the transaction in ctx when there is one.
type store struct {
	pool *pgxpool.Pool
}

func (s *store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.pool, fn)
}

func (s *store) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return s.pool.Exec(ctx, sql, args...)
}

func (s *store) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.pool.QueryRow(ctx, sql, args...)
}

func (s *store) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return s.pool.Query(ctx, sql, args...)
}

// Prices travel as text so NUMERIC keeps its exact scale.
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

const userColumns = `id, username, is_blocked, blocked_until`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.IsBlocked, &u.BlockedUntil)
	return u, err
}

func (s *store) getUser(ctx context.Context, userID string, lock bool) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	u, err := scanUser(s.queryRow(ctx, query, userID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.User{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.getUser(ctx, userID, false)
}

// GetUserForUpdate locks the user row, serializing cart and checkout
// operations of one user.
func (s *store) GetUserForUpdate(ctx context.Context, userID string) (domain.User, error) {
	return s.getUser(ctx, userID, true)
}

const siteColumns = `id, title, url, fixed_price::text, status, sold_to, sold_at, created_at`

func scanSite(row pgx.Row) (domain.Site, error) {
	var (
		site  domain.Site
		fixed *string
	)
	if err := row.Scan(&site.ID, &site.Title, &site.URL, &fixed, &site.Status, &site.SoldTo, &site.SoldAt, &site.CreatedAt); err != nil {
		return domain.Site{}, err
	}
	price, err := parseNullDecimal(fixed)
	if err != nil {
		return domain.Site{}, err
	}
	site.FixedPrice = price
	return site, nil
}

func (s *store) getSite(ctx context.Context, siteID string, lock bool) (domain.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	site, err := scanSite(s.queryRow(ctx, query, siteID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Site{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Site{}, domain.ErrSiteNotFound
		}
		return domain.Site{}, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}

func (s *store) GetSite(ctx context.Context, siteID string) (domain.Site, error) {
	return s.getSite(ctx, siteID, false)
}

func (s *store) GetSiteForUpdate(ctx context.Context, siteID string) (domain.Site, error) {
	return s.getSite(ctx, siteID, true)
}

// LockSites locks the given sites in id order so concurrent checkouts
// over overlapping carts cannot deadlock. Missing ids are left out.
func (s *store) LockSites(ctx context.Context, siteIDs []string) ([]domain.Site, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}
	rows, err := s.query(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, siteIDs)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("lock sites: %w", err)
	}
	defer rows.Close()

	var sites []domain.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("lock sites: %w", err)
	}
	return sites, nil
}

const offerColumns = `id, site_id, user_id, price::text, status, expires_at, purchase_deadline, last_reminder_sent, created_at`

func scanOffer(row pgx.Row) (domain.PriceOffer, error) {
	var (
		o     domain.PriceOffer
		price string
	)
	if err := row.Scan(&o.ID, &o.SiteID, &o.UserID, &price, &o.Status, &o.ExpiresAt, &o.PurchaseDeadline, &o.LastReminderSent, &o.CreatedAt); err != nil {
		return domain.PriceOffer{}, err
	}
	p, err := parseDecimal(price)
	if err != nil {
		return domain.PriceOffer{}, err
	}
	o.Price = p
	return o, nil
}

func (s *store) listOffers(ctx context.Context, query string, args ...any) ([]domain.PriceOffer, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, err
	}
	defer rows.Close()

	var offers []domain.PriceOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, err
	}
	return offers, nil
}

func (s *store) findOffer(ctx context.Context, query string, args ...any) (*domain.PriceOffer, error) {
	o, err := scanOffer(s.queryRow(ctx, query, args...))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (s *store) FindWinningOffer(ctx context.Context, siteID, userID string) (*domain.PriceOffer, error) {
	o, err := s.findOffer(ctx,
		`SELECT `+offerColumns+` FROM price_offers WHERE site_id = $1 AND user_id = $2 AND status = 'winning'`,
		siteID, userID)
	if err != nil {
		return nil, fmt.Errorf("find winning offer: %w", err)
	}
	return o, nil
}

// UpdateOffer writes the mutable offer fields, guarded by the status the
// caller read. A row that moved on in the meantime yields ErrConcurrentUpdate.
func (s *store) UpdateOffer(ctx context.Context, offer domain.PriceOffer, from domain.OfferStatus) error {
	const stmt = `
UPDATE price_offers
SET status = $2, purchase_deadline = $3, last_reminder_sent = $4
WHERE id = $1 AND status = $5`

	tag, err := s.exec(ctx, stmt, offer.ID, offer.Status, offer.PurchaseDeadline, offer.LastReminderSent, from)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrConcurrentUpdate
		}
		return fmt.Errorf("update offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

const cartColumns = `c.user_id, c.site_id, c.price_type, c.price::text, c.reserved_at, c.reservation_expires_at, c.created_at, s.title, s.url`

func scanCartItem(row pgx.Row) (domain.CartItem, error) {
	var (
		item  domain.CartItem
		price string
	)
	if err := row.Scan(&item.UserID, &item.SiteID, &item.PriceType, &price, &item.ReservedAt, &item.ReservationExpiresAt, &item.CreatedAt, &item.Title, &item.URL); err != nil {
		return domain.CartItem{}, err
	}
	p, err := parseDecimal(price)
	if err != nil {
		return domain.CartItem{}, err
	}
	item.Price = p
	return item, nil
}

func (s *store) ListCartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	const query = `
SELECT ` + cartColumns + `
FROM cart_items c
JOIN sites s ON s.id = c.site_id
WHERE c.user_id = $1
ORDER BY c.created_at, c.site_id`

	rows, err := s.query(ctx, query, userID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	return items, nil
}

func (s *store) DeleteCartItem(ctx context.Context, userID, siteID string) error {
	tag, err := s.exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND site_id = $2`, userID, siteID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (s *store) DeleteCart(ctx context.Context, userID string) (int, error) {
	tag, err := s.exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("delete cart: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// AppendEvents queues events in the outbox inside the caller's transaction.
func (s *store) AppendEvents(ctx context.Context, events ...domain.Event) error {
	const stmt = `
INSERT INTO outbox_events (id, type, payload, occurred_at)
VALUES ($1, $2, $3, $4)`

	for _, e := range events {
		payload := e.Payload
		if payload == nil {
			payload = map[string]string{}
		}
		if _, err := s.exec(ctx, stmt, e.ID, string(e.Type), payload, e.OccurredAt); err != nil {
			return fmt.Errorf("append event %s: %w", e.Type, err)
		}
	}
	return nil
}
