package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OfferRepository struct {
	store
}

func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{store{pool: pool}}
}

func (r *OfferRepository) ListActiveOffers(ctx context.Context, siteID string) ([]domain.PriceOffer, error) {
	offers, err := r.listOffers(ctx, `
SELECT `+offerColumns+`
FROM price_offers
WHERE site_id = $1 AND status = 'active'
ORDER BY created_at, id`, siteID)
	if err != nil {
		return nil, fmt.Errorf("list active offers: %w", err)
	}
	return offers, nil
}

func (r *OfferRepository) HasWinningOffer(ctx context.Context, siteID string) (bool, error) {
	var exists bool
	err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM price_offers WHERE site_id = $1 AND status = 'winning')`, siteID).Scan(&exists)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("check winning offer: %w", err)
	}
	return exists, nil
}

// FindUserOffer returns the user's open offer on a site, active or winning.
func (r *OfferRepository) FindUserOffer(ctx context.Context, siteID, userID string) (*domain.PriceOffer, error) {
	o, err := r.findOffer(ctx, `
SELECT `+offerColumns+`
FROM price_offers
WHERE site_id = $1 AND user_id = $2 AND status IN ('active', 'winning')
ORDER BY created_at DESC
LIMIT 1`, siteID, userID)
	if err != nil {
		return nil, fmt.Errorf("find user offer: %w", err)
	}
	return o, nil
}

func (r *OfferRepository) ExpireActiveOffers(ctx context.Context, siteID, userID string) (int, error) {
	tag, err := r.exec(ctx, `
UPDATE price_offers
SET status = 'expired'
WHERE site_id = $1 AND user_id = $2 AND status = 'active'`, siteID, userID)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("expire active offers: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *OfferRepository) CreateOffer(ctx context.Context, offer domain.PriceOffer) error {
	const stmt = `
INSERT INTO price_offers (id, site_id, user_id, price, status, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		offer.ID,
		offer.SiteID,
		offer.UserID,
		offer.Price.String(),
		offer.Status,
		offer.ExpiresAt,
		offer.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrConcurrentUpdate
		}
		if isForeignKeyViolation(err) {
			return domain.ErrSiteNotFound
		}
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

// ListSitesWithDueOffers returns sites holding at least one active offer
// whose bid window has closed.
func (r *OfferRepository) ListSitesWithDueOffers(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.query(ctx, `
SELECT DISTINCT site_id
FROM price_offers
WHERE status = 'active' AND expires_at <= $1
ORDER BY site_id`, now)
	if err != nil {
		return nil, fmt.Errorf("list sites with due offers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan site id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sites with due offers: %w", err)
	}
	return ids, nil
}

// UpsertCartItem puts the won site in the winner's cart at the offer price,
// replacing a fixed-price entry for the same site. The reservation columns
// are written as given so the item joins a live cart reservation.
func (r *OfferRepository) UpsertCartItem(ctx context.Context, item domain.CartItem) error {
	const stmt = `
INSERT INTO cart_items (user_id, site_id, price_type, price, reserved_at, reservation_expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, site_id) DO UPDATE
SET price_type = EXCLUDED.price_type,
	price = EXCLUDED.price,
	reserved_at = EXCLUDED.reserved_at,
	reservation_expires_at = EXCLUDED.reservation_expires_at`

	_, err := r.exec(ctx, stmt,
		item.UserID,
		item.SiteID,
		item.PriceType,
		item.Price.String(),
		item.ReservedAt,
		item.ReservationExpiresAt,
		item.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}
