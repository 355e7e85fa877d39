package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CartRepository struct {
	store
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{store{pool: pool}}
}

func (r *CartRepository) CreateCartItem(ctx context.Context, item domain.CartItem) error {
	const stmt = `
INSERT INTO cart_items (user_id, site_id, price_type, price, created_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.exec(ctx, stmt, item.UserID, item.SiteID, item.PriceType, item.Price.String(), item.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrAlreadyInCart
		}
		if isForeignKeyViolation(err) {
			return domain.ErrSiteNotFound
		}
		return fmt.Errorf("create cart item: %w", err)
	}
	return nil
}

// ReserveCart stamps every item of the user's cart with the same reservation
// window and returns how many rows it touched.
func (r *CartRepository) ReserveCart(ctx context.Context, userID string, reservedAt, expiresAt time.Time) (int, error) {
	tag, err := r.exec(ctx, `
UPDATE cart_items
SET reserved_at = $2, reservation_expires_at = $3
WHERE user_id = $1`, userID, reservedAt, expiresAt)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("reserve cart: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *CartRepository) ClearExpiredReservations(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.exec(ctx, `
UPDATE cart_items
SET reserved_at = NULL, reservation_expires_at = NULL
WHERE reservation_expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("clear expired reservations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
