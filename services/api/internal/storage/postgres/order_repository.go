package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	store
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{store{pool: pool}}
}

const orderColumns = `id, user_id, idempotency_key, total_amount::text, status, payment_method, notes, created_at, confirmed_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o     domain.Order
		total string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.IdempotencyKey, &total, &o.Status, &o.PaymentMethod, &o.Notes, &o.CreatedAt, &o.ConfirmedAt); err != nil {
		return domain.Order{}, err
	}
	t, err := parseDecimal(total)
	if err != nil {
		return domain.Order{}, err
	}
	o.Total = t
	return o, nil
}

func (r *OrderRepository) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	o, err := scanOrder(r.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND idempotency_key = $2`, userID, key))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order by idempotency key: %w", err)
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder inserts the order and its items.
func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	return r.WithTx(ctx, func(txCtx context.Context) error {
		const orderStmt = `
INSERT INTO orders (id, user_id, idempotency_key, total_amount, status, payment_method, notes, created_at, confirmed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

		_, err := r.exec(txCtx, orderStmt,
			order.ID,
			order.UserID,
			order.IdempotencyKey,
			order.Total.String(),
			order.Status,
			order.PaymentMethod,
			order.Notes,
			order.CreatedAt,
			order.ConfirmedAt,
		)
		if err != nil {
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			if isUniqueViolation(err) {
				return domain.ErrConcurrentUpdate
			}
			return fmt.Errorf("create order: %w", err)
		}

		const itemStmt = `
INSERT INTO order_items (id, order_id, site_id, price, price_type)
VALUES ($1, $2, $3, $4, $5)`

		for _, item := range order.Items {
			_, err := r.exec(txCtx, itemStmt, item.ID, order.ID, item.SiteID, item.Price.String(), item.PriceType)
			if err != nil {
				if isUniqueViolation(err) {
					return domain.ErrSiteUnavailable
				}
				if isForeignKeyViolation(err) {
					return domain.ErrSiteNotFound
				}
				return fmt.Errorf("create order item: %w", err)
			}
		}
		return nil
	})
}

// MarkSiteSold flips an available site to sold. A site that is no longer
// available yields ErrSiteUnavailable.
func (r *OrderRepository) MarkSiteSold(ctx context.Context, siteID, buyerID string, at time.Time) error {
	tag, err := r.exec(ctx, `
UPDATE sites
SET status = 'sold', sold_to = $2, sold_at = $3
WHERE id = $1 AND status = 'available'`, siteID, buyerID, at)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("mark site sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSiteUnavailable
	}
	return nil
}

func (r *OrderRepository) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list orders: %w", err)
	}

	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if txFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(r.queryRow(ctx, query, orderID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepository) ConfirmOrder(ctx context.Context, orderID string, at time.Time) error {
	tag, err := r.exec(ctx, `
UPDATE orders
SET status = 'confirmed', confirmed_at = $2
WHERE id = $1 AND status = 'pending'`, orderID, at)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("confirm order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIllegalTransition
	}
	return nil
}

func (r *OrderRepository) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := r.query(ctx, `
SELECT id, order_id, site_id, price::text, price_type
FROM order_items
WHERE order_id = $1
ORDER BY site_id`, order.ID)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item  domain.OrderItem
			price string
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.SiteID, &price, &item.PriceType); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		p, err := parseDecimal(price)
		if err != nil {
			return err
		}
		item.Price = p
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	return nil
}
