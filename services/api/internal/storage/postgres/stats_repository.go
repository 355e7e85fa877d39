package postgres

import (
	"context"
	"fmt"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepository struct {
	store
}

func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{store{pool: pool}}
}

func (r *StatsRepository) MarketStats(ctx context.Context) (domain.MarketStats, error) {
	var (
		stats   domain.MarketStats
		revenue string
	)
	err := r.queryRow(ctx, `
SELECT
	(SELECT COUNT(*) FROM users),
	(SELECT COUNT(*) FROM users WHERE is_blocked AND (blocked_until IS NULL OR blocked_until > NOW())),
	(SELECT COUNT(*) FROM sites WHERE status = 'available'),
	(SELECT COUNT(*) FROM sites WHERE status = 'sold'),
	(SELECT COUNT(*) FROM price_offers WHERE status = 'active'),
	(SELECT COUNT(*) FROM price_offers WHERE status = 'winning'),
	(SELECT COUNT(*) FROM orders WHERE status = 'pending'),
	(SELECT COUNT(*) FROM orders WHERE status = 'confirmed'),
	(SELECT COALESCE(SUM(total_amount), 0)::text FROM orders WHERE status <> 'cancelled')`).Scan(
		&stats.Users,
		&stats.BlockedUsers,
		&stats.AvailableSites,
		&stats.SoldSites,
		&stats.ActiveOffers,
		&stats.WinningOffers,
		&stats.PendingOrders,
		&stats.ConfirmedOrders,
		&revenue,
	)
	if err != nil {
		return domain.MarketStats{}, fmt.Errorf("market stats: %w", err)
	}
	if stats.Revenue, err = parseDecimal(revenue); err != nil {
		return domain.MarketStats{}, err
	}
	return stats, nil
}
