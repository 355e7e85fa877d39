package postgres

import (
	"context"
	"fmt"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepository struct {
	store
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{store{pool: pool}}
}

func (r *AdminRepository) CreateSite(ctx context.Context, site domain.Site) error {
	const stmt = `
INSERT INTO sites (id, title, url, fixed_price, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	var fixed *string
	if site.FixedPrice.Valid {
		s := site.FixedPrice.Decimal.String()
		fixed = &s
	}
	_, err := r.exec(ctx, stmt, site.ID, site.Title, site.URL, fixed, site.Status, site.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create site: %w", err)
	}
	return nil
}

// ListSites returns sites oldest first. An empty status lists them all.
func (r *AdminRepository) ListSites(ctx context.Context, status domain.SiteStatus) ([]domain.Site, error) {
	rows, err := r.query(ctx, `
SELECT `+siteColumns+`
FROM sites
WHERE $1 = '' OR status = $1
ORDER BY created_at, id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	sites := []domain.Site{}
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return sites, nil
}

func (r *AdminRepository) UpdateSiteStatus(ctx context.Context, siteID string, from, to domain.SiteStatus) error {
	tag, err := r.exec(ctx, `UPDATE sites SET status = $3 WHERE id = $1 AND status = $2`, siteID, from, to)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update site status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

func (r *AdminRepository) CreateUser(ctx context.Context, user domain.User) error {
	_, err := r.exec(ctx, `INSERT INTO users (id, username) VALUES ($1, $2)`, user.ID, user.Username)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
