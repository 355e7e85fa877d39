package app

import (
	"context"
	"strings"

	"github.com/cimillas/site-market/services/api/internal/clock"
	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/shopspring/decimal"
)

type AdminRepository interface {
	CreateSite(ctx context.Context, site domain.Site) error
	ListSites(ctx context.Context, status domain.SiteStatus) ([]domain.Site, error)
	UpdateSiteStatus(ctx context.Context, siteID string, from, to domain.SiteStatus) error
	GetSite(ctx context.Context, siteID string) (domain.Site, error)
	CreateUser(ctx context.Context, user domain.User) error
}

// AdminService manages the catalog and user accounts the marketplace core
// reads from.
type AdminService struct {
	repo  AdminRepository
	clock clock.Clock
}

func NewAdminService(repo AdminRepository, clk clock.Clock) *AdminService {
	return &AdminService{
		repo:  repo,
		clock: clk,
	}
}

type CreateSiteInput struct {
	Title      string
	URL        string
	FixedPrice *decimal.Decimal
}

func (s *AdminService) CreateSite(ctx context.Context, in CreateSiteInput) (domain.Site, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Site{}, domain.ErrSiteTitleRequired
	}
	url := strings.TrimSpace(in.URL)
	if url == "" {
		return domain.Site{}, domain.ErrSiteURLRequired
	}

	site := domain.Site{
		ID:        newUUID(),
		Title:     title,
		URL:       url,
		Status:    domain.SiteStatusAvailable,
		CreatedAt: s.clock.Now(),
	}
	if in.FixedPrice != nil {
		if !domain.ValidPrice(*in.FixedPrice) {
			return domain.Site{}, domain.ErrInvalidPrice
		}
		site.FixedPrice = decimal.NewNullDecimal(*in.FixedPrice)
	}

	if err := s.repo.CreateSite(ctx, site); err != nil {
		return domain.Site{}, err
	}
	return site, nil
}

// ListSites returns the catalog, optionally filtered by status.
func (s *AdminService) ListSites(ctx context.Context, status domain.SiteStatus) ([]domain.Site, error) {
	if status != "" && !status.Valid() {
		return nil, domain.ErrInvalidSiteStatus
	}
	return s.repo.ListSites(ctx, status)
}

// HideSite takes an available site off sale. Open offers on it expire at the
// next resolution sweep and cart entries drop on the next availability check.
func (s *AdminService) HideSite(ctx context.Context, siteID string) (domain.Site, error) {
	return s.changeStatus(ctx, siteID, domain.SiteStatusAvailable, domain.SiteStatusHidden)
}

func (s *AdminService) RestoreSite(ctx context.Context, siteID string) (domain.Site, error) {
	return s.changeStatus(ctx, siteID, domain.SiteStatusHidden, domain.SiteStatusAvailable)
}

func (s *AdminService) changeStatus(ctx context.Context, siteID string, from, to domain.SiteStatus) (domain.Site, error) {
	if siteID == "" {
		return domain.Site{}, domain.ErrInvalidID
	}
	site, err := s.repo.GetSite(ctx, siteID)
	if err != nil {
		return domain.Site{}, err
	}
	if site.Status == domain.SiteStatusSold {
		return domain.Site{}, domain.ErrSiteSold
	}
	if site.Status == to {
		return site, nil
	}
	if site.Status != from {
		return domain.Site{}, domain.ErrIllegalTransition
	}
	if err := s.repo.UpdateSiteStatus(ctx, siteID, from, to); err != nil {
		return domain.Site{}, err
	}
	site.Status = to
	return site, nil
}

type CreateUserInput struct {
	Username string
}

func (s *AdminService) CreateUser(ctx context.Context, in CreateUserInput) (domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return domain.User{}, domain.ErrUsernameRequired
	}
	user := domain.User{
		ID:       newUUID(),
		Username: username,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}
