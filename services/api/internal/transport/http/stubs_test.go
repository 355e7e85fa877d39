package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/cimillas/site-market/services/api/internal/app"
	"github.com/cimillas/site-market/services/api/internal/domain"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const testAdminToken = "admin-secret"

type stubOffers struct {
	offer  domain.PriceOffer
	offers []domain.PriceOffer
	mine   *domain.PriceOffer
	err    error
	gotIn  app.SubmitOfferInput
}

func (s *stubOffers) SubmitOffer(ctx context.Context, in app.SubmitOfferInput) (domain.PriceOffer, error) {
	s.gotIn = in
	return s.offer, s.err
}

func (s *stubOffers) ListSiteOffers(ctx context.Context, siteID string) ([]domain.PriceOffer, error) {
	return s.offers, s.err
}

func (s *stubOffers) UserOffer(ctx context.Context, siteID, userID string) (*domain.PriceOffer, error) {
	return s.mine, s.err
}

type stubCart struct {
	view         app.CartView
	item         domain.CartItem
	reservation  app.Reservation
	availability app.Availability
	cleared      int
	err          error
	gotAdd       app.AddItemInput
	gotRemove    string
}

func (s *stubCart) GetCart(ctx context.Context, userID string) (app.CartView, error) {
	return s.view, s.err
}

func (s *stubCart) AddItem(ctx context.Context, in app.AddItemInput) (domain.CartItem, error) {
	s.gotAdd = in
	return s.item, s.err
}

func (s *stubCart) RemoveItem(ctx context.Context, userID, siteID string) error {
	s.gotRemove = siteID
	return s.err
}

func (s *stubCart) Clear(ctx context.Context, userID string) (int, error) {
	return s.cleared, s.err
}

func (s *stubCart) Reserve(ctx context.Context, userID string) (app.Reservation, error) {
	return s.reservation, s.err
}

func (s *stubCart) CheckAvailability(ctx context.Context, userID string) (app.Availability, error) {
	return s.availability, s.err
}

type stubOrders struct {
	result app.CreateOrderResult
	orders []domain.Order
	order  domain.Order
	err    error
	gotIn  app.CreateOrderInput
}

func (s *stubOrders) CreateOrder(ctx context.Context, in app.CreateOrderInput) (app.CreateOrderResult, error) {
	s.gotIn = in
	return s.result, s.err
}

func (s *stubOrders) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders, s.err
}

func (s *stubOrders) GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error) {
	return s.order, s.err
}

func (s *stubOrders) ConfirmOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.order, s.err
}

type stubAdmin struct {
	site      domain.Site
	sites     []domain.Site
	user      domain.User
	err       error
	gotStatus domain.SiteStatus
	gotSite   app.CreateSiteInput
	action    string
}

func (s *stubAdmin) CreateSite(ctx context.Context, in app.CreateSiteInput) (domain.Site, error) {
	s.gotSite = in
	return s.site, s.err
}

func (s *stubAdmin) ListSites(ctx context.Context, status domain.SiteStatus) ([]domain.Site, error) {
	s.gotStatus = status
	return s.sites, s.err
}

func (s *stubAdmin) HideSite(ctx context.Context, siteID string) (domain.Site, error) {
	s.action = "hide"
	return s.site, s.err
}

func (s *stubAdmin) RestoreSite(ctx context.Context, siteID string) (domain.Site, error) {
	s.action = "restore"
	return s.site, s.err
}

func (s *stubAdmin) CreateUser(ctx context.Context, in app.CreateUserInput) (domain.User, error) {
	return s.user, s.err
}

type stubBlocks struct {
	user     domain.User
	blocked  bool
	until    time.Time
	err      error
	gotBlock app.BlockUserInput
}

func (s *stubBlocks) BlockUser(ctx context.Context, in app.BlockUserInput) (domain.User, error) {
	s.gotBlock = in
	return s.user, s.err
}

func (s *stubBlocks) UnblockUser(ctx context.Context, userID string) error {
	return s.err
}

func (s *stubBlocks) IsUserBlocked(ctx context.Context, userID string) (bool, time.Time, error) {
	return s.blocked, s.until, s.err
}

type stubStats struct {
	stats domain.MarketStats
	err   error
}

func (s stubStats) MarketStats(ctx context.Context) (domain.MarketStats, error) {
	return s.stats, s.err
}

type testAPI struct {
	offers *stubOffers
	cart   *stubCart
	orders *stubOrders
	admin  *stubAdmin
	blocks *stubBlocks
	router http.Handler
}

func newTestAPI() *testAPI {
	api := &testAPI{
		offers: &stubOffers{},
		cart:   &stubCart{},
		orders: &stubOrders{},
		admin:  &stubAdmin{},
		blocks: &stubBlocks{},
	}
	api.router = NewRouter(Services{
		Offers:     api.offers,
		Cart:       api.cart,
		Orders:     api.orders,
		Confirmer:  api.orders,
		Admin:      api.admin,
		Blocks:     api.blocks,
		Stats:      stubStats{},
		AdminToken: testAdminToken,
	})
	return api
}

// do sends a request as user u-1; admin paths also carry the admin token.
func (a *testAPI) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set(userHeader, "u-1")
	if strings.HasPrefix(path, "/admin/") {
		req.Header.Set(adminHeader, testAdminToken)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}
