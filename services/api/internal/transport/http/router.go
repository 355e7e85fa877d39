package http

import "net/http"

// Services bundles everything the router dispatches to. Stats and DB may be nil.
type Services struct {
	Offers     OfferService
	Cart       CartService
	Orders     OrderService
	Confirmer  OrderConfirmer
	Admin      AdminSiteService
	Blocks     BlockService
	Stats      StatsService
	DB         Pinger
	AdminToken string
}

// NewRouter registers every route. User routes require X-User-ID and admin
// routes require X-Admin-Token.
func NewRouter(s Services) http.Handler {
	mux := http.NewServeMux()
	user := func(h http.HandlerFunc) http.Handler { return RequireUser(h) }
	admin := func(h http.HandlerFunc) http.Handler { return RequireAdmin(s.AdminToken, h) }

	mux.HandleFunc("GET /health", HealthHandler(s.DB))

	mux.Handle("POST /sites/{id}/offers", user(HandleSubmitOffer(s.Offers)))
	mux.Handle("GET /sites/{id}/offers", user(HandleListOffers(s.Offers)))
	mux.Handle("GET /sites/{id}/offers/mine", user(HandleMyOffer(s.Offers)))

	mux.Handle("GET /cart", user(HandleGetCart(s.Cart)))
	mux.Handle("DELETE /cart", user(HandleClearCart(s.Cart)))
	mux.Handle("POST /cart/items", user(HandleAddCartItem(s.Cart)))
	mux.Handle("DELETE /cart/items/{site_id}", user(HandleRemoveCartItem(s.Cart)))
	mux.Handle("POST /cart/reserve", user(HandleReserveCart(s.Cart)))
	mux.Handle("POST /cart/check-availability", user(HandleCheckAvailability(s.Cart)))

	mux.Handle("POST /orders", user(HandleCreateOrder(s.Orders)))
	mux.Handle("GET /orders", user(HandleListOrders(s.Orders)))
	mux.Handle("GET /orders/{id}", user(HandleGetOrder(s.Orders)))

	mux.Handle("GET /me/block-status", user(HandleBlockStatus(s.Blocks)))

	mux.Handle("/admin/sites", admin(HandleAdminSites(s.Admin)))
	mux.Handle("POST /admin/sites/{id}/{action}", admin(HandleAdminSiteStatus(s.Admin)))
	mux.Handle("POST /admin/users", admin(HandleAdminCreateUser(s.Admin)))
	mux.Handle("POST /admin/users/{id}/block", admin(HandleAdminBlockUser(s.Blocks)))
	mux.Handle("POST /admin/users/{id}/unblock", admin(HandleAdminUnblockUser(s.Blocks)))
	mux.Handle("POST /admin/orders/{id}/confirm", admin(HandleAdminConfirmOrder(s.Confirmer)))
	if s.Stats != nil {
		mux.Handle("GET /admin/stats", admin(HandleAdminStats(s.Stats)))
	}

	mux.Handle("/", NotFoundHandler())
	return mux
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
}
