package http

import (
	"context"
	"net/http"

	"github.com/cimillas/site-market/services/api/internal/app"
	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/shopspring/decimal"
)

// OfferService is the minimal interface needed for offer endpoints.
type OfferService interface {
	SubmitOffer(ctx context.Context, in app.SubmitOfferInput) (domain.PriceOffer, error)
	ListSiteOffers(ctx context.Context, siteID string) ([]domain.PriceOffer, error)
	UserOffer(ctx context.Context, siteID, userID string) (*domain.PriceOffer, error)
}

type submitOfferRequest struct {
	Price *decimal.Decimal `json:"price"`
}

// HandleSubmitOffer serves POST /sites/{id}/offers.
func HandleSubmitOffer(svc OfferService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitOfferRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		if req.Price == nil {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "price is required")
			return
		}

		offer, err := svc.SubmitOffer(r.Context(), app.SubmitOfferInput{
			SiteID: r.PathValue("id"),
			UserID: userFromContext(r.Context()),
			Price:  *req.Price,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newOfferResponse(offer))
	}
}

// HandleListOffers serves GET /sites/{id}/offers, highest first.
func HandleListOffers(svc OfferService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offers, err := svc.ListSiteOffers(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp := make([]offerResponse, 0, len(offers))
		for _, offer := range offers {
			resp = append(resp, newOfferResponse(offer))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleMyOffer serves GET /sites/{id}/offers/mine: the caller's open offer.
func HandleMyOffer(svc OfferService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offer, err := svc.UserOffer(r.Context(), r.PathValue("id"), userFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if offer == nil {
			writeServiceError(w, r, domain.ErrOfferNotFound)
			return
		}
		writeJSON(w, http.StatusOK, newOfferResponse(*offer))
	}
}
