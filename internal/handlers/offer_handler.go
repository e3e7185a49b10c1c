package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ruralpay/energyledger/internal/middleware"
	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/services"
)

type OfferHandler struct {
	offers    *services.OfferService
	validator *ValidationHelper
	log       zerolog.Logger
}

func NewOfferHandler(offers *services.OfferService, logger zerolog.Logger) *OfferHandler {
	return &OfferHandler{
		offers:    offers,
		validator: NewValidationHelper(),
		log:       logger,
	}
}

type createOfferRequest struct {
	Amount    string `json:"amount" validate:"required,numeric"`
	UnitPrice string `json:"unitPrice" validate:"required,numeric"`
	TTL       string `json:"ttl,omitempty"`
}

// CreateOffer lists energy for sale
// @Summary Create Offer
// @Description Lock energy from the caller's balance and list it at a unit price
// @Tags Offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createOfferRequest true "Offer request (ttl as Go duration, e.g. 2h)"
// @Success 201 {object} models.Offer
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /offers [post]
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := middleware.AccountID(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req createOfferRequest
	if !h.validator.decodeRequest(w, r, &req) {
		return
	}

	amount, err := models.ParseEnergy(req.Amount)
	if err != nil {
		SendErrorResponse(w, "amount must have at most 3 decimal places", http.StatusBadRequest, nil)
		return
	}
	price, err := models.ParseMoney(req.UnitPrice)
	if err != nil {
		SendErrorResponse(w, "unitPrice must have at most 2 decimal places", http.StatusBadRequest, nil)
		return
	}
	var ttl time.Duration
	if req.TTL != "" {
		if ttl, err = time.ParseDuration(req.TTL); err != nil {
			SendErrorResponse(w, "ttl must be a duration such as 90m or 2h", http.StatusBadRequest, nil)
			return
		}
	}

	offer, err := h.offers.CreateOffer(r.Context(), sellerID, amount, price, ttl)
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusCreated, offer)
}

// ListOffers returns open offers
// @Summary List Offers
// @Description Active and partially filled offers that have not expired
// @Tags Offers
// @Produce json
// @Param seller query string false "Seller account"
// @Param minPrice query string false "Minimum unit price"
// @Param maxPrice query string false "Maximum unit price"
// @Param sort query string false "price_asc, newest or remaining_desc"
// @Param limit query int false "Maximum offers"
// @Success 200 {array} models.Offer
// @Failure 400 {object} ErrorResponse
// @Router /offers [get]
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, err := services.ParseSortOrder(q.Get("sort"))
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	limit, _, ok := pageParams(w, r)
	if !ok {
		return
	}

	filter := services.OfferFilter{SellerID: q.Get("seller"), Sort: sort, Limit: limit}
	if filter.MinPrice, err = optionalDecimal(q, "minPrice"); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if filter.MaxPrice, err = optionalDecimal(q, "maxPrice"); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	offers := []models.Offer{}
	for o, err := range h.offers.ListActive(r.Context(), filter) {
		if err != nil {
			sendServiceError(w, h.log, err)
			return
		}
		offers = append(offers, o)
	}
	SendJSON(w, http.StatusOK, offers)
}

// GetOffer returns one offer in any state
// @Summary Get Offer
// @Tags Offers
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} models.Offer
// @Failure 404 {object} ErrorResponse
// @Router /offers/{id} [get]
func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.offers.GetOffer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, offer)
}

// CancelOffer withdraws the caller's offer
// @Summary Cancel Offer
// @Description Cancel an open offer and return its unsold energy to the seller
// @Tags Offers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offer ID"
// @Success 200 {object} models.Offer
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /offers/{id} [delete]
func (h *OfferHandler) CancelOffer(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := middleware.AccountID(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	offer, err := h.offers.CancelOffer(r.Context(), chi.URLParam(r, "id"), requesterID)
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, offer)
}

func optionalDecimal(q url.Values, name string) (*decimal.Decimal, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &d, nil
}
