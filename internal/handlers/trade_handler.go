package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ruralpay/energyledger/internal/middleware"
	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/services"
)

type TradeHandler struct {
	trades    *services.TradeService
	validator *ValidationHelper
	log       zerolog.Logger
}

func NewTradeHandler(trades *services.TradeService, logger zerolog.Logger) *TradeHandler {
	return &TradeHandler{
		trades:    trades,
		validator: NewValidationHelper(),
		log:       logger,
	}
}

type executeTradeRequest struct {
	OfferID string `json:"offerId" validate:"required"`
	Amount  string `json:"amount,omitempty" validate:"omitempty,numeric"`
}

// ExecuteTrade buys energy from an offer
// @Summary Execute Trade
// @Description Buy from an open offer. Without amount the whole remainder is bought; larger amounts are capped to what remains.
// @Tags Trades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body executeTradeRequest true "Trade request"
// @Success 201 {object} models.Trade
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /trades [post]
func (h *TradeHandler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := middleware.AccountID(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req executeTradeRequest
	if !h.validator.decodeRequest(w, r, &req) {
		return
	}

	var requested *decimal.Decimal
	if req.Amount != "" {
		amount, err := models.ParseEnergy(req.Amount)
		if err != nil {
			SendErrorResponse(w, "amount must have at most 3 decimal places", http.StatusBadRequest, nil)
			return
		}
		requested = &amount
	}

	trade, err := h.trades.ExecuteTrade(r.Context(), buyerID, req.OfferID, requested)
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusCreated, trade)
}

// GetTrade returns one executed trade
// @Summary Get Trade
// @Tags Trades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Trade ID"
// @Success 200 {object} models.Trade
// @Failure 404 {object} ErrorResponse
// @Router /trades/{id} [get]
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := h.trades.GetTrade(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, trade)
}

// ListTrades returns trade history, optionally for one offer
// @Summary List Trades
// @Tags Trades
// @Produce json
// @Security BearerAuth
// @Param offer query string false "Offer ID"
// @Param limit query int false "Maximum trades"
// @Success 200 {array} models.Trade
// @Router /trades [get]
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit, _, ok := pageParams(w, r)
	if !ok {
		return
	}
	trades, err := h.trades.ListTrades(r.Context(), models.TradeFilter{
		OfferID: r.URL.Query().Get("offer"),
		Limit:   limit,
	})
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, nonNil(trades))
}
