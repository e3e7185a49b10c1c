package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/services"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type AccountHandler struct {
	accounts  *services.AccountService
	trades    *services.TradeService
	validator *ValidationHelper
	log       zerolog.Logger
}

func NewAccountHandler(accounts *services.AccountService, trades *services.TradeService, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		trades:    trades,
		validator: NewValidationHelper(),
		log:       logger,
	}
}

type createAccountRequest struct {
	AccountID    string `json:"accountId" validate:"required,max=64"`
	InitialMoney string `json:"initialMoney,omitempty" validate:"omitempty,numeric"`
}

// CreateAccount opens a trading account
// @Summary Create Account
// @Description Open an account with zero energy and an optional starting money balance
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createAccountRequest true "Account request"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /accounts [post]
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !h.validator.decodeRequest(w, r, &req) {
		return
	}

	initial := decimal.Zero
	if req.InitialMoney != "" {
		var err error
		if initial, err = models.ParseMoney(req.InitialMoney); err != nil {
			SendErrorResponse(w, "initialMoney must have at most 2 decimal places", http.StatusBadRequest, nil)
			return
		}
	}

	account, err := h.accounts.CreateAccount(r.Context(), req.AccountID, initial)
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusCreated, account)
}

// GetAccount returns balances for one account
// @Summary Get Account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, account)
}

// ListAccounts pages through accounts ordered by id
// @Summary List Accounts
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Account
// @Router /accounts [get]
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	accounts, err := h.accounts.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, nonNil(accounts))
}

// Deactivate blocks an account from credits and trading
// @Summary Deactivate Account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /accounts/{id}/deactivate [post]
func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.DeactivateAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, account)
}

// Reactivate lifts a deactivation
// @Summary Reactivate Account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /accounts/{id}/reactivate [post]
func (h *AccountHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.ReactivateAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, account)
}

// ListEntries returns the account journal
// @Summary Account Journal
// @Description Ledger entries for the account, most recent first
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {array} models.LedgerEntry
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id}/entries [get]
func (h *AccountHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit, _, ok := pageParams(w, r)
	if !ok {
		return
	}
	entries, err := h.accounts.ListEntries(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, nonNil(entries))
}

// ListTrades returns trades where the account bought or sold
// @Summary Account Trades
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param limit query int false "Maximum trades"
// @Success 200 {array} models.Trade
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id}/trades [get]
func (h *AccountHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit, _, ok := pageParams(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.accounts.GetAccount(r.Context(), id); err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	trades, err := h.trades.ListTrades(r.Context(), models.TradeFilter{AccountID: id, Limit: limit})
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, nonNil(trades))
}

// CarbonSaved reports CO2 avoided by the account's purchases
// @Summary Carbon Savings
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} object{accountId=string,carbonSavedKg=string}
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id}/carbon [get]
func (h *AccountHandler) CarbonSaved(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.accounts.GetAccount(r.Context(), id); err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	saved, err := h.trades.CarbonSavedBy(r.Context(), id)
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, map[string]any{
		"accountId":     id,
		"carbonSavedKg": saved.StringFixed(2),
	})
}

func pageParams(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = defaultPageSize
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			SendErrorResponse(w, "limit must be between 1 and 500", http.StatusBadRequest, nil)
			return 0, 0, false
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			SendErrorResponse(w, "offset must be a non-negative integer", http.StatusBadRequest, nil)
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
