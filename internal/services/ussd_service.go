package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ruralpay/energyledger/internal/config"
	"github.com/ruralpay/energyledger/internal/models"
)

// USSD replies start with CON when the session continues and END when it
// closes.
const (
	ussdContinue = "CON "
	ussdEnd      = "END "
)

const mainMenu = "Energy Market\n1. My balance\n2. Sell energy\n3. Buy energy\n4. My offers\n5. Carbon savings"

// USSDService drives the feature-phone menu. Every step is derived from the
// full input path the gateway sends; offer lists shown to the caller are
// cached per session in Redis so a numbered choice maps to the offer that was
// on screen.
type USSDService struct {
	accounts *AccountService
	offers   *OfferService
	trades   *TradeService
	redis    *redis.Client
	config   *config.USSDConfig
	log      zerolog.Logger
}

func NewUSSDService(accounts *AccountService, offers *OfferService, trades *TradeService, rdb *redis.Client, cfg *config.USSDConfig, logger zerolog.Logger) *USSDService {
	if cfg == nil {
		cfg = config.LoadUSSDConfig()
	}
	return &USSDService{
		accounts: accounts,
		offers:   offers,
		trades:   trades,
		redis:    rdb,
		config:   cfg,
		log:      logger,
	}
}

// AccountIDForPhone maps a caller's number onto their account id.
func AccountIDForPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")
	return strings.ReplaceAll(phone, " ", "")
}

// Handle answers one gateway callback. text is the '*'-joined input path.
func (s *USSDService) Handle(ctx context.Context, sessionID, phone, text string) string {
	accountID := AccountIDForPhone(phone)
	var inputs []string
	if text = strings.TrimSpace(text); text != "" {
		inputs = strings.Split(text, "*")
	}

	logger := s.log.With().Str("session_id", sessionID).Str("account_id", accountID).Logger()
	logger.Debug().Str("text", text).Msg("ussd request")

	if len(inputs) == 0 {
		return s.reply(ussdContinue + mainMenu)
	}

	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.reply(ussdEnd + "No energy account is registered for this number.")
		}
		logger.Error().Err(err).Msg("account lookup failed")
		return s.reply(ussdEnd + ussdMessage(err))
	}

	var (
		resp string
		err  error
	)
	switch inputs[0] {
	case "1":
		resp, err = s.balance(ctx, accountID)
	case "2":
		resp, err = s.sell(ctx, accountID, inputs[1:])
	case "3":
		resp, err = s.buy(ctx, sessionID, accountID, inputs[1:])
	case "4":
		resp, err = s.myOffers(ctx, sessionID, accountID, inputs[1:])
	case "5":
		resp, err = s.carbon(ctx, accountID)
	default:
		return s.reply(ussdEnd + "Invalid option.")
	}
	if err != nil {
		if models.IsBusinessError(err) {
			logger.Debug().Err(err).Msg("ussd request rejected")
		} else {
			logger.Error().Err(err).Msg("ussd request failed")
		}
		return s.reply(ussdEnd + ussdMessage(err))
	}
	return s.reply(resp)
}

func (s *USSDService) balance(ctx context.Context, accountID string) (string, error) {
	a, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sEnergy: %s kWh (%s kWh in offers)\nMoney: %s %s",
		ussdEnd, a.Energy.Available, a.Energy.Locked, s.config.CurrencyLabel, displayMoney(a.Money.Available)), nil
}

func (s *USSDService) sell(ctx context.Context, accountID string, inputs []string) (string, error) {
	switch len(inputs) {
	case 0:
		return ussdContinue + "Enter kWh to sell:", nil
	case 1:
		if _, err := models.ParseEnergy(inputs[0]); err != nil {
			return "", err
		}
		return fmt.Sprintf("%sEnter price per kWh (%s):", ussdContinue, s.config.CurrencyLabel), nil
	}

	amount, err := models.ParseEnergy(inputs[0])
	if err != nil {
		return "", err
	}
	price, err := models.ParseMoney(inputs[1])
	if err != nil {
		return "", err
	}

	o, err := s.offers.CreateOffer(ctx, accountID, amount, price, 0)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sOffer listed: %s kWh at %s %s/kWh.\nRef: %s",
		ussdEnd, o.Amount, s.config.CurrencyLabel, o.UnitPrice.StringFixed(2), shortRef(o.ID)), nil
}

func (s *USSDService) buy(ctx context.Context, sessionID, accountID string, inputs []string) (string, error) {
	if len(inputs) == 0 {
		var shown []models.Offer
		for o, err := range s.offers.ListActive(ctx, OfferFilter{Sort: SortPriceAsc}) {
			if err != nil {
				return "", err
			}
			if o.SellerID == accountID {
				continue
			}
			shown = append(shown, o)
			if len(shown) == s.config.OffersPerPage {
				break
			}
		}
		if len(shown) == 0 {
			return ussdEnd + "No energy offers available right now.", nil
		}
		if err := s.cacheOffers(ctx, sessionID, "buy", shown); err != nil {
			return "", err
		}
		return ussdContinue + "Select offer:\n" + s.offerLines(shown), nil
	}

	offerID, err := s.cachedChoice(ctx, sessionID, "buy", inputs[0])
	if err != nil {
		return "", err
	}
	if len(inputs) == 1 {
		return ussdContinue + "Enter kWh to buy (0 for all):", nil
	}

	var requested *decimal.Decimal
	if inputs[1] != "0" {
		amount, err := models.ParseEnergy(inputs[1])
		if err != nil {
			return "", err
		}
		requested = &amount
	}

	t, err := s.trades.ExecuteTrade(ctx, accountID, offerID, requested)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sBought %s kWh for %s %s.\nCO2 saved: %s kg",
		ussdEnd, t.Amount, s.config.CurrencyLabel, displayMoney(t.TotalPrice), t.CarbonSavedKg.StringFixed(2)), nil
}

func (s *USSDService) myOffers(ctx context.Context, sessionID, accountID string, inputs []string) (string, error) {
	if len(inputs) == 0 {
		var open []models.Offer
		for o, err := range s.offers.ListActive(ctx, OfferFilter{SellerID: accountID, Sort: SortNewest}) {
			if err != nil {
				return "", err
			}
			open = append(open, o)
			if len(open) == s.config.OffersPerPage {
				break
			}
		}
		if len(open) == 0 {
			return ussdEnd + "You have no open offers.", nil
		}
		if err := s.cacheOffers(ctx, sessionID, "mine", open); err != nil {
			return "", err
		}
		return ussdContinue + "Select offer to cancel:\n" + s.offerLines(open), nil
	}

	offerID, err := s.cachedChoice(ctx, sessionID, "mine", inputs[0])
	if err != nil {
		return "", err
	}
	o, err := s.offers.CancelOffer(ctx, offerID, accountID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sOffer cancelled. %s kWh returned to your balance.", ussdEnd, o.Remaining), nil
}

func (s *USSDService) carbon(ctx context.Context, accountID string) (string, error) {
	saved, err := s.trades.CarbonSavedBy(ctx, accountID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sYour peer energy purchases have avoided %s kg of CO2.", ussdEnd, saved.StringFixed(2)), nil
}

func (s *USSDService) offerLines(offers []models.Offer) string {
	lines := make([]string, len(offers))
	for i, o := range offers {
		lines[i] = fmt.Sprintf("%d. %s kWh @ %s", i+1, o.Remaining, o.UnitPrice.StringFixed(2))
	}
	return strings.Join(lines, "\n")
}

func sessionKey(sessionID, menu string) string {
	return fmt.Sprintf("ussd:session:%s:%s", sessionID, menu)
}

func (s *USSDService) cacheOffers(ctx context.Context, sessionID, menu string, offers []models.Offer) error {
	if s.redis == nil {
		return errNoSessionStore
	}
	ids := make([]string, len(offers))
	for i, o := range offers {
		ids[i] = o.ID
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, sessionKey(sessionID, menu), data, s.config.SessionTTL).Err(); err != nil {
		return fmt.Errorf("cache session offers: %v: %w", err, models.ErrStoreUnavailable)
	}
	return nil
}

// cachedChoice resolves a 1-based menu choice against the offers shown
// earlier in the session.
func (s *USSDService) cachedChoice(ctx context.Context, sessionID, menu, choice string) (string, error) {
	if s.redis == nil {
		return "", errNoSessionStore
	}
	data, err := s.redis.Get(ctx, sessionKey(sessionID, menu)).Bytes()
	if err == redis.Nil {
		return "", errSessionExpired
	}
	if err != nil {
		return "", fmt.Errorf("read session offers: %v: %w", err, models.ErrStoreUnavailable)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return "", fmt.Errorf("decode session offers: %w", err)
	}

	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(ids) {
		return "", errInvalidChoice
	}
	return ids[n-1], nil
}

var (
	errSessionExpired = errors.New("ussd session expired")
	errInvalidChoice  = errors.New("invalid menu choice")
	errNoSessionStore = fmt.Errorf("ussd session cache not configured: %w", models.ErrStoreUnavailable)
)

// ussdMessage turns an error into the short text shown on the handset.
func ussdMessage(err error) string {
	switch {
	case errors.Is(err, errSessionExpired):
		return "Session expired. Please dial again."
	case errors.Is(err, errInvalidChoice):
		return "Invalid option."
	case errors.Is(err, models.ErrInvalidAmount):
		return "Invalid amount."
	case errors.Is(err, models.ErrInsufficientBalance):
		return "Insufficient balance."
	case errors.Is(err, models.ErrExpired):
		return "That offer has expired."
	case errors.Is(err, models.ErrSelfTrade):
		return "You cannot buy your own offer."
	case errors.Is(err, models.ErrNotOwner):
		return "You can only cancel your own offers."
	case errors.Is(err, models.ErrNotFound):
		return "Offer not found."
	case errors.Is(err, models.ErrInvalidState):
		return "This request cannot be completed."
	default:
		return "Service unavailable. Please try again later."
	}
}

func (s *USSDService) reply(msg string) string {
	if limit := s.config.MaxMessageLength; limit > 0 && len(msg) > limit {
		return msg[:limit]
	}
	return msg
}

func shortRef(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}

// displayMoney shows whole minor units with two decimals and keeps any
// sub-unit remainder a trade total may carry.
func displayMoney(m decimal.Decimal) string {
	if models.FitsPlaces(m, models.MoneyPlaces) {
		return m.StringFixed(models.MoneyPlaces)
	}
	return m.String()
}
