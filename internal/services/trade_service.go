package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/observability"
	"github.com/ruralpay/energyledger/internal/store"
)

// TradePublisher exports settled trades to downstream consumers.
type TradePublisher interface {
	PublishTrade(ctx context.Context, t *models.Trade) error
}

// TradeService settles buy requests against single offers.
type TradeService struct {
	store     store.Store
	ledger    *LedgerService
	offers    *OfferService
	carbon    *CarbonCalculator
	publisher TradePublisher
	metrics   *observability.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

func NewTradeService(st store.Store, ledger *LedgerService, offers *OfferService, carbon *CarbonCalculator, opts ...Option) *TradeService {
	d := defaultDeps(opts)
	if carbon == nil {
		carbon = NewCarbonCalculator(DefaultCarbonFactor)
	}
	return &TradeService{
		store:     st,
		ledger:    ledger,
		offers:    offers,
		carbon:    carbon,
		publisher: d.publisher,
		metrics:   d.metrics,
		log:       d.log,
		now:       d.now,
	}
}

// ExecuteTrade buys up to requested kWh from the offer; nil buys everything
// that remains. Requests above the remaining amount are capped to it.
//
// The offer is re-read, validated, settled and updated while its lock is held
// and inside one storage unit, so two buyers can never fill the same energy.
func (s *TradeService) ExecuteTrade(ctx context.Context, buyerID, offerID string, requested *decimal.Decimal) (trade *models.Trade, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOp("EXECUTE_TRADE", start, err) }()

	if requested != nil {
		if err := models.ValidateEnergy(*requested); err != nil {
			return nil, fmt.Errorf("requested amount: %w", err)
		}
	}

	trade, err = s.execute(ctx, buyerID, offerID, requested)
	if err != nil {
		if models.IsBusinessError(err) {
			s.log.Debug().Err(err).Str("buyer_id", buyerID).Str("offer_id", offerID).Msg("trade rejected")
		} else {
			s.log.Error().Err(err).Str("buyer_id", buyerID).Str("offer_id", offerID).Msg("trade failed")
		}
		return nil, err
	}

	s.metrics.RecordTrade(trade.Amount.InexactFloat64())
	s.log.Info().
		Str("trade_id", trade.ID).
		Str("offer_id", offerID).
		Str("buyer_id", buyerID).
		Str("seller_id", trade.SellerID).
		Str("amount", trade.Amount.String()).
		Str("total_price", trade.TotalPrice.String()).
		Msg("trade settled")

	if s.publisher != nil {
		perr := s.publisher.PublishTrade(ctx, trade)
		s.metrics.RecordPublish(perr)
		if perr != nil {
			s.log.Warn().Err(perr).Str("trade_id", trade.ID).Msg("trade event not published")
		}
	}
	return trade, nil
}

func (s *TradeService) execute(ctx context.Context, buyerID, offerID string, requested *decimal.Decimal) (*models.Trade, error) {
	unlock := s.offers.locks.Lock(offerID)
	defer unlock()

	now := s.now()

	// an offer past its expiry is expired and committed before the buyer is
	// told, so the seller's energy is released even though the trade fails
	_, expired, err := s.offers.expireLocked(ctx, offerID, now)
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, fmt.Errorf("offer %s: %w", offerID, models.ErrExpired)
	}

	var trade *models.Trade
	tradeID := newID()
	ctx = WithReference(ctx, tradeID)

	err = runInScope(ctx, s.store, func(ctx context.Context) error {
		o, err := s.store.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if o.Status == models.OfferExpired {
			return fmt.Errorf("offer %s: %w", offerID, models.ErrExpired)
		}
		if !o.Status.Open() {
			return fmt.Errorf("offer %s is %s: %w", offerID, o.Status, models.ErrInvalidState)
		}
		if o.SellerID == buyerID {
			return fmt.Errorf("offer %s: %w", offerID, models.ErrSelfTrade)
		}

		fill := o.Remaining
		if requested != nil && requested.LessThan(fill) {
			fill = *requested
		}
		if !fill.IsPositive() {
			return models.ErrInvalidAmount
		}
		total := models.TotalPrice(fill, o.UnitPrice)

		if err := s.ledger.SettleTrade(ctx, buyerID, o.SellerID, fill, total); err != nil {
			return err
		}

		o.Remaining = o.Remaining.Sub(fill)
		next := models.OfferPartiallyFilled
		if o.Remaining.IsZero() {
			next = models.OfferSold
		}
		if err := o.TransitionTo(next, now); err != nil {
			return err
		}
		if err := s.store.UpdateOffer(ctx, o); err != nil {
			return err
		}

		carbon, err := s.carbon.CarbonSaved(fill)
		if err != nil {
			return err
		}
		t := &models.Trade{
			ID:            tradeID,
			OfferID:       o.ID,
			BuyerID:       buyerID,
			SellerID:      o.SellerID,
			Amount:        fill,
			UnitPrice:     o.UnitPrice,
			TotalPrice:    total,
			CarbonSavedKg: carbon,
			ExecutedAt:    now,
		}
		if err := s.store.AppendTrade(ctx, t); err != nil {
			return err
		}
		trade = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trade, nil
}

func (s *TradeService) GetTrade(ctx context.Context, tradeID string) (*models.Trade, error) {
	return s.store.GetTrade(ctx, tradeID)
}

// ListTrades returns trade history, most recent first.
func (s *TradeService) ListTrades(ctx context.Context, f models.TradeFilter) ([]*models.Trade, error) {
	return s.store.ListTrades(ctx, f)
}

// CarbonSavedBy sums the carbon figure over every trade the account bought.
func (s *TradeService) CarbonSavedBy(ctx context.Context, accountID string) (decimal.Decimal, error) {
	trades, err := s.store.ListTrades(ctx, models.TradeFilter{AccountID: accountID})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, t := range trades {
		if t.BuyerID == accountID {
			total = total.Add(t.CarbonSavedKg)
		}
	}
	return total, nil
}
