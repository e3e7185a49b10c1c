package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/observability"
)

func TestTradeService_PartialFillsToSold(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.open(t, "A", "100", "0")
	e.open(t, "B", "0", "1000")

	offer, err := e.offers.CreateOffer(ctx, "A", d("40"), d("2.0"), 0)
	require.NoError(t, err)
	e.assertBalances(t, "A", "60", "40", "0")

	trade, err := e.trades.ExecuteTrade(ctx, "B", offer.ID, ptr(d("15")))
	require.NoError(t, err)
	assert.True(t, trade.Amount.Equal(d("15")))
	assert.True(t, trade.TotalPrice.Equal(d("30")))
	assert.True(t, trade.CarbonSavedKg.Equal(d("7.125")))
	assert.Equal(t, "A", trade.SellerID)
	assert.Equal(t, "B", trade.BuyerID)

	got, err := e.offers.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferPartiallyFilled, got.Status)
	assert.True(t, got.Remaining.Equal(d("25")))
	e.assertBalances(t, "A", "60", "25", "30")
	e.assertBalances(t, "B", "15", "0", "970")

	trade, err = e.trades.ExecuteTrade(ctx, "B", offer.ID, ptr(d("25")))
	require.NoError(t, err)
	assert.True(t, trade.Amount.Equal(d("25")))

	got, err = e.offers.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferSold, got.Status)
	assert.True(t, got.Remaining.IsZero())
	e.assertBalances(t, "A", "60", "0", "80")
	e.assertBalances(t, "B", "40", "0", "920")

	_, err = e.offers.CancelOffer(ctx, offer.ID, "A")
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = e.trades.ExecuteTrade(ctx, "B", offer.ID, nil)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestTradeService_RequestCappedToRemaining(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.open(t, "A", "100", "0")
	e.open(t, "B", "0", "1000")

	offer, err := e.offers.CreateOffer(ctx, "A", d("10"), d("1.25"), 0)
	require.NoError(t, err)

	trade, err := e.trades.ExecuteTrade(ctx, "B", offer.ID, ptr(d("500")))
	require.NoError(t, err)
	assert.True(t, trade.Amount.Equal(d("10")))
	assert.True(t, trade.TotalPrice.Equal(d("12.5")))
	e.assertBalances(t, "B", "10", "0", "987.5")
}

func TestTradeService_TotalPriceIsExact(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.open(t, "A", "100", "0")
	e.open(t, "B", "0", "1000")

	offer, err := e.offers.CreateOffer(ctx, "A", d("10"), d("0.15"), 0)
	require.NoError(t, err)

	trade, err := e.trades.ExecuteTrade(ctx, "B", offer.ID, ptr(d("0.333")))
	require.NoError(t, err)
	assert.True(t, trade.TotalPrice.Equal(d("0.04995")), "total = %s", trade.TotalPrice)
	e.assertBalances(t, "A", "90", "9.667", "0.04995")
	e.assertBalances(t, "B", "0.333", "0", "999.95005")
}

func TestTradeService_SmallLotsPayFullPrice(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.open(t, "A", "1", "0")
	e.open(t, "B", "0", "100")

	offer, err := e.offers.CreateOffer(ctx, "A", d("1"), d("5"), 0)
	require.NoError(t, err)

	lot := ptr(d("0.001"))
	for i := 0; i < 1000; i++ {
		trade, err := e.trades.ExecuteTrade(ctx, "B", offer.ID, lot)
		require.NoError(t, err)
		require.True(t, trade.TotalPrice.Equal(d("0.005")), "trade %d total = %s", i, trade.TotalPrice)
	}

	got, err := e.offers.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferSold, got.Status)
	e.assertBalances(t, "A", "0", "0", "5")
	e.assertBalances(t, "B", "1", "0", "95")
}

func TestTradeService_ExpiredOffer(t *testing.T) {
	ctx := context.Background()

	t.Run("expiry releases energy before the buyer is rejected", func(t *testing.T) {
		e := newTestEngine(t)
		e.open(t, "A", "100", "0")
		e.open(t, "B", "0", "1000")

		offer, err := e.offers.CreateOffer(ctx, "A", d("50"), d("1"), time.Second)
		require.NoError(t, err)
		e.assertBalances(t, "A", "50", "50", "0")
		e.clock.Advance(time.Second)

		_, err = e.trades.ExecuteTrade(ctx, "B", offer.ID, ptr(d("10")))
		assert.ErrorIs(t, err, models.ErrExpired)
		e.assertBalances(t, "A", "100", "0", "0")
		e.assertBalances(t, "B", "0", "0", "1000")

		got, err := e.store.GetOffer(ctx, offer.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OfferExpired, got.Status)
	})

	t.Run("already swept", func(t *testing.T) {
		e := newTestEngine(t)
		e.open(t, "A", "100", "0")
		e.open(t, "B", "0", "1000")

		offer, err := e.offers.CreateOffer(ctx, "A", d("50"), d("1"), time.Second)
		require.NoError(t, err)
		e.clock.Advance(time.Minute)
		_, err = e.offers.SweepExpired(ctx)
		require.NoError(t, err)

		_, err = e.trades.ExecuteTrade(ctx, "B", offer.ID, nil)
		assert.ErrorIs(t, err, models.ErrExpired)
		e.assertBalances(t, "A", "100", "0", "0")
	})
}

func TestTradeService_SweepAndTradeRaceOnExpiredOffer(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 25; round++ {
		metrics := observability.NewMetricsWith(prometheus.NewRegistry())
		e := newTestEngine(t, WithMetrics(metrics))
		e.open(t, "A", "100", "0")
		e.open(t, "B", "0", "1000")

		offer, err := e.offers.CreateOffer(ctx, "A", d("50"), d("1"), time.Second)
		require.NoError(t, err)
		e.clock.Advance(time.Second)

		var (
			wg       sync.WaitGroup
			swept    int
			sweepErr error
			tradeErr error
		)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			swept, sweepErr = e.offers.SweepExpired(ctx)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, tradeErr = e.trades.ExecuteTrade(ctx, "B", offer.ID, ptr(d("10")))
		}()
		close(start)
		wg.Wait()

		require.NoError(t, sweepErr)
		assert.ErrorIs(t, tradeErr, models.ErrExpired)
		assert.LessOrEqual(t, swept, 1)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OffersExpired), "round %d", round)

		entries, err := e.store.ListEntries(ctx, "A", 0)
		require.NoError(t, err)
		unlocks := 0
		for _, entry := range entries {
			if entry.Operation == models.OpUnlockEnergy {
				unlocks++
			}
		}
		assert.Equal(t, 2, unlocks, "one unlock writes two journal lines")

		e.assertBalances(t, "A", "100", "0", "0")
		e.assertBalances(t, "B", "0", "0", "1000")

		got, err := e.store.GetOffer(ctx, offer.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OfferExpired, got.Status)

		trades, err := e.trades.ListTrades(ctx, models.TradeFilter{})
		require.NoError(t, err)
		assert.Empty(t, trades)
	}
}

func TestTradeService_Rejections(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.open(t, "A", "100", "500")
	e.open(t, "B", "0", "5")

	offer, err := e.offers.CreateOffer(ctx, "A", d("40"), d("2"), 0)
	require.NoError(t, err)

	tests := []struct {
		name      string
		buyer     string
		offerID   string
		requested *string
		want      error
	}{
		{"own offer", "A", offer.ID, nil, models.ErrSelfTrade},
		{"unknown offer", "B", "missing", nil, models.ErrNotFound},
		{"unknown buyer", "ghost", offer.ID, nil, models.ErrNotFound},
		{"zero request", "B", offer.ID, strPtr("0"), models.ErrInvalidAmount},
		{"negative request", "B", offer.ID, strPtr("-2"), models.ErrInvalidAmount},
		{"sub watt-hour request", "B", offer.ID, strPtr("0.0005"), models.ErrInvalidAmount},
		{"buyer cannot pay", "B", offer.ID, strPtr("3"), models.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requested *decimal.Decimal
			if tt.requested != nil {
				requested = ptr(d(*tt.requested))
			}
			_, err := e.trades.ExecuteTrade(ctx, tt.buyer, tt.offerID, requested)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	e.assertBalances(t, "A", "60", "40", "500")
	e.assertBalances(t, "B", "0", "0", "5")
	got, err := e.offers.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferActive, got.Status)
	assert.True(t, got.Remaining.Equal(d("40")))

	trades, err := e.trades.ListTrades(ctx, models.TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestTradeService_ConcurrentBuyersNeverOverfill(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.open(t, "A", "100", "0")

	offer, err := e.offers.CreateOffer(ctx, "A", d("10"), d("1"), 0)
	require.NoError(t, err)

	buyers := []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8"}
	for _, b := range buyers {
		e.open(t, b, "0", "100")
	}

	var (
		wg     sync.WaitGroup
		filled atomic.Int64
	)
	for _, b := range buyers {
		wg.Add(1)
		go func(buyer string) {
			defer wg.Done()
			trade, err := e.trades.ExecuteTrade(ctx, buyer, offer.ID, ptr(d("3")))
			if err != nil {
				assert.ErrorIs(t, err, models.ErrInvalidState)
				return
			}
			filled.Add(trade.Amount.Mul(d("1000")).IntPart())
		}(b)
	}
	wg.Wait()

	assert.Equal(t, int64(10000), filled.Load())

	got, err := e.offers.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferSold, got.Status)
	e.assertBalances(t, "A", "90", "0", "10")

	energy := d("0")
	for _, b := range buyers {
		energy = energy.Add(e.account(t, b).Energy.Available)
	}
	assert.True(t, energy.Equal(d("10")))
}

func TestTradeService_Publisher(t *testing.T) {
	ctx := context.Background()

	t.Run("settled trades are published", func(t *testing.T) {
		pub := new(MockTradePublisher)
		e := newTestEngine(t, WithTradePublisher(pub))
		e.open(t, "A", "100", "0")
		e.open(t, "B", "0", "100")

		offer, err := e.offers.CreateOffer(ctx, "A", d("10"), d("1"), 0)
		require.NoError(t, err)

		pub.On("PublishTrade", mock.Anything, mock.MatchedBy(func(tr *models.Trade) bool {
			return tr.OfferID == offer.ID && tr.Amount.Equal(d("4"))
		})).Return(nil).Once()

		_, err = e.trades.ExecuteTrade(ctx, "B", offer.ID, ptr(d("4")))
		require.NoError(t, err)
		pub.AssertExpectations(t)
	})

	t.Run("publish failure does not undo the trade", func(t *testing.T) {
		pub := new(MockTradePublisher)
		reg := prometheus.NewRegistry()
		metrics := observability.NewMetricsWith(reg)
		e := newTestEngine(t, WithTradePublisher(pub), WithMetrics(metrics))
		e.open(t, "A", "100", "0")
		e.open(t, "B", "0", "100")

		offer, err := e.offers.CreateOffer(ctx, "A", d("10"), d("1"), 0)
		require.NoError(t, err)
		pub.On("PublishTrade", mock.Anything, mock.Anything).Return(errors.New("nats: no responders")).Once()

		trade, err := e.trades.ExecuteTrade(ctx, "B", offer.ID, nil)
		require.NoError(t, err)
		assert.True(t, trade.Amount.Equal(d("10")))
		e.assertBalances(t, "B", "10", "0", "90")

		pub.AssertExpectations(t)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsPublished.WithLabelValues("error")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TradesTotal))
	})

	t.Run("rejected trades are not published", func(t *testing.T) {
		pub := new(MockTradePublisher)
		e := newTestEngine(t, WithTradePublisher(pub))
		e.open(t, "A", "100", "0")

		offer, err := e.offers.CreateOffer(ctx, "A", d("10"), d("1"), 0)
		require.NoError(t, err)

		_, err = e.trades.ExecuteTrade(ctx, "A", offer.ID, nil)
		assert.ErrorIs(t, err, models.ErrSelfTrade)
		pub.AssertNotCalled(t, "PublishTrade", mock.Anything, mock.Anything)
	})
}

func TestTradeService_HistoryAndCarbon(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.open(t, "A", "100", "0")
	e.open(t, "B", "0", "1000")
	e.open(t, "C", "50", "1000")

	first, err := e.offers.CreateOffer(ctx, "A", d("40"), d("2"), 0)
	require.NoError(t, err)
	second, err := e.offers.CreateOffer(ctx, "C", d("20"), d("1"), 0)
	require.NoError(t, err)

	t1, err := e.trades.ExecuteTrade(ctx, "B", first.ID, ptr(d("10")))
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	t2, err := e.trades.ExecuteTrade(ctx, "B", second.ID, ptr(d("20")))
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	t3, err := e.trades.ExecuteTrade(ctx, "C", first.ID, ptr(d("2")))
	require.NoError(t, err)

	got, err := e.trades.GetTrade(ctx, t2.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.OfferID)

	_, err = e.trades.GetTrade(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	byB, err := e.trades.ListTrades(ctx, models.TradeFilter{AccountID: "B"})
	require.NoError(t, err)
	require.Len(t, byB, 2)
	assert.Equal(t, t2.ID, byB[0].ID)
	assert.Equal(t, t1.ID, byB[1].ID)

	byC, err := e.trades.ListTrades(ctx, models.TradeFilter{AccountID: "C"})
	require.NoError(t, err)
	assert.Len(t, byC, 2, "C sold once and bought once")

	byOffer, err := e.trades.ListTrades(ctx, models.TradeFilter{OfferID: first.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, byOffer, 1)
	assert.Equal(t, t3.ID, byOffer[0].ID)

	saved, err := e.trades.CarbonSavedBy(ctx, "B")
	require.NoError(t, err)
	assert.True(t, saved.Equal(d("14.25")), "30 kWh × 0.475 = %s", saved)

	saved, err = e.trades.CarbonSavedBy(ctx, "A")
	require.NoError(t, err)
	assert.True(t, saved.IsZero())
}

func strPtr(s string) *string { return &s }
