package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/store"
)

func TestStore_Accounts(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := models.NewAccount("254700000001", decimal.NewFromInt(100), time.Now())
	require.NoError(t, s.CreateAccount(ctx, a))
	assert.Equal(t, 1, a.Version)

	t.Run("duplicate id", func(t *testing.T) {
		err := s.CreateAccount(ctx, models.NewAccount("254700000001", decimal.Zero, time.Now()))
		assert.ErrorIs(t, err, models.ErrAlreadyExists)
	})

	t.Run("reads are copies", func(t *testing.T) {
		got, err := s.GetAccount(ctx, a.ID)
		require.NoError(t, err)
		got.Money.Available = decimal.Zero

		again, err := s.GetAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, again.Money.Available.Equal(decimal.NewFromInt(100)))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.GetAccount(ctx, "nobody")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("compare and set", func(t *testing.T) {
		first, _ := s.GetAccount(ctx, a.ID)
		second, _ := s.GetAccount(ctx, a.ID)

		first.Energy.Available = decimal.NewFromInt(5)
		require.NoError(t, s.UpdateAccounts(ctx, first))
		assert.Equal(t, 2, first.Version)

		second.Energy.Available = decimal.NewFromInt(7)
		assert.ErrorIs(t, s.UpdateAccounts(ctx, second), models.ErrVersionConflict)

		stored, _ := s.GetAccount(ctx, a.ID)
		assert.True(t, stored.Energy.Available.Equal(decimal.NewFromInt(5)))
	})

	t.Run("multi-account update is all or nothing", func(t *testing.T) {
		b := models.NewAccount("254700000002", decimal.Zero, time.Now())
		require.NoError(t, s.CreateAccount(ctx, b))

		current, _ := s.GetAccount(ctx, a.ID)
		stale := b.Clone()
		stale.Version = 99
		current.Money.Available = decimal.Zero

		assert.ErrorIs(t, s.UpdateAccounts(ctx, current, stale), models.ErrVersionConflict)
		stored, _ := s.GetAccount(ctx, a.ID)
		assert.True(t, stored.Money.Available.Equal(decimal.NewFromInt(100)))
	})

	t.Run("list is ordered and paged", func(t *testing.T) {
		all, err := s.ListAccounts(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "254700000001", all[0].ID)

		page, err := s.ListAccounts(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "254700000002", page[0].ID)

		empty, err := s.ListAccounts(ctx, 10, 5)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	a := models.NewAccount("a", decimal.NewFromInt(10), now)
	require.NoError(t, s.CreateAccount(ctx, a))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		acc, err := s.GetAccount(ctx, "a")
		if err != nil {
			return err
		}
		acc.Money.Available = decimal.Zero
		if err := s.UpdateAccounts(ctx, acc); err != nil {
			return err
		}
		if err := s.CreateOffer(ctx, &models.Offer{ID: "o1", SellerID: "a", Status: models.OfferActive, CreatedAt: now}); err != nil {
			return err
		}
		if err := s.AppendTrade(ctx, &models.Trade{ID: "t1", OfferID: "o1"}); err != nil {
			return err
		}
		if err := s.AppendEntries(ctx, &models.LedgerEntry{ID: "e1", AccountID: "a"}); err != nil {
			return err
		}

		// nested units join the outer one
		return s.WithinTx(ctx, func(ctx context.Context) error {
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	acc, err := s.GetAccount(ctx, "a")
	require.NoError(t, err)
	assert.True(t, acc.Money.Available.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, acc.Version)

	_, err = s.GetOffer(ctx, "o1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetTrade(ctx, "t1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	entries, err := s.ListEntries(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_RollbackKeepsInterleavedCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	appended := make(chan struct{})
	resume := make(chan struct{})
	boom := errors.New("boom")

	done := make(chan error, 1)
	go func() {
		done <- s.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.AppendTrade(ctx, &models.Trade{ID: "t-x", BuyerID: "x"}); err != nil {
				return err
			}
			if err := s.AppendEntries(ctx, &models.LedgerEntry{ID: "e-x", AccountID: "x"}); err != nil {
				return err
			}
			close(appended)
			<-resume
			return boom
		})
	}()

	<-appended
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.AppendTrade(ctx, &models.Trade{ID: "t-y", BuyerID: "y"}); err != nil {
			return err
		}
		return s.AppendEntries(ctx,
			&models.LedgerEntry{ID: "e-y1", AccountID: "y"},
			&models.LedgerEntry{ID: "e-y2", AccountID: "y"},
		)
	})
	require.NoError(t, err)
	close(resume)
	require.ErrorIs(t, <-done, boom)

	entriesY, err := s.ListEntries(ctx, "y", 0)
	require.NoError(t, err)
	require.Len(t, entriesY, 2)
	assert.Equal(t, "e-y2", entriesY[0].ID)
	entriesX, err := s.ListEntries(ctx, "x", 0)
	require.NoError(t, err)
	assert.Empty(t, entriesX)

	trade, err := s.GetTrade(ctx, "t-y")
	require.NoError(t, err)
	assert.Equal(t, "y", trade.BuyerID)
	_, err = s.GetTrade(ctx, "t-x")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// the index stays consistent for later appends
	require.NoError(t, s.AppendTrade(ctx, &models.Trade{ID: "t-z", BuyerID: "y"}))
	all, err := s.ListTrades(ctx, models.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t-z", all[0].ID)
	assert.Equal(t, "t-y", all[1].ID)
	trade, err = s.GetTrade(ctx, "t-z")
	require.NoError(t, err)
	assert.Equal(t, "t-z", trade.ID)
}

func TestStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		return s.CreateAccount(ctx, models.NewAccount("a", decimal.Zero, time.Now()))
	})
	require.NoError(t, err)

	_, err = s.GetAccount(ctx, "a")
	assert.NoError(t, err)
}

func TestStore_Offers(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Now()

	offers := []*models.Offer{
		{ID: "o2", SellerID: "a", Status: models.OfferActive, CreatedAt: base.Add(time.Second)},
		{ID: "o1", SellerID: "a", Status: models.OfferSold, CreatedAt: base},
		{ID: "o3", SellerID: "b", Status: models.OfferPartiallyFilled, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, o := range offers {
		require.NoError(t, s.CreateOffer(ctx, o))
	}

	open, err := s.ListOffers(ctx, store.OfferQuery{
		Statuses: []models.OfferStatus{models.OfferActive, models.OfferPartiallyFilled},
	})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "o2", open[0].ID)
	assert.Equal(t, "o3", open[1].ID)

	bySeller, err := s.ListOffers(ctx, store.OfferQuery{SellerID: "a"})
	require.NoError(t, err)
	require.Len(t, bySeller, 2)
	assert.Equal(t, "o1", bySeller[0].ID)

	o, err := s.GetOffer(ctx, "o2")
	require.NoError(t, err)
	stale := o.Clone()
	o.Status = models.OfferCancelled
	require.NoError(t, s.UpdateOffer(ctx, o))
	assert.ErrorIs(t, s.UpdateOffer(ctx, stale), models.ErrVersionConflict)
	assert.ErrorIs(t, s.UpdateOffer(ctx, &models.Offer{ID: "missing"}), models.ErrNotFound)
}

func TestStore_TradesAndEntries(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.AppendTrade(ctx, &models.Trade{ID: "t1", OfferID: "o1", BuyerID: "b", SellerID: "a"}))
	require.NoError(t, s.AppendTrade(ctx, &models.Trade{ID: "t2", OfferID: "o2", BuyerID: "c", SellerID: "a"}))
	require.NoError(t, s.AppendTrade(ctx, &models.Trade{ID: "t3", OfferID: "o2", BuyerID: "c", SellerID: "b"}))
	assert.ErrorIs(t, s.AppendTrade(ctx, &models.Trade{ID: "t1"}), models.ErrAlreadyExists)

	forB, err := s.ListTrades(ctx, models.TradeFilter{AccountID: "b"})
	require.NoError(t, err)
	require.Len(t, forB, 2)
	assert.Equal(t, "t3", forB[0].ID)

	limited, err := s.ListTrades(ctx, models.TradeFilter{OfferID: "o2", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "t3", limited[0].ID)

	require.NoError(t, s.AppendEntries(ctx,
		&models.LedgerEntry{ID: "e1", AccountID: "a", Delta: decimal.NewFromInt(1)},
		&models.LedgerEntry{ID: "e2", AccountID: "b", Delta: decimal.NewFromInt(2)},
		&models.LedgerEntry{ID: "e3", AccountID: "a", Delta: decimal.NewFromInt(3)},
	))
	entries, err := s.ListEntries(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e3", entries[0].ID)
}
