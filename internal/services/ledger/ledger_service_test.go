package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/models"
	"github.com/rajivgeraev/reloop-api/internal/repository"
	"github.com/rajivgeraev/reloop-api/internal/repository/memory"
)

func newTestLedger(t *testing.T, coins map[string]int64) (*LedgerService, *memory.Store) {
	t.Helper()
	store := memory.New()
	for id, c := range coins {
		_, err := store.EnsureUser(context.Background(), &models.User{ID: id, Name: id, Coins: c})
		require.NoError(t, err)
	}
	return NewLedgerService(store, logger.Discard()), store
}

func TestGrant(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLedger(t, map[string]int64{"u": 10})

	balance, err := svc.Grant(ctx, "u", 15, "badge:first_trade")
	require.NoError(t, err)
	assert.Equal(t, int64(25), balance)

	u, err := store.GetUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.XP, "опыт равен floor(amount/2)")

	history, err := svc.History(ctx, "u", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(15), history[0].Amount)
	assert.Equal(t, int64(25), history[0].BalanceAfter)

	_, err = svc.Grant(ctx, "u", 0, "")
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	_, err = svc.Grant(ctx, "ghost", 5, "")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestSettle_MovesCoinsAndStats(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLedger(t, map[string]int64{"buyer": 100, "seller": 10})

	var settlement *Settlement
	err := store.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		settlement, err = svc.Settle(ctx, tx, "buyer", "seller", 40, "t1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, &Settlement{BuyerBalance: 60, SellerBalance: 50}, settlement)

	buyer, _ := store.GetUser(ctx, "buyer")
	seller, _ := store.GetUser(ctx, "seller")
	assert.Equal(t, int64(60), buyer.Coins)
	assert.Equal(t, int64(50), seller.Coins)
	assert.Equal(t, 1, buyer.ItemsTraded)
	assert.Equal(t, 1, seller.ItemsTraded)
	assert.True(t, seller.CO2Saved.Equal(CO2PerTrade))
	assert.True(t, buyer.CO2Saved.IsZero())

	entries, err := store.ListLedgerEntries(ctx, "buyer", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-40), entries[0].Amount)
	assert.Equal(t, "t1", entries[0].TradeID)
}

func TestSettle_InsufficientFundsChangesNothing(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLedger(t, map[string]int64{"buyer": 20, "seller": 10})

	err := store.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		_, err := svc.Settle(ctx, tx, "buyer", "seller", 40, "t1")
		return err
	})
	assert.Equal(t, apperrors.CodeInsufficientFunds, apperrors.CodeOf(err))

	buyer, _ := store.GetUser(ctx, "buyer")
	seller, _ := store.GetUser(ctx, "seller")
	assert.Equal(t, int64(20), buyer.Coins)
	assert.Equal(t, int64(10), seller.Coins)
	assert.Zero(t, buyer.ItemsTraded)
}

type flakyStore struct {
	*memory.Store
	fail bool
}

func (f *flakyStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	if f.fail {
		return nil, errors.New("таймаут чтения")
	}
	return f.Store.GetUser(ctx, id)
}

func TestGetBalance_FallsBackToCache(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	_, err := mem.EnsureUser(ctx, &models.User{ID: "u", Coins: 42})
	require.NoError(t, err)

	store := &flakyStore{Store: mem}
	svc := NewLedgerService(store, logger.Discard())

	balance, err := svc.GetBalance(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance)

	store.fail = true
	balance, err = svc.GetBalance(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance)

	_, err = svc.GetBalance(ctx, "never-seen")
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))

	store.fail = false
	balance, err = svc.GetBalance(ctx, "never-seen")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t, map[string]int64{"a": 0, "b": 0, "c": 0})

	_, err := svc.Grant(ctx, "b", 100, "")
	require.NoError(t, err)
	_, err = svc.Grant(ctx, "c", 10, "")
	require.NoError(t, err)

	board, err := svc.Leaderboard(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "b", board[0].ID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, int64(50), board[0].XP)
	assert.Equal(t, "c", board[1].ID)
}
