package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmpyFin/ampyfin/internal/ledger"
)

func insertPending(t *testing.T, store *ledger.Store, orderID, symbol string, retries, maxRetries int) {
	t.Helper()
	require.NoError(t, store.InsertPendingOrder(context.Background(), ledger.PendingOrder{
		OrderID:         orderID,
		Symbol:          symbol,
		Side:            "BUY",
		Quantity:        3,
		SubmittedAt:     time.Now().UTC(),
		Status:          "new",
		StopLossPrice:   97,
		TakeProfitPrice: 105,
		Retries:         retries,
		MaxRetries:      maxRetries,
	}))
}

func TestPollReconcilesFilledOrder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	insertPending(t, store, "o1", "AAPL", 0, 10)

	gw := &fakeGateway{statuses: map[string]Order{
		"o1": {ID: "o1", Status: "filled", Filled: true, FilledPrice: 100, FilledQty: 3},
	}}
	trader := NewTrader(gw, fakeFeed{}, store, 0.03, 0.05, 10)

	require.NoError(t, trader.Poll(ctx))

	qty, err := store.PositionQty(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 3.0, qty)

	limit, err := store.RiskLimit(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 97.0, limit.StopLossPrice, "band from submission time survives the wait")

	pending, err := store.PendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPollDropsTerminalOrder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	insertPending(t, store, "o2", "MSFT", 0, 10)

	gw := &fakeGateway{statuses: map[string]Order{
		"o2": {ID: "o2", Status: "canceled"},
	}}
	trader := NewTrader(gw, fakeFeed{}, store, 0.03, 0.05, 10)

	require.NoError(t, trader.Poll(ctx))

	pending, err := store.PendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	qty, err := store.PositionQty(ctx, "MSFT")
	require.NoError(t, err)
	assert.Zero(t, qty)
}

func TestPollExhaustsRetryBudget(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	insertPending(t, store, "o3", "NVDA", 2, 3)

	gw := &fakeGateway{statuses: map[string]Order{
		"o3": {ID: "o3", Status: "accepted"},
	}}
	trader := NewTrader(gw, fakeFeed{}, store, 0.03, 0.05, 3)

	require.NoError(t, trader.Poll(ctx))

	pending, err := store.PendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "exhausted order leaves the poll set")
}

func TestPollIncrementsRetries(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	insertPending(t, store, "o4", "AMD", 0, 10)

	gw := &fakeGateway{statuses: map[string]Order{
		"o4": {ID: "o4", Status: "accepted"},
	}}
	trader := NewTrader(gw, fakeFeed{}, store, 0.03, 0.05, 10)

	require.NoError(t, trader.Poll(ctx))

	pending, err := store.PendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Retries)
	assert.Equal(t, "accepted", pending[0].Status)
}
