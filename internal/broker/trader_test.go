package broker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmpyFin/ampyfin/internal/ledger"
	"github.com/AmpyFin/ampyfin/internal/pricefeed"
	"github.com/AmpyFin/ampyfin/internal/strategy"
)

type submission struct {
	symbol string
	qty    float64
	side   Side
}

type fakeGateway struct {
	submissions []submission
	submitOrder Order
	submitErr   error
	statuses    map[string]Order
	account     Account
}

func (g *fakeGateway) SubmitMarketOrder(ctx context.Context, symbol string, qty float64, side Side, clientOrderID string) (Order, error) {
	g.submissions = append(g.submissions, submission{symbol: symbol, qty: qty, side: side})
	return g.submitOrder, g.submitErr
}

func (g *fakeGateway) OrderStatus(ctx context.Context, orderID string) (Order, error) {
	return g.statuses[orderID], nil
}

func (g *fakeGateway) Account(ctx context.Context) (Account, error) {
	return g.account, nil
}

type fakeFeed struct {
	prices map[string]float64
}

func (f fakeFeed) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return 0, pricefeed.ErrUnavailable
	}
	return price, nil
}

func (f fakeFeed) History(ctx context.Context, symbol, period string) (strategy.Series, error) {
	return nil, pricefeed.ErrUnavailable
}

func newStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestExecuteQueuedBuyImmediateFill(t *testing.T) {
	store := newStore(t)
	gw := &fakeGateway{submitOrder: Order{
		ID: "o1", Status: "filled", Filled: true, FilledPrice: 100, FilledQty: 5,
	}}
	trader := NewTrader(gw, fakeFeed{prices: map[string]float64{"AAPL": 100}}, store, 0.03, 0.05, 10)
	ctx := context.Background()

	placed, err := trader.ExecuteQueuedBuy(ctx, "AAPL", 5)
	require.NoError(t, err)
	assert.True(t, placed)
	require.Len(t, gw.submissions, 1)
	assert.Equal(t, SideBuy, gw.submissions[0].side)

	qty, err := store.PositionQty(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 5.0, qty)

	limit, err := store.RiskLimit(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 97.0, limit.StopLossPrice)
	assert.Equal(t, 105.0, limit.TakeProfitPrice)

	pending, err := store.PendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestExecuteQueuedBuyParksUnfilledOrder(t *testing.T) {
	store := newStore(t)
	gw := &fakeGateway{submitOrder: Order{ID: "o2", Status: "new"}}
	trader := NewTrader(gw, fakeFeed{prices: map[string]float64{"MSFT": 300}}, store, 0.03, 0.05, 10)
	ctx := context.Background()

	placed, err := trader.ExecuteQueuedBuy(ctx, "MSFT", 2)
	require.NoError(t, err)
	assert.True(t, placed)

	qty, err := store.PositionQty(ctx, "MSFT")
	require.NoError(t, err)
	assert.Zero(t, qty, "no position until the fill confirms")

	pending, err := store.PendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "o2", pending[0].OrderID)
	assert.Equal(t, 291.0, pending[0].StopLossPrice)
	assert.Equal(t, 315.0, pending[0].TakeProfitPrice)
	assert.Equal(t, 10, pending[0].MaxRetries)
}

func TestExecuteQueuedBuyFailsWithoutPrice(t *testing.T) {
	store := newStore(t)
	gw := &fakeGateway{}
	trader := NewTrader(gw, fakeFeed{}, store, 0.03, 0.05, 10)

	_, err := trader.ExecuteQueuedBuy(context.Background(), "NVDA", 1)
	assert.ErrorIs(t, err, pricefeed.ErrUnavailable)
	assert.Empty(t, gw.submissions)
}

func TestExecuteSellReducesPosition(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.AdjustPosition(ctx, "AAPL", 10))

	gw := &fakeGateway{submitOrder: Order{
		ID: "o3", Status: "filled", Filled: true, FilledPrice: 110, FilledQty: 4,
	}}
	trader := NewTrader(gw, fakeFeed{}, store, 0.03, 0.05, 10)

	placed, err := trader.ExecuteSell(ctx, "AAPL", 4)
	require.NoError(t, err)
	assert.True(t, placed)

	qty, err := store.PositionQty(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 6.0, qty)
}

func TestSubmitSkipsVanishingQuantity(t *testing.T) {
	store := newStore(t)
	gw := &fakeGateway{}
	trader := NewTrader(gw, fakeFeed{}, store, 0.03, 0.05, 10)

	placed, err := trader.ExecuteSell(context.Background(), "AAPL", 0.0004)
	require.NoError(t, err)
	assert.False(t, placed)
	assert.Empty(t, gw.submissions)
}
