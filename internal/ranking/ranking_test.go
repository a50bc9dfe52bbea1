package ranking

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmpyFin/ampyfin/internal/ledger"
)

func newStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func saveEntry(t *testing.T, store *ledger.Store, name string, cash, pv float64, wins, losses int) {
	t.Helper()
	require.NoError(t, store.SaveStrategyEntry(context.Background(), ledger.StrategyEntry{
		Strategy:         name,
		Holdings:         map[string]ledger.Holding{},
		AmountCash:       cash,
		PortfolioValue:   pv,
		SuccessfulTrades: wins,
		FailedTrades:     losses,
	}))
}

func TestRebuildCreditsPositivePoints(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	// A scores 2*120+52000, B scores on portfolio value alone because its
	// point total is negative.
	saveEntry(t, store, "alpha", 10000, 52000, 5, 1)
	saveEntry(t, store, "beta", 10000, 49000, 1, 4)
	require.NoError(t, store.AddPoints(ctx, "alpha", 120, time.Now()))
	require.NoError(t, store.AddPoints(ctx, "beta", -30, time.Now()))

	ranks, err := New(store, nil).Rebuild(ctx)
	require.NoError(t, err)

	assert.Equal(t, []ledger.RankRecord{
		{Strategy: "beta", Rank: 1},
		{Strategy: "alpha", Rank: 2},
	}, ranks)
}

func TestRebuildTieBreaksOnPerformanceThenCashThenName(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	saveEntry(t, store, "bravo", 5000, 50000, 3, 1)
	saveEntry(t, store, "alpha", 5000, 50000, 1, 3)
	saveEntry(t, store, "delta", 9000, 50000, 3, 1)
	saveEntry(t, store, "charlie", 9000, 50000, 3, 1)

	ranks, err := New(store, nil).Rebuild(ctx)
	require.NoError(t, err)

	assert.Equal(t, []ledger.RankRecord{
		{Strategy: "alpha", Rank: 1},
		{Strategy: "bravo", Rank: 2},
		{Strategy: "charlie", Rank: 3},
		{Strategy: "delta", Rank: 4},
	}, ranks)
}

func TestRebuildExcludesSentinels(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	saveEntry(t, store, "alpha", 10000, 50000, 0, 0)
	saveEntry(t, store, "test_strategy", 10000, 99999, 0, 0)

	ranks, err := New(store, []string{"test", "test_strategy"}).Rebuild(ctx)
	require.NoError(t, err)

	require.Len(t, ranks, 1)
	assert.Equal(t, "alpha", ranks[0].Strategy)
}

func TestRebuildHandlesMissingPoints(t *testing.T) {
	store := newStore(t)
	saveEntry(t, store, "alpha", 10000, 50000, 0, 0)

	ranks, err := New(store, nil).Rebuild(context.Background())
	require.NoError(t, err)
	assert.Len(t, ranks, 1)
}

func TestWeightsResolveThroughCoefficientTable(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceRanks(ctx, []ledger.RankRecord{
		{Strategy: "alpha", Rank: 1},
		{Strategy: "beta", Rank: 2},
	}))
	require.NoError(t, store.ReplaceCoefficients(ctx, map[int]float64{1: 1.4, 2: 2.7}))

	weights, err := New(store, nil).Weights(ctx, []string{"alpha", "beta", "unranked"})
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"alpha": 1.4, "beta": 2.7}, weights,
		"unranked strategies carry no weight")
}

func TestSeedCoefficientsMonotonic(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, New(store, nil).SeedCoefficients(ctx, 5))

	coefficients, err := store.Coefficients(ctx)
	require.NoError(t, err)
	require.Len(t, coefficients, 5)
	for rank := 2; rank <= 5; rank++ {
		assert.Greater(t, coefficients[rank], coefficients[rank-1],
			"higher rank must vote louder")
	}
}

func TestSeedCoefficientsDoesNotOverwrite(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceCoefficients(ctx, map[int]float64{1: 9, 2: 8, 3: 7, 4: 6, 5: 5}))
	require.NoError(t, New(store, nil).SeedCoefficients(ctx, 5))

	coefficients, err := store.Coefficients(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9.0, coefficients[1], "operator-set table stays authoritative")
}
