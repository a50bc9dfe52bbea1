package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesSMA(t *testing.T) {
	s := Series{1, 2, 3, 4, 5}

	sma, err := s.SMA(3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, sma, 1e-9)
}

func TestSeriesSMANotEnoughData(t *testing.T) {
	s := Series{1, 2}

	_, err := s.SMA(3)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestSeriesEMAConvergesTowardRecent(t *testing.T) {
	flat := make(Series, 30)
	for i := range flat {
		flat[i] = 100
	}
	ema, err := flat.EMA(10)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, ema, 1e-9)

	rising := append(Series{}, flat...)
	rising = append(rising, 110, 120, 130)
	emaRising, err := rising.EMA(10)
	require.NoError(t, err)
	assert.Greater(t, emaRising, 100.0)
	assert.Less(t, emaRising, 130.0)
}

func TestSeriesRSIExtremes(t *testing.T) {
	up := Series{100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111, 112, 113, 114}
	rsi, err := up.RSI(14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi, "all gains means RSI 100")

	down := Series{114, 113, 112, 111, 110, 109, 108, 107, 106, 105, 104, 103, 102, 101, 100}
	rsi, err = down.RSI(14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rsi, 1e-9)
}

func TestSeriesMaxExcludesLatestBar(t *testing.T) {
	s := Series{5, 9, 7, 6, 20}

	high, err := s.Max(4)
	require.NoError(t, err)
	assert.Equal(t, 9.0, high, "the latest close is not its own breakout level")
}

func TestSizeBuyRespectsBudget(t *testing.T) {
	ctx := Context{Price: 100, Cash: 550, PortfolioValue: 100000}
	assert.Equal(t, 5.0, sizeBuy(ctx, 0.1), "cash caps before the portfolio fraction")

	ctx = Context{Price: 100, Cash: 50000, PortfolioValue: 100000}
	assert.Equal(t, 100.0, sizeBuy(ctx, 0.1))

	ctx = Context{Price: 1000, Cash: 100, PortfolioValue: 1000}
	assert.Equal(t, 1.0, sizeBuy(ctx, 0.1), "never sizes below one share")
}

func TestSMACrossSignals(t *testing.T) {
	history := make(Series, 20)
	for i := range history {
		history[i] = 100
	}
	p := SMACross{Window: 20}

	action, qty := p.Evaluate(Context{Price: 105, History: history, Cash: 10000, PortfolioValue: 10000})
	assert.Equal(t, Buy, action)
	assert.Positive(t, qty)

	action, qty = p.Evaluate(Context{Price: 95, History: history, PositionQty: 7})
	assert.Equal(t, Sell, action)
	assert.Equal(t, 7.0, qty)

	action, _ = p.Evaluate(Context{Price: 95, History: history})
	assert.Equal(t, Hold, action, "nothing to sell without a position")
}

func TestMeanReversionFadesBandBreaks(t *testing.T) {
	history := make(Series, 20)
	for i := range history {
		history[i] = 100
	}
	p := MeanReversion{Window: 20, BandPct: 0.015}

	action, _ := p.Evaluate(Context{Price: 98, History: history, Cash: 10000, PortfolioValue: 10000})
	assert.Equal(t, Buy, action)

	action, _ = p.Evaluate(Context{Price: 102, History: history, PositionQty: 3})
	assert.Equal(t, Sell, action)

	action, _ = p.Evaluate(Context{Price: 100.5, History: history})
	assert.Equal(t, Hold, action)
}

func TestProvidersHoldOnShortHistory(t *testing.T) {
	short := Series{100, 101}
	for _, p := range DefaultRegistry() {
		action, qty := p.Evaluate(Context{Price: 100, History: short})
		assert.Equal(t, Hold, action, p.Name())
		assert.Zero(t, qty, p.Name())
	}
}

func TestRegistryNamesAreStable(t *testing.T) {
	assert.Equal(t,
		[]string{"sma_cross", "ema_cross", "mean_reversion", "rsi", "momentum"},
		Names(DefaultRegistry()))
}
