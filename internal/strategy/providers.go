package strategy

import "math"

// sizeBuy converts conviction into a share count: never spend past cash or
// a tenth of portfolio value per entry, never return less than one share.
func sizeBuy(ctx Context, fraction float64) float64 {
	if ctx.Price <= 0 {
		return 0
	}
	budget := math.Min(ctx.Cash, ctx.PortfolioValue*fraction)
	qty := math.Floor(budget / ctx.Price)
	if qty < 1 {
		qty = 1
	}
	return qty
}

// SMACross buys when price closes above its moving average and exits when it
// closes back below.
type SMACross struct {
	Window int
}

func (s SMACross) Name() string        { return "sma_cross" }
func (s SMACross) IdealPeriod() string { return "3mo" }

func (s SMACross) Evaluate(ctx Context) (Action, float64) {
	sma, err := ctx.History.SMA(s.Window)
	if err != nil {
		return Hold, 0
	}
	if ctx.PositionQty == 0 && ctx.Price > sma {
		return Buy, sizeBuy(ctx, 0.1)
	}
	if ctx.PositionQty > 0 && ctx.Price < sma {
		return Sell, ctx.PositionQty
	}
	return Hold, 0
}

// EMACross signals on the fast/slow exponential average relationship, with
// the strong variants reserved for wide separations.
type EMACross struct {
	Fast int
	Slow int
}

func (e EMACross) Name() string        { return "ema_cross" }
func (e EMACross) IdealPeriod() string { return "6mo" }

func (e EMACross) Evaluate(ctx Context) (Action, float64) {
	fast, err := ctx.History.EMA(e.Fast)
	if err != nil {
		return Hold, 0
	}
	slow, err := ctx.History.EMA(e.Slow)
	if err != nil {
		return Hold, 0
	}
	spread := (fast - slow) / slow
	switch {
	case spread > 0.02:
		return StrongBuy, sizeBuy(ctx, 0.15)
	case spread > 0:
		return Buy, sizeBuy(ctx, 0.1)
	case spread < -0.02 && ctx.PositionQty > 0:
		return StrongSell, ctx.PositionQty
	case spread < 0 && ctx.PositionQty > 0:
		return Sell, ctx.PositionQty
	}
	return Hold, 0
}

// MeanReversion fades moves outside a percentage band around the average.
type MeanReversion struct {
	Window  int
	BandPct float64
}

func (m MeanReversion) Name() string        { return "mean_reversion" }
func (m MeanReversion) IdealPeriod() string { return "1mo" }

func (m MeanReversion) Evaluate(ctx Context) (Action, float64) {
	sma, err := ctx.History.SMA(m.Window)
	if err != nil {
		return Hold, 0
	}
	lower := sma * (1 - m.BandPct)
	upper := sma * (1 + m.BandPct)
	if ctx.PositionQty == 0 && ctx.Price < lower {
		return Buy, sizeBuy(ctx, 0.1)
	}
	if ctx.PositionQty > 0 && ctx.Price > upper {
		return Sell, ctx.PositionQty
	}
	return Hold, 0
}

// RSIProvider trades Wilder's RSI extremes.
type RSIProvider struct {
	Period     int
	Oversold   float64
	Overbought float64
}

func (r RSIProvider) Name() string        { return "rsi" }
func (r RSIProvider) IdealPeriod() string { return "1mo" }

func (r RSIProvider) Evaluate(ctx Context) (Action, float64) {
	rsi, err := ctx.History.RSI(r.Period)
	if err != nil {
		return Hold, 0
	}
	switch {
	case rsi < r.Oversold-10:
		return StrongBuy, sizeBuy(ctx, 0.15)
	case rsi < r.Oversold:
		return Buy, sizeBuy(ctx, 0.1)
	case rsi > r.Overbought+10 && ctx.PositionQty > 0:
		return StrongSell, ctx.PositionQty
	case rsi > r.Overbought && ctx.PositionQty > 0:
		return Sell, ctx.PositionQty
	}
	return Hold, 0
}

// Momentum buys breakouts above the recent high and exits when price loses
// its average.
type Momentum struct {
	Lookback    int
	BreakoutPct float64
}

func (m Momentum) Name() string        { return "momentum" }
func (m Momentum) IdealPeriod() string { return "1mo" }

func (m Momentum) Evaluate(ctx Context) (Action, float64) {
	high, err := ctx.History.Max(m.Lookback)
	if err != nil {
		return Hold, 0
	}
	if ctx.PositionQty == 0 && ctx.Price > high*(1+m.BreakoutPct) {
		return Buy, sizeBuy(ctx, 0.1)
	}
	if ctx.PositionQty > 0 {
		if sma, err := ctx.History.SMA(m.Lookback); err == nil && ctx.Price < sma {
			return Sell, ctx.PositionQty
		}
	}
	return Hold, 0
}
