// Package strategy defines the signal-provider capability: a named policy
// that, given a ticker's price history and the caller's portfolio context,
// returns a decision and a quantity. Providers are registered in a fixed
// table at startup and addressed by their stable string name everywhere else
// (ledger documents, ranks, coefficients).
package strategy

type Action string

const (
	StrongBuy  Action = "STRONG_BUY"
	Buy        Action = "BUY"
	Hold       Action = "HOLD"
	Sell       Action = "SELL"
	StrongSell Action = "STRONG_SELL"
)

// BuyLike collapses the strength enum into the buy bucket.
func (a Action) BuyLike() bool { return a == Buy || a == StrongBuy }

// SellLike collapses the strength enum into the sell bucket.
func (a Action) SellLike() bool { return a == Sell || a == StrongSell }

// Context is the account-snapshot view a provider decides against. It is
// passed in explicitly per evaluation; providers hold no shared state.
type Context struct {
	Symbol         string
	Price          float64
	History        Series
	Cash           float64
	PositionQty    float64
	PortfolioValue float64
}

type Provider interface {
	Name() string
	// IdealPeriod is the history span the provider wants, e.g. "3mo".
	IdealPeriod() string
	Evaluate(ctx Context) (Action, float64)
}

// DefaultRegistry is the fixed provider table built at startup.
func DefaultRegistry() []Provider {
	return []Provider{
		SMACross{Window: 20},
		EMACross{Fast: 12, Slow: 26},
		MeanReversion{Window: 20, BandPct: 0.015},
		RSIProvider{Period: 14, Oversold: 30, Overbought: 70},
		Momentum{Lookback: 10, BreakoutPct: 0.01},
	}
}

// Names returns the stable identifiers of a provider table.
func Names(providers []Provider) []string {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	return names
}
