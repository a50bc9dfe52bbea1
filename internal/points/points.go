// Package points turns realized sell outcomes into score deltas and keeps
// each strategy's trade-outcome counters. Profitable exits in the lowest
// price-change band earn the most per unit of time delta; very large gains
// earn less, a deliberate dampener against strategies that got lucky once.
package points

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AmpyFin/ampyfin/internal/config"
	"github.com/AmpyFin/ampyfin/internal/ledger"
)

type Tracker struct {
	store *ledger.Store
	cfg   config.PointsConfig
}

func NewTracker(store *ledger.Store, cfg config.PointsConfig) *Tracker {
	return &Tracker{store: store, cfg: cfg}
}

// Delta computes the point award for one realized exit. Positive when
// exitPrice > entryPrice, negative when below, zero when equal.
func Delta(cfg config.PointsConfig, entryPrice, exitPrice, timeDelta float64) float64 {
	if entryPrice <= 0 || exitPrice == entryPrice {
		return 0
	}
	ratio := exitPrice / entryPrice

	if exitPrice > entryPrice {
		switch {
		case ratio < cfg.Profit.RatioD1:
			return timeDelta * cfg.Profit.TierD1
		case ratio < cfg.Profit.RatioD2:
			return timeDelta * cfg.Profit.TierD2
		default:
			return timeDelta * cfg.Profit.TierElse
		}
	}

	switch {
	case ratio > cfg.Loss.RatioD1:
		return -timeDelta * cfg.Loss.TierD1
	case ratio > cfg.Loss.RatioD2:
		return -timeDelta * cfg.Loss.TierD2
	default:
		return -timeDelta * cfg.Loss.TierElse
	}
}

// RecordOutcome realizes a sell against the strategy's simulated entry:
// classifies the outcome, awards points, credits cash, and drops the holding
// once its remaining quantity reaches zero. The entry is persisted as a
// single document update.
func (t *Tracker) RecordOutcome(ctx context.Context, entry *ledger.StrategyEntry, symbol string, exitPrice, timeDelta, quantity float64) (float64, error) {
	holding, ok := entry.Holdings[symbol]
	if !ok || holding.Quantity <= 0 {
		return 0, fmt.Errorf("points: %s holds no %s", entry.Strategy, symbol)
	}

	sellQty := math.Min(quantity, holding.Quantity)
	delta := Delta(t.cfg, holding.AveragePrice, exitPrice, timeDelta)

	switch {
	case exitPrice > holding.AveragePrice:
		entry.SuccessfulTrades++
	case exitPrice < holding.AveragePrice:
		entry.FailedTrades++
	default:
		entry.NeutralTrades++
	}

	holding.Quantity = ledger.RoundQty(holding.Quantity - sellQty)
	if holding.Quantity == 0 {
		delete(entry.Holdings, symbol)
	} else {
		entry.Holdings[symbol] = holding
	}

	entry.AmountCash = ledger.RoundCash(entry.AmountCash + sellQty*exitPrice)
	entry.TotalTrades++
	entry.LastUpdated = time.Now().UTC()

	if err := t.store.SaveStrategyEntry(ctx, *entry); err != nil {
		return 0, fmt.Errorf("points: save %s: %w", entry.Strategy, err)
	}
	if err := t.store.AddPoints(ctx, entry.Strategy, delta, entry.LastUpdated); err != nil {
		return 0, fmt.Errorf("points: tally %s: %w", entry.Strategy, err)
	}

	log.Info().
		Str("strategy", entry.Strategy).
		Str("symbol", symbol).
		Float64("exit_price", exitPrice).
		Float64("points", delta).
		Msg("sell outcome recorded")
	return delta, nil
}

// ApplyBuy averages a simulated buy into the strategy's holdings and debits
// its cash.
func (t *Tracker) ApplyBuy(ctx context.Context, entry *ledger.StrategyEntry, symbol string, quantity, price float64) error {
	if quantity <= 0 || price <= 0 {
		return fmt.Errorf("points: invalid buy of %s: qty=%v price=%v", symbol, quantity, price)
	}

	holding := entry.Holdings[symbol]
	newQty := holding.Quantity + quantity
	averagePrice := price
	if holding.Quantity > 0 {
		averagePrice = (holding.AveragePrice*holding.Quantity + price*quantity) / newQty
	}
	entry.Holdings[symbol] = ledger.Holding{
		Quantity:     ledger.RoundQty(newQty),
		AveragePrice: averagePrice,
	}

	entry.AmountCash = ledger.RoundCash(entry.AmountCash - quantity*price)
	entry.TotalTrades++
	entry.LastUpdated = time.Now().UTC()

	if err := t.store.SaveStrategyEntry(ctx, *entry); err != nil {
		return fmt.Errorf("points: save %s: %w", entry.Strategy, err)
	}
	return nil
}
