package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AmpyFin/ampyfin/internal/config"
	"github.com/AmpyFin/ampyfin/internal/ledger"
)

// settle is the once-per-close pass: grow the time delta, re-mark every
// strategy's paper portfolio at latest prices, and rebuild the rank table
// from the new numbers.
func (c *Controller) settle(ctx context.Context) error {
	timeDelta, err := c.bumpTimeDelta(ctx)
	if err != nil {
		return err
	}
	log.Info().Float64("time_delta", timeDelta).Msg("time delta advanced")

	if err := c.resettle(ctx); err != nil {
		return err
	}
	if _, err := c.ranker.Rebuild(ctx); err != nil {
		return err
	}
	return nil
}

// bumpTimeDelta advances the persisted time delta by the configured mode so
// points awarded later in a run outweigh identical outcomes from earlier.
func (c *Controller) bumpTimeDelta(ctx context.Context) (float64, error) {
	td, err := c.store.TimeDelta(ctx)
	if err != nil {
		return 0, err
	}
	switch c.cfg.TimeDelta.Mode {
	case config.TimeDeltaMultiplicative:
		td *= c.cfg.TimeDelta.Multiplier
	case config.TimeDeltaBalanced:
		td += td * c.cfg.TimeDelta.Balanced
	default:
		td += c.cfg.TimeDelta.Increment
	}
	if err := c.store.SetTimeDelta(ctx, td); err != nil {
		return 0, err
	}
	return td, nil
}

// resettle re-marks each strategy's portfolio value as cash plus holdings at
// the latest close. A holding whose price cannot be fetched is valued at its
// recorded average price rather than dropped.
func (c *Controller) resettle(ctx context.Context) error {
	entries, err := c.store.StrategyEntries(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		value := entry.AmountCash
		for symbol, holding := range entry.Holdings {
			price, err := c.feed.LatestPrice(ctx, symbol)
			if err != nil {
				log.Warn().Err(err).Str("symbol", symbol).Str("strategy", entry.Strategy).
					Msg("marking holding at average price")
				price = holding.AveragePrice
			}
			value += holding.Quantity * price
		}
		value = ledger.RoundCash(value)
		if err := c.store.SetPortfolioValue(ctx, entry.Strategy, value); err != nil {
			return err
		}
		if err := c.store.RecordPortfolioValue(ctx, entry.Strategy, value, time.Now().UTC()); err != nil {
			return err
		}
	}
	log.Info().Int("strategies", len(entries)).Msg("portfolio values resettled")
	return nil
}

