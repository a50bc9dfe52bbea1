package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AmpyFin/ampyfin/internal/broker"
	"github.com/AmpyFin/ampyfin/internal/ledger"
	"github.com/AmpyFin/ampyfin/internal/metrics"
	"github.com/AmpyFin/ampyfin/internal/retry"
	"github.com/AmpyFin/ampyfin/internal/risk"
	"github.com/AmpyFin/ampyfin/internal/strategy"
	"github.com/AmpyFin/ampyfin/internal/vote"
)

// scan is one full pass over the ticker universe: refresh the vote weights
// from the rank table, settle pending orders, evaluate every ticker, then
// drain whatever the pass queued.
func (c *Controller) scan(ctx context.Context) error {
	weights, err := c.ranker.Weights(ctx, strategy.Names(c.providers))
	if err != nil {
		return err
	}
	c.weights = weights

	if err := c.trader.Poll(ctx); err != nil {
		log.Warn().Err(err).Msg("pending order poll failed")
	}

	account, err := c.trader.Account(ctx)
	if err != nil {
		return err
	}
	c.trackPortfolio(ctx, account)

	timeDelta, err := c.store.TimeDelta(ctx)
	if err != nil {
		return err
	}

	for _, symbol := range c.tickers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.processTicker(ctx, symbol, account, timeDelta); err != nil {
			metrics.TickersSkipped.Inc()
			log.Warn().Err(err).Str("symbol", symbol).Msg("ticker skipped")
		}
		if err := pause(ctx, c.cfg.Phases.TickerPacing.Std()); err != nil {
			return err
		}
	}

	if err := c.scheduler.Drain(ctx, c.trader, c.trader.Cash); err != nil {
		return err
	}
	metrics.ScanCycles.Inc()
	return nil
}

// trackPortfolio appends the live account value and the benchmark closes to
// the portfolio history, best effort, once per scan cycle.
func (c *Controller) trackPortfolio(ctx context.Context, account broker.Account) {
	now := time.Now().UTC()
	if err := c.store.RecordPortfolioValue(ctx, "trading_account", account.PortfolioValue, now); err != nil {
		log.Warn().Err(err).Msg("failed to record account value")
	}
	for _, benchmark := range c.cfg.Trading.Benchmarks {
		price, err := c.feed.LatestPrice(ctx, benchmark)
		if err != nil {
			log.Warn().Err(err).Str("symbol", benchmark).Msg("benchmark price unavailable")
			continue
		}
		if err := c.store.RecordPortfolioValue(ctx, benchmark, price, now); err != nil {
			log.Warn().Err(err).Str("symbol", benchmark).Msg("failed to record benchmark value")
		}
	}
}

func (c *Controller) fetchPolicy() retry.Policy {
	return retry.Policy{
		Attempts: c.cfg.Fetch.Attempts,
		Backoff:  c.cfg.Fetch.Backoff.Std(),
	}
}

// processTicker runs every strategy against one symbol, simulates each
// strategy's own paper trade, votes, and hands the result to the risk gate.
func (c *Controller) processTicker(ctx context.Context, symbol string, account broker.Account, timeDelta float64) error {
	var price float64
	err := retry.Do(ctx, c.fetchPolicy(), func() error {
		p, err := c.feed.LatestPrice(ctx, symbol)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	if err != nil {
		return err
	}

	histories := make(map[string]strategy.Series)
	opinions := make([]vote.Opinion, 0, len(c.providers))

	for _, provider := range c.providers {
		name := provider.Name()
		entry, err := c.store.StrategyEntry(ctx, name)
		if err != nil {
			log.Warn().Err(err).Str("strategy", name).Msg("no simulation entry, skipping")
			continue
		}

		period, err := c.store.IndicatorPeriod(ctx, name)
		if err != nil {
			log.Warn().Err(err).Str("strategy", name).Msg("no indicator period, skipping")
			continue
		}
		history, ok := histories[period]
		if !ok {
			err := retry.Do(ctx, c.fetchPolicy(), func() error {
				h, err := c.feed.History(ctx, symbol, period)
				if err != nil {
					return err
				}
				history = h
				return nil
			})
			if err != nil {
				log.Warn().Err(err).Str("symbol", symbol).Str("period", period).
					Msg("history unavailable, skipping strategy")
				continue
			}
			histories[period] = history
		}

		action, qty := provider.Evaluate(strategy.Context{
			Symbol:         symbol,
			Price:          price,
			History:        history,
			Cash:           entry.AmountCash,
			PositionQty:    entry.Holdings[symbol].Quantity,
			PortfolioValue: entry.PortfolioValue,
		})

		c.simulate(ctx, &entry, symbol, action, qty, price, timeDelta)

		weight, ok := c.weights[name]
		if !ok {
			continue
		}
		opinions = append(opinions, vote.Opinion{Action: action, Quantity: qty, Weight: weight})
	}

	decision := vote.Aggregate(opinions)

	positionQty, err := c.store.PositionQty(ctx, symbol)
	if err != nil {
		return err
	}
	var limit *ledger.RiskLimit
	if l, err := c.store.RiskLimit(ctx, symbol); err == nil {
		limit = &l
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return err
	}

	assessment := c.gate.Evaluate(risk.Input{
		Symbol:         symbol,
		Decision:       decision,
		Price:          price,
		Cash:           account.Cash,
		PositionQty:    positionQty,
		PortfolioValue: account.PortfolioValue,
		Limit:          limit,
	})
	c.apply(ctx, symbol, assessment)
	c.journal.Append(symbol, price, decision, string(assessment.Outcome), assessment.Reason)
	return nil
}

// apply executes or queues the gate's verdict. Once a pass has liquidated
// anything, the halt flag keeps the rest of the pass read-only: no further
// sells, no new buy queue entries.
func (c *Controller) apply(ctx context.Context, symbol string, assessment risk.Assessment) {
	switch assessment.Outcome {
	case risk.OutcomeForcedSell:
		if c.scheduler.Halted() {
			return
		}
		if _, err := c.trader.ExecuteSell(ctx, symbol, assessment.Quantity); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("forced liquidation failed")
			return
		}
		metrics.ForcedLiquidations.Inc()
		c.scheduler.Halt()

	case risk.OutcomeSell:
		if c.scheduler.Halted() {
			return
		}
		if _, err := c.trader.ExecuteSell(ctx, symbol, assessment.Quantity); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("voted sell failed")
			return
		}
		c.scheduler.Halt()

	case risk.OutcomeQueueBuy:
		if !c.scheduler.Halted() {
			c.scheduler.QueueBuy(symbol, assessment.Quantity, assessment.Priority)
		}

	case risk.OutcomeQueueSuggestion:
		if !c.scheduler.Halted() {
			c.scheduler.QueueSuggestion(symbol, assessment.Quantity, assessment.Priority)
		}
	}
}

// simulate applies one strategy's own opinion to its paper portfolio, sized
// by the simulation concentration limit and liquidity floor.
func (c *Controller) simulate(ctx context.Context, entry *ledger.StrategyEntry, symbol string, action strategy.Action, qty, price, timeDelta float64) {
	sim := c.cfg.Simulation
	switch {
	case action.BuyLike():
		if qty <= 0 || price <= 0 {
			return
		}
		maxByLimit := math.Floor(entry.PortfolioValue * sim.ConcentrationLimit / price)
		maxByCash := math.Floor((entry.AmountCash - sim.LiquidityFloor) / price)
		buyQty := math.Min(qty, math.Min(maxByLimit, maxByCash))
		if buyQty < 1 {
			return
		}
		if err := c.tracker.ApplyBuy(ctx, entry, symbol, buyQty, price); err != nil {
			log.Warn().Err(err).Str("strategy", entry.Strategy).Str("symbol", symbol).
				Msg("simulated buy failed")
		}

	case action.SellLike():
		holding, ok := entry.Holdings[symbol]
		if !ok || holding.Quantity <= 0 {
			return
		}
		sellQty := qty
		if sellQty <= 0 {
			sellQty = holding.Quantity
		}
		if _, err := c.tracker.RecordOutcome(ctx, entry, symbol, price, timeDelta, sellQty); err != nil {
			log.Warn().Err(err).Str("strategy", entry.Strategy).Str("symbol", symbol).
				Msg("simulated sell failed")
		}
	}
}
