// Package engine runs the phase-driven decision loop: scan every ticker
// while the market is open, prepare once in the early-hours window, settle
// once after the close.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AmpyFin/ampyfin/internal/broker"
	"github.com/AmpyFin/ampyfin/internal/config"
	"github.com/AmpyFin/ampyfin/internal/ledger"
	"github.com/AmpyFin/ampyfin/internal/points"
	"github.com/AmpyFin/ampyfin/internal/pricefeed"
	"github.com/AmpyFin/ampyfin/internal/ranking"
	"github.com/AmpyFin/ampyfin/internal/risk"
	"github.com/AmpyFin/ampyfin/internal/sched"
	"github.com/AmpyFin/ampyfin/internal/strategy"
)

type Controller struct {
	cfg       config.Config
	store     *ledger.Store
	feed      pricefeed.Feed
	clock     pricefeed.Clock
	universe  *pricefeed.UniverseProvider
	trader    *broker.Trader
	gate      risk.Gate
	scheduler *sched.Scheduler
	ranker    *ranking.Engine
	tracker   *points.Tracker
	providers []strategy.Provider
	journal   *Journal

	tickers []string
	weights map[string]float64

	earlyDone  bool
	settleDone bool
}

func NewController(cfg config.Config, store *ledger.Store, feed pricefeed.Feed, clock pricefeed.Clock,
	universe *pricefeed.UniverseProvider, trader *broker.Trader, ranker *ranking.Engine,
	tracker *points.Tracker, providers []strategy.Provider, journal *Journal) *Controller {
	return &Controller{
		cfg:      cfg,
		store:    store,
		feed:     feed,
		clock:    clock,
		universe: universe,
		trader:   trader,
		gate: risk.Gate{
			LiquidityFloor:     cfg.Trading.LiquidityFloor,
			ConcentrationLimit: cfg.Trading.ConcentrationLimit,
			SuggestionWeight:   cfg.Trading.SuggestionWeight,
		},
		scheduler: sched.New(cfg.Trading.LiquidityFloor, cfg.Broker.OrderPacing.Std()),
		ranker:    ranker,
		tracker:   tracker,
		providers: providers,
		journal:   journal,
	}
}

// Run drives the phase machine until the context is cancelled. Clock errors
// put the loop on a cooldown rather than killing the process: the market
// does not care that our clock call flaked.
func (c *Controller) Run(ctx context.Context) error {
	log.Info().Str("run_id", c.journal.RunID()).Msg("engine starting")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		phase, err := c.clock.Phase(ctx)
		if err != nil {
			log.Error().Err(err).Msg("market clock unavailable")
			if err := pause(ctx, c.cfg.Phases.ErrorCooldown.Std()); err != nil {
				return err
			}
			continue
		}

		var wait time.Duration
		switch phase {
		case pricefeed.PhaseOpen:
			if len(c.tickers) == 0 {
				if err := c.prepare(ctx); err != nil {
					log.Error().Err(err).Msg("pre-open preparation failed")
					wait = c.cfg.Phases.ErrorCooldown.Std()
					break
				}
			}
			c.earlyDone = false
			c.settleDone = false
			if err := c.scan(ctx); err != nil {
				if ctx.Err() != nil {
					return err
				}
				log.Error().Err(err).Msg("scan cycle failed")
				wait = c.cfg.Phases.ErrorCooldown.Std()
				break
			}
			wait = c.cfg.Phases.OpenCyclePause.Std()

		case pricefeed.PhaseEarlyHours:
			c.settleDone = false
			if !c.earlyDone {
				if err := c.prepare(ctx); err != nil {
					log.Error().Err(err).Msg("pre-open preparation failed")
				}
			}
			wait = c.cfg.Phases.IdlePause.Std()

		case pricefeed.PhaseClosed:
			c.earlyDone = false
			if !c.settleDone {
				if err := c.settle(ctx); err != nil {
					if ctx.Err() != nil {
						return err
					}
					log.Error().Err(err).Msg("post-close settlement failed")
				} else {
					c.settleDone = true
				}
			}
			wait = c.cfg.Phases.IdlePause.Std()

		default:
			wait = c.cfg.Phases.ErrorCooldown.Std()
		}

		if err := pause(ctx, wait); err != nil {
			return err
		}
	}
}

// prepare refreshes the ticker universe and the rank-derived vote weights.
// Runs once per early-hours window and again lazily if the open arrives
// before a universe was ever loaded.
func (c *Controller) prepare(ctx context.Context) error {
	tickers, err := c.universe.Tickers(ctx)
	if err != nil {
		return err
	}
	weights, err := c.ranker.Weights(ctx, strategy.Names(c.providers))
	if err != nil {
		return err
	}
	c.tickers = tickers
	c.weights = weights
	c.earlyDone = true
	log.Info().Int("tickers", len(tickers)).Int("weighted_strategies", len(weights)).
		Msg("pre-open preparation complete")
	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
