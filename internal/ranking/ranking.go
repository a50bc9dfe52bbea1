// Package ranking orders strategies into a dense 1..N rank table and maps
// ranks to voting-weight coefficients. Rank and coefficient are kept as two
// independent tables: the sort below fixes only the order (rank 1 = lowest
// composite score); which rank votes loudest is decided entirely by the
// coefficient table.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/AmpyFin/ampyfin/internal/ledger"
	"github.com/AmpyFin/ampyfin/internal/metrics"
)

type Engine struct {
	store     *ledger.Store
	sentinels map[string]bool
}

func New(store *ledger.Store, sentinels []string) *Engine {
	skip := make(map[string]bool, len(sentinels))
	for _, name := range sentinels {
		skip[name] = true
	}
	return &Engine{store: store, sentinels: skip}
}

type score struct {
	strategy        string
	primary         float64
	performanceDiff float64
	amountCash      float64
}

func (s score) less(o score) bool {
	if s.primary != o.primary {
		return s.primary < o.primary
	}
	if s.performanceDiff != o.performanceDiff {
		return s.performanceDiff < o.performanceDiff
	}
	if s.amountCash != o.amountCash {
		return s.amountCash < o.amountCash
	}
	return s.strategy < o.strategy
}

// Rebuild recomputes the composite score for every non-sentinel strategy,
// sorts ascending, and replaces the whole rank table. Point credit only
// amplifies net-positive strategies: a negative tally cannot rescue a
// shrinking portfolio.
func (e *Engine) Rebuild(ctx context.Context) ([]ledger.RankRecord, error) {
	entries, err := e.store.StrategyEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("ranking: load entries: %w", err)
	}

	scores := make([]score, 0, len(entries))
	for _, entry := range entries {
		if e.sentinels[entry.Strategy] {
			continue
		}

		totalPoints := 0.0
		rec, err := e.store.Points(ctx, entry.Strategy)
		switch {
		case err == nil:
			totalPoints = rec.TotalPoints
		case errors.Is(err, ledger.ErrNotFound):
			log.Warn().Str("strategy", entry.Strategy).Msg("no points record, scoring with zero")
		default:
			return nil, fmt.Errorf("ranking: points for %s: %w", entry.Strategy, err)
		}

		primary := entry.PortfolioValue
		if totalPoints > 0 {
			primary = totalPoints*2 + entry.PortfolioValue
		}
		scores = append(scores, score{
			strategy:        entry.Strategy,
			primary:         primary,
			performanceDiff: float64(entry.SuccessfulTrades - entry.FailedTrades),
			amountCash:      entry.AmountCash,
		})
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].less(scores[j]) })

	ranks := make([]ledger.RankRecord, 0, len(scores))
	for i, s := range scores {
		ranks = append(ranks, ledger.RankRecord{Strategy: s.strategy, Rank: i + 1})
	}

	if err := e.store.ReplaceRanks(ctx, ranks); err != nil {
		return nil, fmt.Errorf("ranking: replace ranks: %w", err)
	}
	metrics.RankRebuilds.Inc()
	log.Info().Int("strategies", len(ranks)).Msg("rank table rebuilt")
	return ranks, nil
}

// Weights resolves each named strategy to its voting coefficient via the
// current rank table. A strategy with no rank or no coefficient for its rank
// is simply absent from the result: no reliable weight yet.
func (e *Engine) Weights(ctx context.Context, names []string) (map[string]float64, error) {
	ranks, err := e.store.Ranks(ctx)
	if err != nil {
		return nil, fmt.Errorf("ranking: load ranks: %w", err)
	}
	coefficients, err := e.store.Coefficients(ctx)
	if err != nil {
		return nil, fmt.Errorf("ranking: load coefficients: %w", err)
	}

	weights := make(map[string]float64, len(names))
	for _, name := range names {
		rank, ok := ranks[name]
		if !ok {
			log.Warn().Str("strategy", name).Msg("no rank assigned, skipping weight")
			continue
		}
		coefficient, ok := coefficients[rank]
		if !ok {
			log.Warn().Str("strategy", name).Int("rank", rank).Msg("no coefficient for rank")
			continue
		}
		weights[name] = coefficient
	}
	return weights, nil
}

// SeedCoefficients writes a default rank→coefficient table when none exists.
// The seed grows exponentially with rank so the highest composite score
// (rank N under ascending sort) carries the loudest vote; operators can
// replace the table wholesale to invert or reshape the policy.
func (e *Engine) SeedCoefficients(ctx context.Context, n int) error {
	existing, err := e.store.Coefficients(ctx)
	if err != nil {
		return fmt.Errorf("ranking: load coefficients: %w", err)
	}
	if len(existing) >= n {
		return nil
	}

	coefficients := make(map[int]float64, n)
	for rank := 1; rank <= n; rank++ {
		coefficients[rank] = math.Round(math.Pow(math.E, float64(rank)/float64(n))*1000) / 1000
	}
	if err := e.store.ReplaceCoefficients(ctx, coefficients); err != nil {
		return fmt.Errorf("ranking: seed coefficients: %w", err)
	}
	log.Info().Int("ranks", n).Msg("seeded rank coefficients")
	return nil
}
