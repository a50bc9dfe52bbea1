// Package sched holds the per-pass order queues. Risk assessments are queued
// during the scan and drained once at the end, primary buys before
// suggestions, so the strongest conviction spends the cash first.
package sched

import (
	"container/heap"
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Item is one queued buy. Priority is the negated conviction margin, so the
// min-heap pops the strongest signal first. seq breaks priority ties in
// insertion order.
type Item struct {
	Symbol   string
	Quantity float64
	Priority float64
	seq      uint64
}

type queue []Item

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority < q[j].Priority
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)   { *q = append(*q, x.(Item)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// Executor places one queued buy. It reports whether the order was actually
// submitted so the drain can decide whether to pace.
type Executor interface {
	ExecuteQueuedBuy(ctx context.Context, symbol string, quantity float64) (bool, error)
}

// CashFunc re-reads available cash. Called before every pop because each
// executed buy shrinks the balance.
type CashFunc func(ctx context.Context) (float64, error)

type Scheduler struct {
	primary     queue
	suggestions queue
	halted      bool
	seq         uint64

	LiquidityFloor float64
	Pacing         time.Duration
}

func New(liquidityFloor float64, pacing time.Duration) *Scheduler {
	return &Scheduler{LiquidityFloor: liquidityFloor, Pacing: pacing}
}

func (s *Scheduler) QueueBuy(symbol string, quantity, priority float64) {
	s.seq++
	heap.Push(&s.primary, Item{Symbol: symbol, Quantity: quantity, Priority: priority, seq: s.seq})
}

func (s *Scheduler) QueueSuggestion(symbol string, quantity, priority float64) {
	s.seq++
	heap.Push(&s.suggestions, Item{Symbol: symbol, Quantity: quantity, Priority: priority, seq: s.seq})
}

// Halt marks the pass as liquidation-bound: no further buys are queued or
// drained until the next Reset.
func (s *Scheduler) Halt()        { s.halted = true }
func (s *Scheduler) Halted() bool { return s.halted }

func (s *Scheduler) PrimaryLen() int    { return len(s.primary) }
func (s *Scheduler) SuggestionLen() int { return len(s.suggestions) }

// Drain executes queued buys until both heaps are empty or cash drops to the
// liquidity floor. The primary heap is fully drained before the suggestion
// heap is touched. Queues and the halt flag are always cleared on return.
func (s *Scheduler) Drain(ctx context.Context, exec Executor, cash CashFunc) error {
	defer s.Reset()

	if s.halted {
		log.Info().Int("primary", len(s.primary)).Int("suggestions", len(s.suggestions)).
			Msg("buy queues discarded, pass halted")
		return nil
	}

	for _, q := range []*queue{&s.primary, &s.suggestions} {
		for q.Len() > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			available, err := cash(ctx)
			if err != nil {
				return err
			}
			if available <= s.LiquidityFloor {
				log.Info().Float64("cash", available).Float64("floor", s.LiquidityFloor).
					Msg("stopping drain at liquidity floor")
				return nil
			}

			item := heap.Pop(q).(Item)
			placed, err := exec.ExecuteQueuedBuy(ctx, item.Symbol, item.Quantity)
			if err != nil {
				log.Error().Err(err).Str("symbol", item.Symbol).Msg("queued buy failed")
				continue
			}
			if placed && s.Pacing > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.Pacing):
				}
			}
		}
	}
	return nil
}

// Reset clears both heaps and the halt flag for the next pass.
func (s *Scheduler) Reset() {
	s.primary = s.primary[:0]
	s.suggestions = s.suggestions[:0]
	s.halted = false
}
