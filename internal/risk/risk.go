// Package risk turns a voted decision into a concrete disposition for one
// ticker. Rules are evaluated strictly in order; the first match wins.
package risk

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/AmpyFin/ampyfin/internal/ledger"
	"github.com/AmpyFin/ampyfin/internal/strategy"
	"github.com/AmpyFin/ampyfin/internal/vote"
)

type Outcome string

const (
	OutcomeHold            Outcome = "hold"
	OutcomeForcedSell      Outcome = "forced_sell"
	OutcomeSell            Outcome = "sell"
	OutcomeQueueBuy        Outcome = "queue_buy"
	OutcomeQueueSuggestion Outcome = "queue_suggestion"
)

// Input carries everything the gate needs about one ticker at evaluation
// time. Limit is nil when no position-level stop/take band is on record.
type Input struct {
	Symbol         string
	Decision       vote.Result
	Price          float64
	Cash           float64
	PositionQty    float64
	PortfolioValue float64
	Limit          *ledger.RiskLimit
}

// Assessment is the gate's verdict. Quantity is meaningful for sells and
// suggestions; Priority only for the queued outcomes (lower drains first).
type Assessment struct {
	Outcome  Outcome
	Quantity float64
	Priority float64
	Reason   string
}

type Gate struct {
	LiquidityFloor     float64
	ConcentrationLimit float64
	SuggestionWeight   float64
}

func (g Gate) Evaluate(in Input) Assessment {
	if in.Price <= 0 || in.PortfolioValue <= 0 {
		return Assessment{Outcome: OutcomeHold, Reason: "no_valid_price"}
	}

	buyW := in.Decision.BuyWeight
	sellW := in.Decision.SellWeight
	holdW := in.Decision.HoldWeight

	// Rule 1: stop-loss / take-profit bands override any vote.
	if in.PositionQty > 0 && in.Limit != nil {
		if in.Price <= in.Limit.StopLossPrice || in.Price >= in.Limit.TakeProfitPrice {
			reason := "stop_loss"
			if in.Price >= in.Limit.TakeProfitPrice {
				reason = "take_profit"
			}
			log.Info().Str("symbol", in.Symbol).Str("reason", reason).
				Float64("price", in.Price).
				Float64("stop", in.Limit.StopLossPrice).
				Float64("take", in.Limit.TakeProfitPrice).
				Msg("forced liquidation")
			return Assessment{Outcome: OutcomeForcedSell, Quantity: in.PositionQty, Reason: reason}
		}
	}

	// Rule 2: voted sell of an existing position.
	if in.Decision.Action == strategy.Sell && in.PositionQty > 0 {
		qty := math.Max(in.Decision.Quantity, 1)
		if qty > in.PositionQty {
			qty = in.PositionQty
		}
		return Assessment{Outcome: OutcomeSell, Quantity: qty, Reason: "voted_sell"}
	}

	// Rule 3: voted buy within the concentration limit joins the primary queue.
	if in.Decision.Action == strategy.Buy && in.Cash > g.LiquidityFloor && g.withinConcentration(in) {
		return Assessment{
			Outcome:  OutcomeQueueBuy,
			Quantity: in.Decision.Quantity,
			Priority: -(buyW - (sellW + 0.5*holdW)),
			Reason:   "voted_buy",
		}
	}

	// Rule 4: strong buy interest on a flat position becomes a sized
	// suggestion, under the same concentration and liquidity checks.
	if in.PositionQty == 0 && buyW > sellW && buyW > g.SuggestionWeight &&
		in.Cash > g.LiquidityFloor && g.withinConcentration(in) {
		qty := g.suggestionQty(in)
		if qty > 0 {
			return Assessment{
				Outcome:  OutcomeQueueSuggestion,
				Quantity: qty,
				Priority: -(buyW - sellW),
				Reason:   "suggested_buy",
			}
		}
	}

	return Assessment{Outcome: OutcomeHold, Reason: "no_action"}
}

// withinConcentration reports whether the position after the voted buy would
// still sit under the per-asset concentration limit.
func (g Gate) withinConcentration(in Input) bool {
	return (in.PositionQty+in.Decision.Quantity)*in.Price/in.PortfolioValue < g.ConcentrationLimit
}

// suggestionQty sizes a suggested buy from the concentration limit and
// available cash, halves it, and floors the result at 2 shares.
func (g Gate) suggestionQty(in Input) float64 {
	byLimit := math.Floor(in.PortfolioValue * g.ConcentrationLimit / in.Price)
	byCash := math.Floor(in.Cash / in.Price)
	qty := math.Floor(math.Min(byLimit, byCash) / 2)
	if qty < 2 {
		qty = 2
	}
	if byCash < 2 {
		return 0
	}
	return qty
}
