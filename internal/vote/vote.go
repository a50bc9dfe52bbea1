// Package vote combines per-strategy opinions into one ticker-level action
// by weighted majority, with an unweighted median over the winning bucket's
// quantities. Bucket selection is weighted so total conviction decides the
// direction; the quantity median is not, so a single large-weight outlier
// cannot drag the order size.
package vote

import (
	"sort"

	"github.com/AmpyFin/ampyfin/internal/strategy"
)

type Opinion struct {
	Action   strategy.Action
	Quantity float64
	Weight   float64
}

// Result is the aggregate: Action is always one of Buy, Sell, Hold.
type Result struct {
	Action     strategy.Action
	Quantity   float64
	BuyWeight  float64
	SellWeight float64
	HoldWeight float64
}

// Aggregate sums bucket weights and picks the bucket that strictly exceeds
// both others; any tie (including all-zero weights) resolves to hold with
// quantity zero. Summation makes the result independent of opinion order.
func Aggregate(opinions []Opinion) Result {
	var buyQuantities, sellQuantities []float64
	var res Result

	for _, o := range opinions {
		switch {
		case o.Action.BuyLike():
			buyQuantities = append(buyQuantities, o.Quantity)
			res.BuyWeight += o.Weight
		case o.Action.SellLike():
			sellQuantities = append(sellQuantities, o.Quantity)
			res.SellWeight += o.Weight
		case o.Action == strategy.Hold:
			res.HoldWeight += o.Weight
		}
	}

	switch {
	case res.BuyWeight > res.SellWeight && res.BuyWeight > res.HoldWeight:
		res.Action = strategy.Buy
		res.Quantity = median(buyQuantities)
	case res.SellWeight > res.BuyWeight && res.SellWeight > res.HoldWeight:
		res.Action = strategy.Sell
		res.Quantity = median(sellQuantities)
	default:
		res.Action = strategy.Hold
		res.Quantity = 0
	}
	return res
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
