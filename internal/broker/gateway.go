// Package broker places live orders and reconciles their fills into the
// account ledger.
package broker

import "context"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order is the gateway's view of one submitted order.
type Order struct {
	ID          string
	Status      string
	Filled      bool
	FilledPrice float64
	FilledQty   float64
}

type Account struct {
	Cash           float64
	PortfolioValue float64
}

// Gateway abstracts the live brokerage. The single implementation talks to
// Alpaca; tests substitute a fake.
type Gateway interface {
	SubmitMarketOrder(ctx context.Context, symbol string, qty float64, side Side, clientOrderID string) (Order, error)
	OrderStatus(ctx context.Context, orderID string) (Order, error)
	Account(ctx context.Context) (Account, error)
}

// terminalStatuses are order states that will never fill.
var terminalStatuses = map[string]bool{
	"canceled": true,
	"expired":  true,
	"rejected": true,
}

func Terminal(status string) bool { return terminalStatuses[status] }
