package broker

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AlpacaGateway submits day market orders against the Alpaca trading API.
type AlpacaGateway struct {
	client *alpaca.Client
}

func NewAlpacaGateway(client *alpaca.Client) *AlpacaGateway {
	return &AlpacaGateway{client: client}
}

func NewAlpacaClient(apiKey, apiSecret, baseURL string) *alpaca.Client {
	return alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
}

func (g *AlpacaGateway) SubmitMarketOrder(ctx context.Context, symbol string, qty float64, side Side, clientOrderID string) (Order, error) {
	orderQty := decimal.NewFromFloat(qty)
	req := alpaca.PlaceOrderRequest{
		Symbol:        symbol,
		Qty:           &orderQty,
		Side:          alpaca.Side(mapSide(side)),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: clientOrderID,
	}

	order, err := g.client.PlaceOrder(req)
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Str("side", string(side)).Float64("qty", qty).
			Msg("place order failed")
		return Order{}, fmt.Errorf("place order %s %s: %w", side, symbol, err)
	}
	log.Info().Str("order_id", order.ID).Str("symbol", symbol).Str("side", string(side)).
		Float64("qty", qty).Str("status", string(order.Status)).Msg("order submitted")
	return toOrder(order), nil
}

func (g *AlpacaGateway) OrderStatus(ctx context.Context, orderID string) (Order, error) {
	order, err := g.client.GetOrder(orderID)
	if err != nil {
		return Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return toOrder(order), nil
}

func (g *AlpacaGateway) Account(ctx context.Context) (Account, error) {
	acct, err := g.client.GetAccount()
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	cash, _ := acct.Cash.Float64()
	equity, _ := acct.Equity.Float64()
	return Account{Cash: cash, PortfolioValue: equity}, nil
}

func toOrder(order *alpaca.Order) Order {
	out := Order{ID: order.ID, Status: string(order.Status)}
	if order.FilledQty.IsPositive() {
		out.FilledQty, _ = order.FilledQty.Float64()
	}
	if order.FilledAvgPrice != nil {
		out.FilledPrice, _ = order.FilledAvgPrice.Float64()
	}
	out.Filled = string(order.Status) == "filled" && out.FilledPrice > 0
	return out
}

func mapSide(side Side) string {
	if side == SideSell {
		return "sell"
	}
	return "buy"
}
