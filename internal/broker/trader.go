package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/AmpyFin/ampyfin/internal/ledger"
	"github.com/AmpyFin/ampyfin/internal/metrics"
	"github.com/AmpyFin/ampyfin/internal/pricefeed"
)

// Trader wraps the gateway with ledger bookkeeping: every fill adjusts the
// account position, sets or clears the stop/take band, and lands in the
// trade log. Orders that do not fill immediately are parked as pending and
// settled later by Poll.
type Trader struct {
	gw    Gateway
	feed  pricefeed.Feed
	store *ledger.Store

	StopLossPct       float64
	TakeProfitPct     float64
	PendingMaxRetries int
}

func NewTrader(gw Gateway, feed pricefeed.Feed, store *ledger.Store, stopPct, takePct float64, pendingMaxRetries int) *Trader {
	return &Trader{
		gw:                gw,
		feed:              feed,
		store:             store,
		StopLossPct:       stopPct,
		TakeProfitPct:     takePct,
		PendingMaxRetries: pendingMaxRetries,
	}
}

// ExecuteQueuedBuy satisfies the scheduler's executor. The stop/take band is
// anchored to the price at submission time, not the eventual fill.
func (t *Trader) ExecuteQueuedBuy(ctx context.Context, symbol string, quantity float64) (bool, error) {
	price, err := t.feed.LatestPrice(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("price for buy %s: %w", symbol, err)
	}
	return t.submit(ctx, symbol, quantity, SideBuy, price)
}

func (t *Trader) ExecuteSell(ctx context.Context, symbol string, quantity float64) (bool, error) {
	return t.submit(ctx, symbol, quantity, SideSell, 0)
}

// Cash re-reads the live account balance. Used between queued buys.
func (t *Trader) Cash(ctx context.Context) (float64, error) {
	acct, err := t.gw.Account(ctx)
	if err != nil {
		return 0, err
	}
	return acct.Cash, nil
}

func (t *Trader) Account(ctx context.Context) (Account, error) {
	return t.gw.Account(ctx)
}

func (t *Trader) submit(ctx context.Context, symbol string, quantity float64, side Side, refPrice float64) (bool, error) {
	quantity = ledger.RoundQty(quantity)
	if quantity <= 0 {
		return false, nil
	}

	clientOrderID := fmt.Sprintf("ampyfin-%s", strings.ToLower(ulid.Make().String()))
	order, err := t.gw.SubmitMarketOrder(ctx, symbol, quantity, side, clientOrderID)
	if err != nil {
		return false, err
	}

	var stop, take float64
	if side == SideBuy {
		stop = ledger.RoundCash(refPrice * (1 - t.StopLossPct))
		take = ledger.RoundCash(refPrice * (1 + t.TakeProfitPct))
	}

	if order.Filled {
		if err := t.applyFill(ctx, symbol, side, order, stop, take); err != nil {
			return true, err
		}
		return true, nil
	}

	pending := ledger.PendingOrder{
		OrderID:         order.ID,
		Symbol:          symbol,
		Side:            string(side),
		Quantity:        quantity,
		SubmittedAt:     time.Now().UTC(),
		Status:          order.Status,
		StopLossPrice:   stop,
		TakeProfitPrice: take,
		MaxRetries:      t.PendingMaxRetries,
	}
	if err := t.store.InsertPendingOrder(ctx, pending); err != nil {
		return true, fmt.Errorf("record pending order %s: %w", order.ID, err)
	}
	metrics.PendingOrders.Inc()
	log.Info().Str("order_id", order.ID).Str("symbol", symbol).Str("side", string(side)).
		Str("status", order.Status).Msg("order pending fill")
	return true, nil
}

// applyFill reconciles a filled order into the ledger. Position rows and
// their stop/take bands are removed together when a sell closes the lot.
func (t *Trader) applyFill(ctx context.Context, symbol string, side Side, order Order, stop, take float64) error {
	qty := order.FilledQty
	delta := qty
	if side == SideSell {
		delta = -qty
	}
	if err := t.store.AdjustPosition(ctx, symbol, delta); err != nil {
		return fmt.Errorf("adjust position %s: %w", symbol, err)
	}
	if side == SideBuy {
		if err := t.store.SetRiskLimit(ctx, ledger.RiskLimit{
			Symbol:          symbol,
			StopLossPrice:   stop,
			TakeProfitPrice: take,
		}); err != nil {
			return fmt.Errorf("set risk limit %s: %w", symbol, err)
		}
	}
	if err := t.store.AppendTrade(ctx, ledger.TradeRecord{
		OrderID:    order.ID,
		Symbol:     symbol,
		Side:       string(side),
		Quantity:   qty,
		Price:      order.FilledPrice,
		ExecutedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("append trade %s: %w", order.ID, err)
	}

	metrics.OrdersSubmitted.WithLabelValues(strings.ToLower(string(side))).Inc()
	log.Info().Str("order_id", order.ID).Str("symbol", symbol).Str("side", string(side)).
		Float64("qty", qty).Float64("price", order.FilledPrice).Msg("fill reconciled")
	return nil
}
