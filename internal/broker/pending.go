package broker

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/AmpyFin/ampyfin/internal/metrics"
)

// Poll walks the pending order table once. Fills are reconciled and removed,
// terminal orders dropped, and orders that have been polled past their retry
// budget are flagged so they stop consuming cycles but stay visible.
func (t *Trader) Poll(ctx context.Context) error {
	pending, err := t.store.PendingOrders(ctx)
	if err != nil {
		return err
	}
	for _, p := range pending {
		order, err := t.gw.OrderStatus(ctx, p.OrderID)
		if err != nil {
			log.Warn().Err(err).Str("order_id", p.OrderID).Msg("pending order status check failed")
			continue
		}

		switch {
		case order.Filled:
			if err := t.applyFill(ctx, p.Symbol, Side(p.Side), order, p.StopLossPrice, p.TakeProfitPrice); err != nil {
				log.Error().Err(err).Str("order_id", p.OrderID).Msg("pending fill reconcile failed")
				continue
			}
			if err := t.store.DeletePendingOrder(ctx, p.OrderID); err != nil {
				return err
			}
			metrics.PendingOrders.Dec()

		case Terminal(order.Status):
			log.Info().Str("order_id", p.OrderID).Str("status", order.Status).Msg("pending order terminal, dropping")
			if err := t.store.DeletePendingOrder(ctx, p.OrderID); err != nil {
				return err
			}
			metrics.PendingOrders.Dec()

		case p.Retries+1 >= p.MaxRetries:
			log.Warn().Str("order_id", p.OrderID).Int("retries", p.Retries+1).
				Msg("pending order retry budget exhausted")
			if err := t.store.MarkPendingExhausted(ctx, p.OrderID); err != nil {
				return err
			}

		default:
			if err := t.store.TouchPendingOrder(ctx, p.OrderID, order.Status); err != nil {
				return err
			}
		}
	}
	return nil
}
