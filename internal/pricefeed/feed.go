// Package pricefeed supplies current prices, daily close history, the market
// clock, and the tradable ticker universe.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/AmpyFin/ampyfin/internal/strategy"
)

var ErrUnavailable = errors.New("pricefeed: data unavailable")

// Feed is the read side of market data.
type Feed interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
	History(ctx context.Context, symbol, period string) (strategy.Series, error)
}

// AlpacaFeed reads from the Alpaca market data REST API. All calls go through
// a shared circuit breaker so a flaking data endpoint fails fast instead of
// stalling every ticker in the scan.
type AlpacaFeed struct {
	client  *marketdata.Client
	breaker *gobreaker.CircuitBreaker
}

func NewAlpacaFeed(apiKey, apiSecret string) *AlpacaFeed {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "alpaca-marketdata",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("market data breaker state change")
		},
	})
	return &AlpacaFeed{client: client, breaker: breaker}
}

func (f *AlpacaFeed) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	out, err := f.breaker.Execute(func() (any, error) {
		trade, err := f.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
		if err != nil {
			return nil, err
		}
		return trade.Price, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("%w: %s: %v", ErrUnavailable, symbol, err)
		}
		return 0, fmt.Errorf("latest trade %s: %w", symbol, err)
	}
	price := out.(float64)
	if price <= 0 {
		return 0, fmt.Errorf("%w: %s: non-positive price", ErrUnavailable, symbol)
	}
	return price, nil
}

// History returns daily closes for the named lookback period, oldest first.
func (f *AlpacaFeed) History(ctx context.Context, symbol, period string) (strategy.Series, error) {
	start, err := periodStart(period, time.Now())
	if err != nil {
		return nil, err
	}
	out, err := f.breaker.Execute(func() (any, error) {
		bars, err := f.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
		})
		if err != nil {
			return nil, err
		}
		return bars, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, symbol, err)
		}
		return nil, fmt.Errorf("bars %s: %w", symbol, err)
	}

	bars := out.([]marketdata.Bar)
	closes := make(strategy.Series, 0, len(bars))
	for _, bar := range bars {
		closes = append(closes, bar.Close)
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("%w: %s: no bars for period %s", ErrUnavailable, symbol, period)
	}
	return closes, nil
}

func periodStart(period string, now time.Time) (time.Time, error) {
	switch period {
	case "1mo":
		return now.AddDate(0, -1, 0), nil
	case "3mo":
		return now.AddDate(0, -3, 0), nil
	case "6mo":
		return now.AddDate(0, -6, 0), nil
	case "1y":
		return now.AddDate(-1, 0, 0), nil
	case "2y":
		return now.AddDate(-2, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("pricefeed: unknown period %q", period)
	}
}
