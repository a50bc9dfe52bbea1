package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// Phase is the market session bucket the engine keys its loop off.
type Phase string

const (
	PhaseOpen       Phase = "OPEN"
	PhaseEarlyHours Phase = "EARLY_HOURS"
	PhaseClosed     Phase = "CLOSED"
	PhaseUnknown    Phase = "UNKNOWN"
)

// Clock reports the current market phase.
type Clock interface {
	Phase(ctx context.Context) (Phase, error)
}

// AlpacaClock derives the phase from the broker's clock endpoint. The window
// immediately before the open is reported as EARLY_HOURS for pre-open setup.
type AlpacaClock struct {
	client           *alpaca.Client
	EarlyHoursWindow time.Duration
}

func NewAlpacaClock(client *alpaca.Client, earlyWindow time.Duration) *AlpacaClock {
	return &AlpacaClock{client: client, EarlyHoursWindow: earlyWindow}
}

func (c *AlpacaClock) Phase(ctx context.Context) (Phase, error) {
	clock, err := c.client.GetClock()
	if err != nil {
		return PhaseUnknown, fmt.Errorf("market clock: %w", err)
	}
	if clock.IsOpen {
		return PhaseOpen, nil
	}
	if until := clock.NextOpen.Sub(clock.Timestamp); until > 0 && until <= c.EarlyHoursWindow {
		return PhaseEarlyHours, nil
	}
	return PhaseClosed, nil
}

// FixedClock always reports the same phase. Used in tests and dry runs.
type FixedClock struct{ Value Phase }

func (c FixedClock) Phase(ctx context.Context) (Phase, error) { return c.Value, nil }
