package sched

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execRecorder struct {
	symbols []string
	placed  bool
}

func (e *execRecorder) ExecuteQueuedBuy(ctx context.Context, symbol string, quantity float64) (bool, error) {
	e.symbols = append(e.symbols, symbol)
	return e.placed, nil
}

func fixedCash(v float64) CashFunc {
	return func(ctx context.Context) (float64, error) { return v, nil }
}

func TestDrainPopsStrongestPriorityFirst(t *testing.T) {
	s := New(1000, 0)
	s.QueueBuy("MSFT", 2, -2)
	s.QueueBuy("NVDA", 5, -5)
	s.QueueBuy("AAPL", 1, -3)

	exec := &execRecorder{}
	require.NoError(t, s.Drain(context.Background(), exec, fixedCash(50000)))

	assert.Equal(t, []string{"NVDA", "AAPL", "MSFT"}, exec.symbols)
}

func TestDrainPrimaryBeforeSuggestions(t *testing.T) {
	s := New(1000, 0)
	s.QueueSuggestion("AMD", 2, -9)
	s.QueueBuy("AAPL", 1, -1)

	exec := &execRecorder{}
	require.NoError(t, s.Drain(context.Background(), exec, fixedCash(50000)))

	assert.Equal(t, []string{"AAPL", "AMD"}, exec.symbols,
		"a weak primary buy still outranks the strongest suggestion")
}

func TestDrainTiesKeepInsertionOrder(t *testing.T) {
	s := New(1000, 0)
	s.QueueBuy("FIRST", 1, -3)
	s.QueueBuy("SECOND", 1, -3)

	exec := &execRecorder{}
	require.NoError(t, s.Drain(context.Background(), exec, fixedCash(50000)))

	assert.Equal(t, []string{"FIRST", "SECOND"}, exec.symbols)
}

func TestDrainStopsAtLiquidityFloor(t *testing.T) {
	s := New(15000, 0)
	s.QueueBuy("AAPL", 1, -1)

	exec := &execRecorder{}
	require.NoError(t, s.Drain(context.Background(), exec, fixedCash(15000)))

	assert.Empty(t, exec.symbols)
}

func TestDrainDiscardsWhenHalted(t *testing.T) {
	s := New(1000, 0)
	s.QueueBuy("AAPL", 1, -1)
	s.Halt()

	exec := &execRecorder{}
	require.NoError(t, s.Drain(context.Background(), exec, fixedCash(50000)))

	assert.Empty(t, exec.symbols)
	assert.False(t, s.Halted(), "halt flag clears with the pass")
}

func TestDrainResetsQueues(t *testing.T) {
	s := New(1000, 0)
	s.QueueBuy("AAPL", 1, -1)
	s.QueueSuggestion("AMD", 2, -2)

	require.NoError(t, s.Drain(context.Background(), &execRecorder{}, fixedCash(50000)))

	assert.Zero(t, s.PrimaryLen())
	assert.Zero(t, s.SuggestionLen())
}

func TestDrainHonorsCancelledContext(t *testing.T) {
	s := New(1000, 0)
	s.QueueBuy("AAPL", 1, -1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &execRecorder{}
	assert.Error(t, s.Drain(ctx, rec, fixedCash(50000)))
	assert.Empty(t, rec.symbols)
}
