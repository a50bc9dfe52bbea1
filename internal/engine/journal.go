package engine

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/AmpyFin/ampyfin/internal/strategy"
	"github.com/AmpyFin/ampyfin/internal/vote"
)

// Record is one journaled ticker decision: the vote that was taken and what
// the risk gate did with it.
type Record struct {
	RunID      string          `json:"run_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Symbol     string          `json:"symbol"`
	Price      float64         `json:"price"`
	Action     strategy.Action `json:"action"`
	Quantity   float64         `json:"quantity"`
	BuyWeight  float64         `json:"buy_weight"`
	SellWeight float64         `json:"sell_weight"`
	HoldWeight float64         `json:"hold_weight"`
	Outcome    string          `json:"outcome"`
	Reason     string          `json:"reason,omitempty"`
}

// Journal appends decision records as NDJSON, one line per ticker per pass.
type Journal struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewJournal(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{
		runID:  ulid.Make().String(),
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (j *Journal) RunID() string { return j.runID }

func (j *Journal) Append(symbol string, price float64, decision vote.Result, outcome, reason string) {
	rec := Record{
		RunID:      j.runID,
		Timestamp:  time.Now().UTC(),
		Symbol:     symbol,
		Price:      price,
		Action:     decision.Action,
		Quantity:   decision.Quantity,
		BuyWeight:  decision.BuyWeight,
		SellWeight: decision.SellWeight,
		HoldWeight: decision.HoldWeight,
		Outcome:    outcome,
		Reason:     reason,
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	payload, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal journal record")
		return
	}
	if _, err := j.writer.Write(append(payload, '\n')); err != nil {
		log.Error().Err(err).Msg("failed to write journal record")
		return
	}
	if err := j.writer.Flush(); err != nil {
		log.Error().Err(err).Msg("failed to flush journal")
	}
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		_ = j.file.Close()
		return err
	}
	return j.file.Close()
}
