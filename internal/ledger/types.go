package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is one ticker lot inside a strategy's simulated portfolio.
type Holding struct {
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"price"`
}

// StrategyEntry is the per-strategy simulation document. Field names mirror
// the persisted keys so restarts pick up exactly where the last run stopped.
type StrategyEntry struct {
	Strategy         string
	Holdings         map[string]Holding
	AmountCash       float64
	PortfolioValue   float64
	SuccessfulTrades int
	FailedTrades     int
	NeutralTrades    int
	TotalTrades      int
	LastUpdated      time.Time
}

type PointsRecord struct {
	Strategy    string
	TotalPoints float64
	LastUpdated time.Time
}

type RankRecord struct {
	Strategy string
	Rank     int
}

type Position struct {
	Symbol   string
	Quantity float64
}

type RiskLimit struct {
	Symbol          string
	StopLossPrice   float64
	TakeProfitPrice float64
}

type PendingOrder struct {
	OrderID           string
	Symbol            string
	Side              string
	Quantity          float64
	SubmittedAt       time.Time
	Status            string
	StopLossPrice     float64
	TakeProfitPrice   float64
	Retries           int
	MaxRetries        int
	MaxRetriesReached bool
}

type TradeRecord struct {
	OrderID    string
	Symbol     string
	Side       string
	Quantity   float64
	Price      float64
	ExecutedAt time.Time
}

type PortfolioValue struct {
	Name       string
	Value      float64
	RecordedAt time.Time
}

const (
	cashPrecision = 2
	qtyPrecision  = 3
)

// RoundCash rounds a dollar amount to cents. All cash goes through here
// before persistence so repeated increments cannot accumulate float drift.
func RoundCash(v float64) float64 {
	return decimal.NewFromFloat(v).Round(cashPrecision).InexactFloat64()
}

// RoundQty rounds a share quantity to the broker's fractional precision.
func RoundQty(v float64) float64 {
	return decimal.NewFromFloat(v).Round(qtyPrecision).InexactFloat64()
}
