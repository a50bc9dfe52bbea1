// Package ledger persists every cross-session document the engine relies on:
// per-strategy simulation entries, points, ranks, live positions and their
// risk limits, pending orders, the time-delta scalar, and reference tables.
// Collections map one-to-one onto sqlite tables; every mutation is a single
// statement (or a single transaction for clear-then-insert rebuilds), so a
// restart resumes from persisted state with no in-memory recovery.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a keyed lookup has no document.
var ErrNotFound = errors.New("ledger: not found")

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- strategy entries ----

func (s *Store) StrategyEntries(ctx context.Context) ([]StrategyEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strategy, holdings, amount_cash, portfolio_value,
		       successful_trades, failed_trades, neutral_trades, total_trades, last_updated
		FROM algorithm_holdings ORDER BY strategy`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []StrategyEntry
	for rows.Next() {
		entry, err := scanStrategyEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) StrategyEntry(ctx context.Context, name string) (StrategyEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT strategy, holdings, amount_cash, portfolio_value,
		       successful_trades, failed_trades, neutral_trades, total_trades, last_updated
		FROM algorithm_holdings WHERE strategy = ?`, name)
	entry, err := scanStrategyEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StrategyEntry{}, ErrNotFound
	}
	return entry, err
}

// SaveStrategyEntry upserts the whole document in one statement, keeping the
// read-modify-write on a single strategy entry atomic.
func (s *Store) SaveStrategyEntry(ctx context.Context, e StrategyEntry) error {
	if e.Holdings == nil {
		e.Holdings = map[string]Holding{}
	}
	holdings, err := json.Marshal(e.Holdings)
	if err != nil {
		return fmt.Errorf("encode holdings for %s: %w", e.Strategy, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO algorithm_holdings
			(strategy, holdings, amount_cash, portfolio_value,
			 successful_trades, failed_trades, neutral_trades, total_trades, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(strategy) DO UPDATE SET
			holdings = excluded.holdings,
			amount_cash = excluded.amount_cash,
			portfolio_value = excluded.portfolio_value,
			successful_trades = excluded.successful_trades,
			failed_trades = excluded.failed_trades,
			neutral_trades = excluded.neutral_trades,
			total_trades = excluded.total_trades,
			last_updated = excluded.last_updated`,
		e.Strategy, string(holdings), RoundCash(e.AmountCash), RoundCash(e.PortfolioValue),
		e.SuccessfulTrades, e.FailedTrades, e.NeutralTrades, e.TotalTrades, e.LastUpdated)
	return err
}

func (s *Store) SetPortfolioValue(ctx context.Context, strategy string, value float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE algorithm_holdings SET portfolio_value = ? WHERE strategy = ?`,
		RoundCash(value), strategy)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStrategyEntry(row rowScanner) (StrategyEntry, error) {
	var e StrategyEntry
	var holdings string
	var updated sql.NullTime
	err := row.Scan(&e.Strategy, &holdings, &e.AmountCash, &e.PortfolioValue,
		&e.SuccessfulTrades, &e.FailedTrades, &e.NeutralTrades, &e.TotalTrades, &updated)
	if err != nil {
		return StrategyEntry{}, err
	}
	if err := json.Unmarshal([]byte(holdings), &e.Holdings); err != nil {
		return StrategyEntry{}, fmt.Errorf("decode holdings for %s: %w", e.Strategy, err)
	}
	if e.Holdings == nil {
		e.Holdings = map[string]Holding{}
	}
	e.LastUpdated = updated.Time
	return e, nil
}

// ---- points ----

func (s *Store) Points(ctx context.Context, strategy string) (PointsRecord, error) {
	var rec PointsRecord
	var updated sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT strategy, total_points, last_updated FROM points_tally WHERE strategy = ?`,
		strategy).Scan(&rec.Strategy, &rec.TotalPoints, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return PointsRecord{}, ErrNotFound
	}
	rec.LastUpdated = updated.Time
	return rec, err
}

func (s *Store) AddPoints(ctx context.Context, strategy string, delta float64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO points_tally (strategy, total_points, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(strategy) DO UPDATE SET
			total_points = total_points + excluded.total_points,
			last_updated = excluded.last_updated`,
		strategy, delta, now)
	return err
}

// ---- ranks and coefficients ----

// ReplaceRanks rebuilds the whole rank table in one transaction. Readers see
// either the old table or the new one, never a partial mix.
func (s *Store) ReplaceRanks(ctx context.Context, ranks []RankRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rank`); err != nil {
		return err
	}
	for _, r := range ranks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rank (strategy, rank) VALUES (?, ?)`, r.Strategy, r.Rank); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Ranks(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT strategy, rank FROM rank`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranks := map[string]int{}
	for rows.Next() {
		var strategy string
		var rank int
		if err := rows.Scan(&strategy, &rank); err != nil {
			return nil, err
		}
		ranks[strategy] = rank
	}
	return ranks, rows.Err()
}

func (s *Store) Coefficients(ctx context.Context) (map[int]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT rank, coefficient FROM rank_to_coefficient`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coefficients := map[int]float64{}
	for rows.Next() {
		var rank int
		var coefficient float64
		if err := rows.Scan(&rank, &coefficient); err != nil {
			return nil, err
		}
		coefficients[rank] = coefficient
	}
	return coefficients, rows.Err()
}

func (s *Store) ReplaceCoefficients(ctx context.Context, coefficients map[int]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rank_to_coefficient`); err != nil {
		return err
	}
	for rank, coefficient := range coefficients {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rank_to_coefficient (rank, coefficient) VALUES (?, ?)`, rank, coefficient); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ---- live positions and limits ----

func (s *Store) PositionQty(ctx context.Context, symbol string) (float64, error) {
	var qty float64
	err := s.db.QueryRowContext(ctx,
		`SELECT quantity FROM assets_quantities WHERE symbol = ?`, symbol).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

func (s *Store) Positions(ctx context.Context) ([]Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, quantity FROM assets_quantities ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Symbol, &p.Quantity); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// AdjustPosition increments a symbol's quantity, creating the row on first
// buy. A position that lands on exactly zero is removed along with its risk
// limit; zero-quantity rows are never persisted.
func (s *Store) AdjustPosition(ctx context.Context, symbol string, delta float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO assets_quantities (symbol, quantity) VALUES (?, ?)
		ON CONFLICT(symbol) DO UPDATE SET quantity = quantity + excluded.quantity`,
		symbol, RoundQty(delta)); err != nil {
		return err
	}

	var qty float64
	if err := tx.QueryRowContext(ctx,
		`SELECT quantity FROM assets_quantities WHERE symbol = ?`, symbol).Scan(&qty); err != nil {
		return err
	}
	if RoundQty(qty) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM assets_quantities WHERE symbol = ?`, symbol); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM assets_limit WHERE symbol = ?`, symbol); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) RiskLimit(ctx context.Context, symbol string) (RiskLimit, error) {
	var limit RiskLimit
	err := s.db.QueryRowContext(ctx,
		`SELECT symbol, stop_loss_price, take_profit_price FROM assets_limit WHERE symbol = ?`,
		symbol).Scan(&limit.Symbol, &limit.StopLossPrice, &limit.TakeProfitPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return RiskLimit{}, ErrNotFound
	}
	return limit, err
}

func (s *Store) SetRiskLimit(ctx context.Context, limit RiskLimit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets_limit (symbol, stop_loss_price, take_profit_price) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			stop_loss_price = excluded.stop_loss_price,
			take_profit_price = excluded.take_profit_price`,
		limit.Symbol, limit.StopLossPrice, limit.TakeProfitPrice)
	return err
}

func (s *Store) DeleteRiskLimit(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM assets_limit WHERE symbol = ?`, symbol)
	return err
}

// ---- pending orders ----

func (s *Store) InsertPendingOrder(ctx context.Context, o PendingOrder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_orders
			(order_id, symbol, side, quantity, submitted_at, status,
			 stop_loss_price, take_profit_price, retries, max_retries)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.Symbol, o.Side, RoundQty(o.Quantity), o.SubmittedAt, o.Status,
		o.StopLossPrice, o.TakeProfitPrice, o.Retries, o.MaxRetries)
	return err
}

// PendingOrders returns orders still below their retry cap and not yet
// flagged as exhausted.
func (s *Store) PendingOrders(ctx context.Context) ([]PendingOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, symbol, side, quantity, submitted_at, status,
		       stop_loss_price, take_profit_price, retries, max_retries, max_retries_reached
		FROM pending_orders
		WHERE retries < max_retries AND max_retries_reached = 0
		ORDER BY submitted_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []PendingOrder
	for rows.Next() {
		var o PendingOrder
		if err := rows.Scan(&o.OrderID, &o.Symbol, &o.Side, &o.Quantity, &o.SubmittedAt,
			&o.Status, &o.StopLossPrice, &o.TakeProfitPrice, &o.Retries, &o.MaxRetries,
			&o.MaxRetriesReached); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Store) TouchPendingOrder(ctx context.Context, orderID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_orders SET retries = retries + 1, status = ? WHERE order_id = ?`,
		status, orderID)
	return err
}

func (s *Store) MarkPendingExhausted(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_orders SET max_retries_reached = 1 WHERE order_id = ?`, orderID)
	return err
}

func (s *Store) DeletePendingOrder(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_orders WHERE order_id = ?`, orderID)
	return err
}

// ---- time delta ----

// TimeDelta returns the global reward scalar, seeding it at 1.0 on first use.
func (s *Store) TimeDelta(ctx context.Context) (float64, error) {
	var v float64
	err := s.db.QueryRowContext(ctx, `SELECT time_delta FROM time_delta WHERE id = 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO time_delta (id, time_delta) VALUES (1, 1.0)`); err != nil {
			return 0, err
		}
		return 1.0, nil
	}
	return v, err
}

func (s *Store) SetTimeDelta(ctx context.Context, v float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_delta (id, time_delta) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET time_delta = excluded.time_delta`, v)
	return err
}

// ---- reference data ----

func (s *Store) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM tickers ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, err
		}
		tickers = append(tickers, symbol)
	}
	return tickers, rows.Err()
}

func (s *Store) ReplaceTickers(ctx context.Context, symbols []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tickers`); err != nil {
		return err
	}
	for _, symbol := range symbols {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tickers (symbol) VALUES (?)`, symbol); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) IndicatorPeriod(ctx context.Context, strategy string) (string, error) {
	var period string
	err := s.db.QueryRowContext(ctx,
		`SELECT ideal_period FROM indicator_periods WHERE strategy = ?`, strategy).Scan(&period)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return period, err
}

func (s *Store) SetIndicatorPeriod(ctx context.Context, strategy, period string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indicator_periods (strategy, ideal_period) VALUES (?, ?)
		ON CONFLICT(strategy) DO UPDATE SET ideal_period = excluded.ideal_period`,
		strategy, period)
	return err
}

// ---- journals ----

func (s *Store) AppendTrade(ctx context.Context, t TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_log (order_id, symbol, side, quantity, price, executed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.OrderID, t.Symbol, t.Side, RoundQty(t.Quantity), t.Price, t.ExecutedAt)
	return err
}

func (s *Store) RecordPortfolioValue(ctx context.Context, name string, value float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolio_values (name, portfolio_value, recorded_at) VALUES (?, ?, ?)`,
		name, value, at)
	return err
}
