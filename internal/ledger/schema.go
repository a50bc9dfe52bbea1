package ledger

const schema = `
CREATE TABLE IF NOT EXISTS algorithm_holdings (
	strategy TEXT PRIMARY KEY,
	holdings TEXT NOT NULL DEFAULT '{}',
	amount_cash REAL NOT NULL DEFAULT 0,
	portfolio_value REAL NOT NULL DEFAULT 0,
	successful_trades INTEGER NOT NULL DEFAULT 0,
	failed_trades INTEGER NOT NULL DEFAULT 0,
	neutral_trades INTEGER NOT NULL DEFAULT 0,
	total_trades INTEGER NOT NULL DEFAULT 0,
	last_updated DATETIME
);

CREATE TABLE IF NOT EXISTS points_tally (
	strategy TEXT PRIMARY KEY,
	total_points REAL NOT NULL DEFAULT 0,
	last_updated DATETIME
);

CREATE TABLE IF NOT EXISTS rank (
	strategy TEXT PRIMARY KEY,
	rank INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rank_to_coefficient (
	rank INTEGER PRIMARY KEY,
	coefficient REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS assets_quantities (
	symbol TEXT PRIMARY KEY,
	quantity REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS assets_limit (
	symbol TEXT PRIMARY KEY,
	stop_loss_price REAL NOT NULL,
	take_profit_price REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_orders (
	order_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	submitted_at DATETIME NOT NULL,
	status TEXT NOT NULL,
	stop_loss_price REAL NOT NULL DEFAULT 0,
	take_profit_price REAL NOT NULL DEFAULT 0,
	retries INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 10,
	max_retries_reached INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS time_delta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	time_delta REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	executed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tickers (
	symbol TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS indicator_periods (
	strategy TEXT PRIMARY KEY,
	ideal_period TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolio_values (
	name TEXT NOT NULL,
	portfolio_value REAL NOT NULL,
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_portfolio_values_name ON portfolio_values(name, recorded_at);
`
