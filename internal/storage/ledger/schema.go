package ledger

// Schema creates the ledger tables. Money columns are TEXT holding exact decimals.
const Schema = `
CREATE TABLE IF NOT EXISTS account (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	initial_capital TEXT NOT NULL,
	opened_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS balance (
	date TEXT PRIMARY KEY,
	cash TEXT NOT NULL,
	total_equity TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	ticker TEXT PRIMARY KEY,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	entry_price TEXT NOT NULL,
	entry_date TEXT NOT NULL,
	current_price TEXT NOT NULL,
	unrealized_pnl TEXT NOT NULL,
	stop_price TEXT NOT NULL DEFAULT '0',
	highest_price_since_entry TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	ticker TEXT NOT NULL,
	action TEXT NOT NULL CHECK (action IN ('BUY', 'SELL')),
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	price TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	realized_pnl TEXT NOT NULL DEFAULT '0'
);

CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades(ticker);
`
