package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/trendbot/pkg/id"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	record_id TEXT PRIMARY KEY,
	position_id TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	action TEXT NOT NULL,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	units REAL NOT NULL,
	market_trend TEXT NOT NULL,
	target_rr REAL NOT NULL,
	risk_amount REAL NOT NULL,
	entry_price REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	open_time DATETIME NOT NULL,
	exit_price REAL,
	realized_pl REAL,
	highest_pl REAL,
	lowest_pl REAL,
	reason TEXT,
	close_time DATETIME
);

CREATE INDEX IF NOT EXISTS idx_trades_trade_id ON trades(trade_id);
CREATE INDEX IF NOT EXISTS idx_trades_open_time ON trades(open_time);
`

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordOpen(e Entry) error {
	return j.insert("OPEN", e)
}

func (j *SQLiteJournal) RecordClose(e Entry) error {
	return j.insert("CLOSE", e)
}

// insert writes one row. Each row gets its own record id; e.ID correlates
// the OPEN and CLOSE rows of one position.
func (j *SQLiteJournal) insert(action string, e Entry) error {
	positionID := e.ID
	if positionID == "" {
		positionID = id.New()
	}
	_, err := j.db.Exec(`
		INSERT INTO trades
		(record_id, position_id, trade_id, action, instrument, side, units,
		 market_trend, target_rr, risk_amount,
		 entry_price, stop_loss, take_profit, open_time,
		 exit_price, realized_pl, highest_pl, lowest_pl, reason, close_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.New(), positionID, e.TradeID, action, e.Instrument, e.Side, e.Units,
		e.MarketTrend, e.TargetRR, e.RiskAmount,
		e.EntryPrice, e.StopLoss, e.TakeProfit, e.OpenTime,
		e.ExitPrice, e.RealizedPL, e.HighestPL, e.LowestPL, e.Reason, e.CloseTime,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
