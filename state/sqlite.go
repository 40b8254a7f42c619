package state

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS signal_state (
	account_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	last_traded_signal DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (account_id, instrument, timeframe)
);
`

// SQLiteStore persists signal state in a small sqlite database, one row per
// (account, instrument, timeframe).
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(key Key) (Record, bool, error) {
	var last, updated time.Time
	err := s.db.QueryRow(`
		SELECT last_traded_signal, updated_at FROM signal_state
		WHERE account_id = ? AND instrument = ? AND timeframe = ?`,
		key.AccountID, key.Instrument, key.Timeframe,
	).Scan(&last, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return Record{LastTradedSignal: last.UTC(), UpdatedAt: updated.UTC()}, true, nil
}

func (s *SQLiteStore) Put(key Key, lastTradedSignal time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO signal_state (account_id, instrument, timeframe, last_traded_signal, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id, instrument, timeframe)
		DO UPDATE SET last_traded_signal = excluded.last_traded_signal, updated_at = excluded.updated_at`,
		key.AccountID, key.Instrument, key.Timeframe, lastTradedSignal.UTC(), time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) Clear(key Key) error {
	_, err := s.db.Exec(`
		DELETE FROM signal_state
		WHERE account_id = ? AND instrument = ? AND timeframe = ?`,
		key.AccountID, key.Instrument, key.Timeframe,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
