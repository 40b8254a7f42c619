package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CSVJournal appends trade rows to a single CSV file, one row per open and
// one per close. The file is opened in append mode so restarts never clobber
// history; the header is written only when the file is new.
type CSVJournal struct {
	w *csv.Writer
	f *os.File
}

var csvHeader = []string{
	"record_id", "trade_id", "action", "instrument", "side", "units",
	"market_trend", "target_rr", "risk_amount",
	"entry_price", "stop_loss", "take_profit", "open_time",
	"exit_price", "realized_pl", "highest_pl", "lowest_pl", "reason", "close_time",
}

func NewCSV(path string) (*CSVJournal, error) {
	info, err := os.Stat(path)
	fresh := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open journal csv: %w", err)
	}

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &CSVJournal{w: w, f: f}, nil
}

func (j *CSVJournal) RecordOpen(e Entry) error {
	return j.write("OPEN", e)
}

func (j *CSVJournal) RecordClose(e Entry) error {
	return j.write("CLOSE", e)
}

func (j *CSVJournal) write(action string, e Entry) error {
	closeTime := ""
	if !e.CloseTime.IsZero() {
		closeTime = e.CloseTime.Format(time.RFC3339)
	}
	err := j.w.Write([]string{
		e.ID, e.TradeID, action, e.Instrument, e.Side, f(e.Units),
		e.MarketTrend, f(e.TargetRR), f(e.RiskAmount),
		f(e.EntryPrice), f(e.StopLoss), f(e.TakeProfit), e.OpenTime.Format(time.RFC3339),
		f(e.ExitPrice), f(e.RealizedPL), f(e.HighestPL), f(e.LowestPL), e.Reason, closeTime,
	})
	if err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSVJournal) Close() error {
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
