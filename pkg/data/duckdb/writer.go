package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

const createTradesTable = `
CREATE TABLE IF NOT EXISTS trades (
	execution_id VARCHAR NOT NULL,
	position_id  UBIGINT NOT NULL,
	symbol       VARCHAR NOT NULL,
	direction    VARCHAR NOT NULL,
	entry_time   TIMESTAMP NOT NULL,
	exit_time    TIMESTAMP NOT NULL,
	quantity     DOUBLE NOT NULL,
	entry_price  DOUBLE NOT NULL,
	exit_price   DOUBLE NOT NULL,
	commission   DOUBLE NOT NULL,
	gross_profit DOUBLE NOT NULL,
	net_profit   DOUBLE NOT NULL,
	PRIMARY KEY (execution_id, position_id)
)`

const insertTrade = `
INSERT INTO trades (
	execution_id, position_id, symbol, direction, entry_time, exit_time,
	quantity, entry_price, exit_price, commission, gross_profit, net_profit
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING`

const createBarsTable = `
CREATE TABLE IF NOT EXISTS %s (
	ts        TIMESTAMP PRIMARY KEY,
	open      DOUBLE NOT NULL,
	high      DOUBLE NOT NULL,
	low       DOUBLE NOT NULL,
	close     DOUBLE NOT NULL,
	adj_close DOUBLE NOT NULL,
	volume    DOUBLE NOT NULL
)`

// Writer stores closed trades in a "trades" table and bars in "<symbol>_bars" tables.
type Writer struct {
	dataSourceName string
	db             *sql.DB
}

func NewWriter(dataSourceName string) *Writer {
	return &Writer{
		dataSourceName: dataSourceName,
	}
}

// Connect opens the database and creates the trades table.
func (w *Writer) Connect(ctx context.Context) error {
	db, err := open(w.dataSourceName)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, createTradesTable); err != nil {
		_ = db.Close()
		return fmt.Errorf("unable to create trades table: %w", err)
	}
	w.db = db
	return nil
}

func (w *Writer) Close() {
	if w.db != nil {
		_ = w.db.Close()
	}
}

func (w *Writer) WriteTrade(ctx context.Context, trade common.Trade) error {
	return w.WriteTrades(ctx, []common.Trade{trade})
}

// WriteTrades inserts trades in one transaction. Trades already stored are skipped.
func (w *Writer) WriteTrades(ctx context.Context, trades []common.Trade) error {
	if w.db == nil {
		return ErrNotConnected
	}

	return w.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertTrade)
		if err != nil {
			return fmt.Errorf("error preparing insert: %w", err)
		}
		defer func(stmt *sql.Stmt) {
			_ = stmt.Close()
		}(stmt)

		for _, trade := range trades {
			_, err := stmt.ExecContext(ctx,
				trade.ExecutionId.String(),
				trade.PositionId,
				trade.Symbol,
				string(trade.Direction),
				trade.EntryTime,
				trade.ExitTime,
				float(trade.Quantity),
				float(trade.EntryPrice),
				float(trade.ExitPrice),
				float(trade.Commission),
				float(trade.GrossProfit),
				float(trade.NetProfit))
			if err != nil {
				return fmt.Errorf("error inserting trade of position %d: %w", trade.PositionId, err)
			}
		}
		return nil
	})
}

// WriteBars creates the bars table of symbol if needed and upserts rows into it.
func (w *Writer) WriteBars(ctx context.Context, symbol string, rows []common.Row[common.Bar]) error {
	if w.db == nil {
		return ErrNotConnected
	}
	table, err := barsTable(symbol)
	if err != nil {
		return err
	}

	return w.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(createBarsTable, table)); err != nil {
			return fmt.Errorf("unable to create %s: %w", table, err)
		}

		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT OR REPLACE INTO %s VALUES (?, ?, ?, ?, ?, ?, ?)`, table))
		if err != nil {
			return fmt.Errorf("error preparing insert: %w", err)
		}
		defer func(stmt *sql.Stmt) {
			_ = stmt.Close()
		}(stmt)

		for _, row := range rows {
			bar := row.Value
			_, err := stmt.ExecContext(ctx,
				row.Time.UTC(),
				float(bar.Open),
				float(bar.High),
				float(bar.Low),
				float(bar.Close),
				float(bar.AdjClose),
				float(bar.Volume))
			if err != nil {
				return fmt.Errorf("error inserting %s bar at %s: %w", symbol, row.Time, err)
			}
		}
		return nil
	})
}

// TradeCount returns the number of stored trades.
func (w *Writer) TradeCount(ctx context.Context) (int, error) {
	if w.db == nil {
		return 0, ErrNotConnected
	}
	var n int
	if err := w.db.QueryRowContext(ctx, `SELECT count(*) FROM trades`).Scan(&n); err != nil {
		return 0, fmt.Errorf("unable to count trades: %w", err)
	}
	return n, nil
}

func (w *Writer) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("unable to commit: %w", err)
	}
	return nil
}

func float(p fixed.Point) float64 {
	f, _ := p.Float64()
	return f
}
