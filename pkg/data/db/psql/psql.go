package psql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/peter-kozarec/barsim/pkg/common"
)

const createTradesTable = `
CREATE TABLE IF NOT EXISTS bar_trades (
	execution_id UUID NOT NULL,
	position_id  BIGINT NOT NULL,
	symbol       TEXT NOT NULL,
	direction    TEXT NOT NULL,
	entry_time   TIMESTAMPTZ NOT NULL,
	exit_time    TIMESTAMPTZ NOT NULL,
	quantity     NUMERIC NOT NULL,
	entry_price  NUMERIC NOT NULL,
	exit_price   NUMERIC NOT NULL,
	commission   NUMERIC NOT NULL,
	gross_profit NUMERIC NOT NULL,
	net_profit   NUMERIC NOT NULL,
	PRIMARY KEY (execution_id, position_id)
);`

// ConnString builds a lib/pq key/value connection string. Values are quoted.
func ConnString(host, port, user, pass, db string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		quote(host), quote(port), quote(user), quote(pass), quote(db))
}

func Connect(ctx context.Context, host, port, user, pass, db string) (*sql.DB, error) {
	return ConnectDSN(ctx, ConnString(host, port, user, pass, db))
}

// ConnectDSN accepts either a key/value string or a postgres:// URL.
func ConnectDSN(ctx context.Context, dsn string) (*sql.DB, error) {
	dbConn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := dbConn.PingContext(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	return dbConn, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createTradesTable); err != nil {
		return fmt.Errorf("unable to create bar_trades: %w", err)
	}
	return nil
}

// InsertTrade stores trade. NUMERIC columns receive the exact decimal text.
func InsertTrade(ctx context.Context, db *sql.DB, trade common.Trade) error {
	query := `
	INSERT INTO bar_trades (
		execution_id,
		position_id,
		symbol,
		direction,
		entry_time,
		exit_time,
		quantity,
		entry_price,
		exit_price,
		commission,
		gross_profit,
		net_profit
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (execution_id, position_id) DO NOTHING;
	`

	_, err := db.ExecContext(
		ctx,
		query,
		trade.ExecutionId.String(),
		int64(trade.PositionId), // #nosec G115
		trade.Symbol,
		string(trade.Direction),
		trade.EntryTime,
		trade.ExitTime,
		trade.Quantity.String(),
		trade.EntryPrice.String(),
		trade.ExitPrice.String(),
		trade.Commission.String(),
		trade.GrossProfit.String(),
		trade.NetProfit.String(),
	)

	return err
}

// TradeStore adapts InsertTrade to middleware.TradeWriter.
type TradeStore struct {
	db *sql.DB
}

func NewTradeStore(db *sql.DB) *TradeStore {
	return &TradeStore{db: db}
}

func (s *TradeStore) WriteTrade(ctx context.Context, trade common.Trade) error {
	return InsertTrade(ctx, s.db, trade)
}

func quote(value string) string {
	if value == "" {
		return "''"
	}
	needsQuotes := false
	for _, r := range value {
		if r == ' ' || r == '\'' || r == '\\' {
			needsQuotes = true
			break
		}
	}
	if !needsQuotes {
		return value
	}
	escaped := make([]rune, 0, len(value)+2)
	for _, r := range value {
		if r == '\'' || r == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, r)
	}
	return "'" + string(escaped) + "'"
}
