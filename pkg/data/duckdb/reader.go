package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var (
	ErrInvalidSymbol = errors.New("symbol is not a valid table name")
	ErrNotConnected  = errors.New("database is not connected")

	symbolPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// barsTable returns the table holding the bars of symbol.
func barsTable(symbol string) (string, error) {
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return symbol + "_bars", nil
}

func open(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("unable to open duckdb %q: %w", dataSourceName, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to ping duckdb %q: %w", dataSourceName, err)
	}
	return db, nil
}

type Reader struct {
	dataSourceName string
	db             *sql.DB
}

func NewReader(dataSourceName string) *Reader {
	return &Reader{
		dataSourceName: dataSourceName,
	}
}

func (r *Reader) Connect() error {
	db, err := open(r.dataSourceName)
	if err != nil {
		return err
	}
	r.db = db
	return nil
}

func (r *Reader) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

// LoadBars reads the bars of symbol with from <= ts <= to, ordered by time.
// A zero bound is open.
func (r *Reader) LoadBars(ctx context.Context, symbol string, from, to time.Time, frequency common.Frequency) ([]common.Row[common.Bar], error) {
	if r.db == nil {
		return nil, ErrNotConnected
	}
	table, err := barsTable(symbol)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT ts, open, high, low, close, adj_close, volume FROM %s`, table)
	var args []any
	switch {
	case !from.IsZero() && !to.IsZero():
		query += ` WHERE ts BETWEEN ? AND ?`
		args = append(args, from, to)
	case !from.IsZero():
		query += ` WHERE ts >= ?`
		args = append(args, from)
	case !to.IsZero():
		query += ` WHERE ts <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY ts`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error preparing query: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var out []common.Row[common.Bar]
	for rows.Next() {
		var (
			ts                   time.Time
			o, h, l, c, adj, vol float64
		)
		if err := rows.Scan(&ts, &o, &h, &l, &c, &adj, &vol); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}

		bar, err := common.NewBar(
			fixed.FromFloat64(o),
			fixed.FromFloat64(h),
			fixed.FromFloat64(l),
			fixed.FromFloat64(c),
			fixed.FromFloat64(vol),
			fixed.FromFloat64(adj),
			frequency)
		if err != nil {
			return nil, fmt.Errorf("%s bar at %s: %w", symbol, ts, err)
		}
		out = append(out, common.NewRow(ts.UTC(), bar))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}

	return out, nil
}
