package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/data/duckdb"
	"github.com/peter-kozarec/barsim/pkg/datasource/historical"
)

const (
	january = `Date,Open,High,Low,Close,Adj Close,Volume
2024-01-08,10,11,9.5,10.5,10.5,1000
2024-01-09,10.5,12,10,11.5,11.5,1200
`
	february = `Date,Open,High,Low,Close,Adj Close,Volume
2024-02-01,11.5,12,11,11.75,11.75,900
`
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDumpAll(t *testing.T) {
	dir := t.TempDir()
	cfg := dumpConfig{
		inputs:    []string{writeCSV(t, dir, "jan.csv", january), writeCSV(t, dir, "feb.csv", february)},
		symbol:    "AAPL",
		output:    filepath.Join(dir, "AAPL.bin"),
		duckdb:    filepath.Join(dir, "bars.duckdb"),
		frequency: common.FrequencyDay,
		location:  time.UTC,
	}
	require.NoError(t, dumpAll(context.Background(), zap.NewNop(), cfg))

	source := historical.NewSource[historical.BinaryBar](cfg.output)
	require.NoError(t, source.Open())
	defer source.Close()

	rows, err := historical.NewBarReader(source, common.FrequencyDay, time.Time{}, time.Time{}).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), rows[2].Time)

	r := duckdb.NewReader(cfg.duckdb)
	require.NoError(t, r.Connect())
	defer r.Close()

	stored, err := r.LoadBars(context.Background(), "AAPL", time.Time{}, time.Time{}, common.FrequencyDay)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestDumpAll_Errors(t *testing.T) {
	dir := t.TempDir()
	jan := writeCSV(t, dir, "jan.csv", january)

	tests := []struct {
		name    string
		cfg     dumpConfig
		wantErr error
	}{
		{
			name:    "no output",
			cfg:     dumpConfig{inputs: []string{jan}, symbol: "AAPL"},
			wantErr: ErrNoOutput,
		},
		{
			name:    "overlapping inputs",
			cfg:     dumpConfig{inputs: []string{jan, jan}, symbol: "AAPL", output: filepath.Join(dir, "out.bin")},
			wantErr: historical.ErrDuplicateTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.frequency = common.FrequencyDay
			tt.cfg.location = time.UTC
			assert.ErrorIs(t, dumpAll(context.Background(), zap.NewNop(), tt.cfg), tt.wantErr)
		})
	}

	_, err := os.Stat(filepath.Join(dir, "out.bin"))
	assert.True(t, os.IsNotExist(err))
}
