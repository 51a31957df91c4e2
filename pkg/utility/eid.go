package utility

import (
	"sync"

	"github.com/google/uuid"
)

// ExecutionID identifies one backtest run. Exported trades and reports carry it.
type ExecutionID = uuid.UUID

var (
	executionID     ExecutionID
	executionIDOnce sync.Once
	executionIDMu   sync.RWMutex
)

func GetExecutionID() ExecutionID {
	executionIDOnce.Do(func() {
		executionIDMu.Lock()
		defer executionIDMu.Unlock()
		executionID = uuid.Must(uuid.NewV7())
	})

	executionIDMu.RLock()
	defer executionIDMu.RUnlock()
	return executionID
}

// ResetExecutionID starts a new run identity, used when several backtests share one process.
func ResetExecutionID() ExecutionID {
	executionIDOnce.Do(func() {})

	executionIDMu.Lock()
	defer executionIDMu.Unlock()

	executionID = uuid.Must(uuid.NewV7())
	return executionID
}

// NewExecutionID returns a fresh id without touching the process-wide one.
func NewExecutionID() ExecutionID {
	return uuid.Must(uuid.NewV7())
}
