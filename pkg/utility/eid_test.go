package utility

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUtility_GetExecutionID(t *testing.T) {
	id1 := GetExecutionID()
	id2 := GetExecutionID()

	assert.Equal(t, id1, id2)
	assert.Equal(t, 7, int(id1.Version()))
}

func TestUtility_ResetExecutionID(t *testing.T) {
	oldID := GetExecutionID()
	newID := ResetExecutionID()

	assert.NotEqual(t, oldID, newID)
	assert.Equal(t, newID, GetExecutionID())
}

func TestUtility_NewExecutionID(t *testing.T) {
	shared := GetExecutionID()
	fresh := NewExecutionID()

	assert.NotEqual(t, shared, fresh)
	assert.Equal(t, shared, GetExecutionID())
}

func TestUtility_GetExecutionIDConcurrent(t *testing.T) {
	const goroutines = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)

	results := make([]ExecutionID, goroutines)
	for i := 0; i < goroutines; i++ {
		go func(idx int) {
			defer wg.Done()
			results[idx] = GetExecutionID()
		}(i)
	}
	wg.Wait()

	for _, id := range results {
		assert.Equal(t, results[0], id)
	}
}
