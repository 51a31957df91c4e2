package dbg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level      string
		production bool
		enabled    zapcore.Level
		disabled   zapcore.Level
	}{
		{level: "debug", production: false, enabled: zapcore.DebugLevel, disabled: zapcore.DebugLevel - 1},
		{level: "info", production: true, enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{level: "warn", production: false, enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.production)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.disabled))
		})
	}

	_, err := NewLogger("loud", false)
	assert.Error(t, err)

	assert.NotNil(t, NewDevLogger())
	assert.NotNil(t, NewProdLogger())
}
