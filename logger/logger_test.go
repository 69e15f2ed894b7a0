package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level, format string
		debug, info   bool
	}{
		{"debug", "console", true, true},
		{"info", "json", false, true},
		{"warn", "json", false, false},
		{"", "json", false, true},
		{"loud", "json", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			log, err := New(tt.level, tt.format, "asset-engine")
			require.NoError(t, err)
			assert.Equal(t, tt.debug, log.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, tt.info, log.Core().Enabled(zapcore.InfoLevel))
		})
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	log, err := New("info", "json", "")
	require.NoError(t, err)
	assert.Same(t, log, OrNop(log))
}
