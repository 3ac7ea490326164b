package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	cases := []struct {
		name       string
		production bool
		level      string
		enabled    zapcore.Level
		disabled   zapcore.Level
	}{
		{"dev default", false, "", zapcore.InfoLevel, zapcore.DebugLevel},
		{"dev debug", false, "debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"prod warn", true, "warn", zapcore.WarnLevel, zapcore.InfoLevel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log, err := New(tc.production, tc.level)
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tc.enabled))
			assert.False(t, log.Core().Enabled(tc.disabled))
		})
	}
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(false, "loud")
	assert.Error(t, err)
}
