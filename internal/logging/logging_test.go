package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   zerolog.Level
		wantOK bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARNING ", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		lvl, ok := parseLevel(tt.raw)
		assert.Equal(t, tt.want, lvl, tt.raw)
		assert.Equal(t, tt.wantOK, ok, tt.raw)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "1")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)

	assert.Equal(t, zerolog.ErrorLevel, cfg.level)
	assert.False(t, cfg.timestamp)
	assert.True(t, cfg.noColor)
}

func TestNewLoggerWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config{level: zerolog.DebugLevel, noColor: true}, &buf)
	logger.Info().Str("key", "gcc1").Msg("installed")

	out := buf.String()
	require.Contains(t, out, "installed")
	assert.Contains(t, out, "key=gcc1")
}
