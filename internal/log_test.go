package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel(" debug "))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("ignored %d", 1)
		l.Named("x").Warn("ignored")
		OrNop(l).Error("ignored")
	})
}

func TestNamedKeepsLevel(t *testing.T) {
	l := NewLogger(LogLevelWarn)
	assert.Equal(t, LogLevelWarn, l.Named("inference").GetLevel())
}
