package internal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel(" debug "))
	assert.Equal(t, LogLevelTrace, ParseLogLevel("TRACE"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
}

func TestLogger_LevelsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, LogLevelInfo).With("Evolution")

	l.Info("generation %d", 3)
	l.Debug("hidden")
	l.Warn("stalled")

	out := buf.String()
	assert.Contains(t, out, "[INFO] [Evolution] generation 3")
	assert.Contains(t, out, "[WARN] [Evolution] stalled")
	assert.False(t, strings.Contains(out, "hidden"))
	assert.Equal(t, LogLevelInfo, l.GetLevel())
}
