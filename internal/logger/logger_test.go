package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerRespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Service: "test", MinLevel: WARN, Terminal: &buf})

	l.Info("BOOKING", "should be dropped")
	l.Warn("BOOKING", "slot contention")

	out := buf.String()
	assert.NotContains(t, out, "should be dropped")
	assert.Contains(t, out, "slot contention")
	assert.Contains(t, out, "[BOOKING")
}

func TestLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l := New(Options{Service: "booking-service", Dir: dir, Terminal: &buf})
	l.LogBooking("CREATE", "b-1", "admitted")
	l.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "booking-service-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Category == "BOOKING" {
			found = true
			assert.Equal(t, "INFO", entry.Level)
			assert.Equal(t, "booking-service", entry.Service)
			assert.Equal(t, "[CREATE] b-1 - admitted", entry.Message)
		}
	}
	assert.True(t, found, "booking entry should be in the log file")
}

func TestFatalCallsExit(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Terminal: &buf})
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("CONFIG", "missing dsn")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "missing dsn")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" ERROR "))
	assert.Equal(t, INFO, ParseLevel(""))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestDiscardDropsEverything(t *testing.T) {
	l := Discard()
	assert.NotPanics(t, func() {
		l.Error("BOOKING", "nothing to see")
		l.LogLock("ACQUIRE", "r-1", "o-1")
	})
}
