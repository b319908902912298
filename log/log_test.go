package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type bufCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufCloser) Close() error {
	b.closed = true
	return nil
}

func TestLevelFromStringRoundTrip(t *testing.T) {
	for _, name := range []string{"OFF", "DEBUG", "INFO", "WARN", "ERROR", "CRITICAL", "FATAL"} {
		lvl, err := LevelFromString(name)
		require.NoError(t, err)
		require.Equal(t, name, lvl.String())
	}
	_, err := LevelFromString("bogus")
	require.Equal(t, ErrInvalidLevel, err)
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bufCloser
	l := New(&buf)
	require.NoError(t, l.SetLevel(WARN))

	l.Info("should be dropped")
	require.Empty(t, buf.String())

	l.Warn("should appear", Str("k", "v"))
	require.Contains(t, buf.String(), "should appear")
}

func TestLoggerSetLevelRejectsInvalid(t *testing.T) {
	l := NewDiscard()
	err := l.SetLevel(Level(99))
	require.Equal(t, ErrInvalidLevel, err)
	require.Equal(t, INFO, l.GetLevel())
}

func TestLoggerSetLevelString(t *testing.T) {
	l := NewDiscard()
	require.NoError(t, l.SetLevelString("debug"))
	require.Equal(t, DEBUG, l.GetLevel())
}

func TestLoggerCloseStopsOutput(t *testing.T) {
	var buf bufCloser
	l := New(&buf)
	require.NoError(t, l.Close())
	require.True(t, buf.closed)

	l.Info("dropped after close")
	require.Empty(t, buf.String())
}

func TestNewDiscardNeverPanics(t *testing.T) {
	l := NewDiscard()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	l.Critical("x")
}

func TestLoggerMultipleKVs(t *testing.T) {
	var buf bufCloser
	l := New(&buf)
	l.Error("boom", Str("code", "500"), Str("path", "/sign"))
	out := buf.String()
	require.True(t, strings.Contains(out, "boom"))
}
