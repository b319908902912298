// Package log provides the leveled, RFC5424-structured logger a Context
// uses for diagnostics, trimmed to what a client library needs rather
// than a long-running service.
package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

type Level int

const (
	OFF Level = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
	FATAL
)

const (
	defaultDepth = 3
	defaultID    = `goksi@1`
	maxAppname   = 48
	maxHostname  = 255
)

var (
	ErrNotOpen      = errors.New("logger is not open")
	ErrInvalidLevel = errors.New("log level is invalid")
)

func (l Level) String() string {
	switch l {
	case OFF:
		return "OFF"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	case FATAL:
		return "FATAL"
	}
	return "UNKNOWN"
}

func (l Level) valid() bool {
	return l >= OFF && l <= FATAL
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	case CRITICAL:
		return rfc5424.User | rfc5424.Crit
	case FATAL:
		return rfc5424.User | rfc5424.Emergency
	}
	return rfc5424.User | rfc5424.Debug
}

func LevelFromString(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case "OFF":
		return OFF, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "CRITICAL":
		return CRITICAL, nil
	case "FATAL":
		return FATAL, nil
	}
	return OFF, ErrInvalidLevel
}

// KV is a convenience alias so callers don't import rfc5424 directly.
type KV = rfc5424.SDParam

func Str(key, val string) KV { return rfc5424.SDParam{Name: key, Value: val} }

// Logger is a leveled logger writing RFC5424-structured lines to the
// writer given to New. A Context holds exactly one.
type Logger struct {
	hostname, appname string
	wtrs              []io.WriteCloser
	mtx               sync.Mutex
	lvl               Level
	hot               bool
}

// New creates a logger at level INFO writing to wtr.
func New(wtr io.WriteCloser) *Logger {
	l := &Logger{wtrs: []io.WriteCloser{wtr}, lvl: INFO, hot: true}
	l.appname = "goksi"
	if h, err := os.Hostname(); err == nil {
		l.hostname = trimLength(maxHostname, h)
	}
	return l
}

// NewDiscard creates a logger that drops every line, for callers who
// don't want diagnostics; a Context without a configured logger is valid.
func NewDiscard() *Logger {
	return New(discardCloser{})
}

func (l *Logger) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ready(); err != nil {
		return err
	}
	l.hot = false
	var err error
	for _, w := range l.wtrs {
		if lerr := w.Close(); lerr != nil {
			err = lerr
		}
	}
	return err
}

func (l *Logger) ready() error {
	if !l.hot || len(l.wtrs) == 0 {
		return ErrNotOpen
	}
	return nil
}

func (l *Logger) SetLevel(lvl Level) error {
	if !lvl.valid() {
		return ErrInvalidLevel
	}
	l.mtx.Lock()
	l.lvl = lvl
	l.mtx.Unlock()
	return nil
}

func (l *Logger) SetLevelString(s string) error {
	lvl, err := LevelFromString(s)
	if err != nil {
		return err
	}
	return l.SetLevel(lvl)
}

func (l *Logger) GetLevel() Level {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.lvl
}

func (l *Logger) Debug(msg string, kvs ...KV) { l.output(defaultDepth, DEBUG, msg, kvs...) }
func (l *Logger) Info(msg string, kvs ...KV)  { l.output(defaultDepth, INFO, msg, kvs...) }
func (l *Logger) Warn(msg string, kvs ...KV)  { l.output(defaultDepth, WARN, msg, kvs...) }
func (l *Logger) Error(msg string, kvs ...KV) { l.output(defaultDepth, ERROR, msg, kvs...) }
func (l *Logger) Critical(msg string, kvs ...KV) {
	l.output(defaultDepth, CRITICAL, msg, kvs...)
}

func (l *Logger) output(depth int, lvl Level, msg string, kvs ...KV) {
	l.mtx.Lock()
	cur := l.lvl
	l.mtx.Unlock()
	if cur == OFF || lvl < cur {
		return
	}
	ts := time.Now()
	loc := callLoc(depth)
	b, err := rfcMessage(ts, lvl.priority(), l.hostname, l.appname, loc, msg, kvs...)
	if err != nil || len(b) == 0 {
		return
	}
	l.writeOutput(strings.TrimRight(string(b), "\n\t\r"))
}

func (l *Logger) writeOutput(ln string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ready(); err != nil {
		return
	}
	for _, w := range l.wtrs {
		io.WriteString(w, ln)
		io.WriteString(w, "\n")
	}
}

func rfcMessage(ts time.Time, prio rfc5424.Priority, hostname, appname, msgID, msg string, kvs ...KV) ([]byte, error) {
	m := rfc5424.Message{
		Priority:  prio,
		Timestamp: ts,
		Hostname:  trimLength(maxHostname, hostname),
		AppName:   trimLength(maxAppname, appname),
		MessageID: trimLength(32, msgID),
		Message:   []byte(msg),
	}
	if len(kvs) > 0 {
		m.StructuredData = []rfc5424.StructuredData{{ID: defaultID, Parameters: kvs}}
	}
	return m.MarshalBinary()
}

func callLoc(depth int) string {
	if _, file, line, ok := runtime.Caller(depth); ok {
		dir, file := filepath.Split(file)
		file = filepath.Join(filepath.Base(dir), file)
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}

func trimLength(n int, s string) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type discardCloser struct{}

func (discardCloser) Write(b []byte) (int, error) { return len(b), nil }
func (discardCloser) Close() error                { return nil }
