package httpmw

import (
	"bufio"
	"context"
	"net"
	"net/http/httptest"
	"sync"

	"github.com/keithlinneman/titiler-go/internal/log"
)

type capturedLog struct {
	level  string
	msg    string
	err    error
	fields []any
}

// flatLogger records every call. With returns the same logger so that
// records from derived loggers land here too.
type flatLogger struct {
	mu      sync.Mutex
	entries []capturedLog
	withs   [][]any
}

func newFlatLogger() *flatLogger { return &flatLogger{} }

func (l *flatLogger) With(kv ...any) log.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.withs = append(l.withs, kv)
	return l
}

func (l *flatLogger) add(level, msg string, err error, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, capturedLog{level: level, msg: msg, err: err, fields: kv})
}

func (l *flatLogger) Debug(_ context.Context, msg string, kv ...any) { l.add("debug", msg, nil, kv) }
func (l *flatLogger) Info(_ context.Context, msg string, kv ...any)  { l.add("info", msg, nil, kv) }
func (l *flatLogger) Warn(_ context.Context, msg string, kv ...any)  { l.add("warn", msg, nil, kv) }
func (l *flatLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	l.add("error", msg, err, kv)
}
func (l *flatLogger) Sync() error { return nil }

func (l *flatLogger) last(level string) (capturedLog, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].level == level {
			return l.entries[i], true
		}
	}
	return capturedLog{}, false
}

func (l *flatLogger) lastInfo() (capturedLog, bool)  { return l.last("info") }
func (l *flatLogger) lastError() (capturedLog, bool) { return l.last("error") }

func (l *flatLogger) infoCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == "info" {
			n++
		}
	}
	return n
}

func (l *flatLogger) lastWith() ([]any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.withs) == 0 {
		return nil, false
	}
	return l.withs[len(l.withs)-1], true
}

// fieldValue looks key up in a flat kv list.
func fieldValue(fields []any, key string) (any, bool) {
	for i := 0; i+1 < len(fields); i += 2 {
		if k, ok := fields[i].(string); ok && k == key {
			return fields[i+1], true
		}
	}
	return nil, false
}

func withFieldValue(withs [][]any, key string) (any, bool) {
	for _, kv := range withs {
		if v, ok := fieldValue(kv, key); ok {
			return v, true
		}
	}
	return nil, false
}

type flusherRecorder struct {
	*httptest.ResponseRecorder
	flushed bool
}

func (f *flusherRecorder) Flush() { f.flushed = true }

type hijackRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

type noHijackRecorder struct {
	*httptest.ResponseRecorder
}
