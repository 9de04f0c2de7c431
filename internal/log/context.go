package log

import (
	"context"
	"sync/atomic"
)

type ctxKey struct{}

type holder struct{ l Logger }

var process atomic.Value // holder

// WithContext returns a new context that carries the given Logger
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the Logger stored in ctx, falling back to the
// process default and finally to a no-op logger.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
			return l
		}
	}
	return Default()
}

// SetDefault installs the process-wide fallback logger. Passing nil
// restores the no-op fallback.
func SetDefault(l Logger) {
	process.Store(holder{l: l})
}

// Default returns the logger installed with SetDefault, or Nop().
func Default() Logger {
	if h, ok := process.Load().(holder); ok && h.l != nil {
		return h.l
	}
	return Nop()
}
