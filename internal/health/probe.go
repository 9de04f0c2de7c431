package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// Probe reports nil when healthy and the failure reason otherwise.
type Probe interface{ Check(context.Context) error }

type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed always passes, or always fails with reason.
func Fixed(ok bool, reason string) CheckFunc {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return xerrors.New(reason) }
}

// All runs the non-nil probes in order and stops at the first failure.
func All(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Dependency checks an upstream the server cannot serve tiles without,
// such as the renderer. The check gets at most timeout and a failure is
// reported as "<name>: <reason>". A nil check always passes.
func Dependency(name string, timeout time.Duration, check CheckFunc) CheckFunc {
	return func(ctx context.Context) error {
		if check == nil {
			return nil
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := check(ctx); err != nil {
			return xerrors.Wrap(err, name)
		}
		return nil
	}
}

// ShutdownGate fails readiness once draining starts. It cannot be reopened.
type ShutdownGate struct {
	draining atomic.Bool
	reason   atomic.Value
}

// Set closes the gate. An empty reason reports as "draining".
func (g *ShutdownGate) Set(reason string) {
	if reason == "" {
		reason = "draining"
	}
	g.reason.Store(reason)
	g.draining.Store(true)
}

func (g *ShutdownGate) Draining() bool { return g.draining.Load() }

func (g *ShutdownGate) Probe() CheckFunc {
	return func(context.Context) error {
		if !g.draining.Load() {
			return nil
		}
		r, _ := g.reason.Load().(string)
		return xerrors.New(r)
	}
}
