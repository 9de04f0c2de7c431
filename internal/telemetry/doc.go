// Package telemetry attaches request attributes to the active trace span.
//
// The sink used for a request travels in its context.Context; when none is
// set the OTel-backed span sink is used. Every operation is a no-op when
// the context carries no recording span, so callers never need to guard.
package telemetry
