package opshttp

import (
	"net/http"

	"github.com/keithlinneman/titiler-go/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe

	// AllowPublic skips the private-network check, for listeners bound
	// behind their own network policy
	AllowPublic bool

	// OnPanic runs after a handler panic was recovered
	OnPanic func()
}
