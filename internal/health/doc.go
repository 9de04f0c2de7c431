// Package health provides the probes and the liveness/readiness handlers
// served on the ops listener.
//
// Readiness is [All] of the [ShutdownGate] and a [Dependency] probe on the
// renderer. The gate closes as soon as draining starts so load balancers
// stop routing before in-flight tile requests finish.
package health
