// Package httpmw holds the request pipeline of the tile server.
//
// The tile-serving interceptors hook the response start through
// StartWriter: each one mutates headers exactly once, right before the
// status is committed, and never after. PipelineConfig.Middlewares lists
// them in their fixed order; httpserver.NewHandler wraps that list with
// the infrastructure middleware (recovery, request id, tracing, client ip,
// rate limiting, metrics, request-scoped logging).
//
// The request-scoped logger deliberately carries no query string since it
// may hold an access_token. Only the debug request log records query
// parameters.
package httpmw
