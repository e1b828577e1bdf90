// Package adapters installs telemetry sources as web framework middleware.
// Each request becomes one span on the source's tracer provider, continuing
// the trace of the caller.
package adapters
