// Package app wires the price index service together and manages its
// lifecycle.
//
// NewApplication takes a loaded configuration and builds, in order:
//
//  1. the JSON logger (unless one is supplied)
//  2. OpenTelemetry tracing and metrics, including the Prometheus registry
//  3. the run store, IndexService and HealthService
//  4. the chi router with its middleware chain
//  5. the http.Server using the configured timeouts
//
// # Middleware
//
// Every request passes RequestID, RealIP, OTel, StructuredLogger and the
// panic recoverer, then security headers, CORS and rate limiting when
// enabled. The /api/indexes routes additionally get API key auth (when keys
// are configured), the compute timeout, the upload size limit and JSON body
// validation. Health checks and /metrics are never behind API keys.
//
// # Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests within
// ShutdownTimeout and flushes telemetry. Errors are returned to the caller;
// the package never calls os.Exit.
package app
