// Package api exposes the optional read-only status server: liveness, the
// Prometheus registry, and per-day progress of the current run.
package api
