// Package sinks implements concrete progress consumers: Prometheus metrics,
// structured logging, and an in-memory status view served by the status API.
// Each sink satisfies progress.Sink and is safe for repeated Consume/Close
// cycles.
package sinks
