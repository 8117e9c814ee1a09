// Package prometheus exposes authcore engine metrics as a
// prometheus.Collector.
//
// Counters are named authcore_*_total, the ValidateSession latency
// histogram is authcore_validate_latency_seconds, and the session cache
// size is the authcore_cached_sessions gauge. Register the [Collector] with
// any registry, or mount [Collector.Handler] directly.
package prometheus
