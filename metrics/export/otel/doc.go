// Package otel binds authcore engine metrics to an OpenTelemetry meter.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and
// flattens the latency histogram into one Int64ObservableGauge per
// cumulative bucket. A single callback reads the engine snapshot on each
// collection. Callers own the MeterProvider.
package otel
