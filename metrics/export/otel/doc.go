// Package otel exposes the storefront client's counters and latency histograms as
// OpenTelemetry observable instruments.
//
// [NewExporter] registers one Int64ObservableCounter per counter. Each latency
// histogram becomes a _bucket gauge with one data point per "le" attribute plus a
// _count gauge. A single callback reads [storefront.Client.MetricsSnapshot] on each
// collection cycle, and [storefront.Client.RefreshInFlight] when the source has it.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
