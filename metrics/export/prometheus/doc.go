// Package prometheus exposes the storefront client's metrics as a client_golang
// [prometheus.Collector].
//
// Counter names are storefront_*_total; the latency histograms are
// storefront_request_latency_seconds and storefront_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers register the Collector or
//     mount the Handler.
//   - Mutate client state.
package prometheus
