package internaldefs

import (
	"strconv"

	"github.com/logani/storefront"
)

// CounterDef names one client counter for exporters.
type CounterDef struct {
	ID   storefront.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram for exporters.
type HistogramDef struct {
	ID   storefront.MetricID
	Name string
	Help string
}

// EventsDroppedName is the counter for session events dropped on a full buffer.
const EventsDroppedName = "storefront_events_dropped_total"

var CounterDefs = []CounterDef{
	{ID: storefront.MetricRequestSent, Name: "storefront_requests_sent_total", Help: "HTTP requests issued by the pipeline, retries included."},
	{ID: storefront.MetricRequestRetried, Name: "storefront_requests_retried_total", Help: "Requests replayed once after a 401."},
	{ID: storefront.MetricRefreshExchange, Name: "storefront_refresh_exchanges_total", Help: "Refresh network calls."},
	{ID: storefront.MetricRefreshSuccess, Name: "storefront_refresh_success_total", Help: "Refresh exchanges that returned a new token pair."},
	{ID: storefront.MetricRefreshFailure, Name: "storefront_refresh_failure_total", Help: "Refresh exchanges that failed."},
	{ID: storefront.MetricRefreshJoined, Name: "storefront_refresh_joined_total", Help: "Callers that waited on an in-flight refresh."},
	{ID: storefront.MetricRefreshSkipped, Name: "storefront_refresh_skipped_total", Help: "Refreshes avoided because the session was already renewed."},
	{ID: storefront.MetricReauthRequired, Name: "storefront_reauth_required_total", Help: "Sessions cleared after an unrecoverable refresh failure."},
	{ID: storefront.MetricLoginSuccess, Name: "storefront_login_success_total", Help: "Successful logins."},
	{ID: storefront.MetricLoginFailure, Name: "storefront_login_failure_total", Help: "Failed logins."},
	{ID: storefront.MetricRegisterSuccess, Name: "storefront_register_success_total", Help: "Successful registrations."},
	{ID: storefront.MetricRegisterFailure, Name: "storefront_register_failure_total", Help: "Failed registrations."},
	{ID: storefront.MetricLogout, Name: "storefront_logout_total", Help: "Logouts. The local session is always cleared."},
	{ID: storefront.MetricLogoutServerFailure, Name: "storefront_logout_server_failure_total", Help: "Logouts whose server call failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: storefront.MetricRequestLatency, Name: "storefront_request_latency_seconds", Help: "End-to-end latency of a pipeline request."},
	{ID: storefront.MetricRefreshLatency, Name: "storefront_refresh_latency_seconds", Help: "Latency of one refresh exchange."},
}

// HistogramBounds are the bucket upper bounds in seconds. The last bucket is +Inf
// and is not listed.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BucketLabels returns the "le" label of each bucket, +Inf included, in the
// Prometheus text form.
func BucketLabels() []string {
	out := make([]string, 0, len(HistogramBounds)+1)
	for _, b := range HistogramBounds {
		out = append(out, strconv.FormatFloat(b, 'g', -1, 64))
	}
	return append(out, "+Inf")
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
