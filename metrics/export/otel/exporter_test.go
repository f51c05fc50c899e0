package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/logani/storefront"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot storefront.MetricsSnapshot
	dropped  uint64
}

type inFlightSource struct {
	*fakeSource
	inFlight bool
}

func (s inFlightSource) RefreshInFlight() bool { return s.inFlight }

func (f *fakeSource) MetricsSnapshot() storefront.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := storefront.MetricsSnapshot{
		Counters:   make(map[storefront.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[storefront.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) EventsDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// collect keys data points by metric name, suffixed with "{le}" when the point
// carries an le attribute.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					name := m.Name
					if le, ok := dp.Attributes.Value("le"); ok {
						name += "{" + le.AsString() + "}"
					}
					out[name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterCollectsValues(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: storefront.MetricsSnapshot{
			Counters: map[storefront.MetricID]uint64{
				storefront.MetricRefreshExchange: 3,
				storefront.MetricRefreshJoined:   11,
			},
			Histograms: map[storefront.MetricID][]uint64{
				storefront.MetricRefreshLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 2,
	}

	exp, err := NewExporter(provider.Meter("storefront-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collect(t, reader)
	if got["storefront_refresh_exchanges_total"] != 3 {
		t.Fatalf("refresh exchanges = %d", got["storefront_refresh_exchanges_total"])
	}
	if got["storefront_refresh_joined_total"] != 11 {
		t.Fatalf("refresh joined = %d", got["storefront_refresh_joined_total"])
	}
	if got["storefront_refresh_latency_seconds_bucket{0.025}"] != 3 {
		t.Fatalf("cumulative bucket = %d", got["storefront_refresh_latency_seconds_bucket{0.025}"])
	}
	if got["storefront_refresh_latency_seconds_bucket{+Inf}"] != 8 {
		t.Fatalf("+Inf bucket = %d", got["storefront_refresh_latency_seconds_bucket{+Inf}"])
	}
	if _, ok := got[RefreshInFlightName]; ok {
		t.Fatal("in-flight gauge registered for a source without RefreshInFlight")
	}
	if got["storefront_refresh_latency_seconds_count"] != 8 {
		t.Fatalf("histogram count = %d", got["storefront_refresh_latency_seconds_count"])
	}
	if got["storefront_events_dropped_total"] != 2 {
		t.Fatalf("events dropped = %d", got["storefront_events_dropped_total"])
	}
}

func TestExporterReportsRefreshInFlight(t *testing.T) {
	reader, provider := newMeter()
	src := inFlightSource{fakeSource: &fakeSource{}, inFlight: true}

	exp, err := NewExporter(provider.Meter("storefront-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	if got := collect(t, reader)[RefreshInFlightName]; got != 1 {
		t.Fatalf("refresh in flight = %d, want 1", got)
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newMeter()
	if _, err := NewExporter(provider.Meter("storefront-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: storefront.MetricsSnapshot{
			Counters:   map[storefront.MetricID]uint64{storefront.MetricRequestSent: 1},
			Histograms: map[storefront.MetricID][]uint64{},
		},
	}

	exp, err := NewExporter(provider.Meter("storefront-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[storefront.MetricRequestSent] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
