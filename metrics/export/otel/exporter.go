package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/logani/storefront"
	"github.com/logani/storefront/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// RefreshInFlightName is the gauge reporting whether a refresh exchange is running.
const RefreshInFlightName = "storefront_refresh_in_flight"

// Source is what the exporter reads. *storefront.Client implements it. A Source that
// also has a RefreshInFlight() bool method gets the in-flight gauge.
type Source interface {
	MetricsSnapshot() storefront.MetricsSnapshot
	EventsDropped() uint64
}

type inFlightSource interface {
	RefreshInFlight() bool
}

// latencyGauge reports one histogram as cumulative counts, one data point per "le".
type latencyGauge struct {
	id    storefront.MetricID
	gauge metric.Int64ObservableGauge
	count metric.Int64ObservableGauge
}

type Exporter struct {
	source       Source
	registration metric.Registration

	counters  map[storefront.MetricID]metric.Int64ObservableCounter
	latencies []latencyGauge
	le        []metric.ObserveOption
	dropped   metric.Int64ObservableCounter
	inFlight  metric.Int64ObservableGauge
}

// NewExporter registers the instruments on meter and starts observing source.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[storefront.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	for _, label := range internaldefs.BucketLabels() {
		e.le = append(e.le, metric.WithAttributeSet(attribute.NewSet(attribute.String("le", label))))
	}

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = ins
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		g, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		n, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		e.latencies = append(e.latencies, latencyGauge{id: def.ID, gauge: g, count: n})
		observables = append(observables, g, n)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.EventsDroppedName,
		metric.WithDescription("Session events dropped on a full dispatcher buffer."))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.EventsDroppedName, err)
	}
	e.dropped = dropped
	observables = append(observables, dropped)

	if _, ok := source.(inFlightSource); ok {
		e.inFlight, err = meter.Int64ObservableGauge(RefreshInFlightName,
			metric.WithDescription("1 while a refresh exchange is running."))
		if err != nil {
			return nil, fmt.Errorf("gauge %s: %w", RefreshInFlightName, err)
		}
		observables = append(observables, e.inFlight)
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, ins := range e.counters {
		o.ObserveInt64(ins, int64(snap.Counters[id]))
	}
	for _, l := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[l.id]))
		for i, opt := range e.le {
			o.ObserveInt64(l.gauge, int64(cumulative[i]), opt)
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.dropped, int64(e.source.EventsDropped()))

	if src, ok := e.source.(inFlightSource); ok && e.inFlight != nil {
		var v int64
		if src.RefreshInFlight() {
			v = 1
		}
		o.ObserveInt64(e.inFlight, v)
	}
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
