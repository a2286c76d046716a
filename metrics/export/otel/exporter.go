package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names. Engine counters share one instrument and are told
// apart by the "event" attribute.
const (
	EventsName         = "authcore.events"
	LatencyBucketsName = "authcore.authenticate.latency.buckets"
	LatencyCountName   = "authcore.authenticate.latency.count"
	AuditDroppedName   = "authcore.audit.dropped"

	eventKey = attribute.Key("event")
	leKey    = attribute.Key("le")
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

type eventSeries struct {
	id    authcore.MetricID
	attrs metric.ObserveOption
}

// OTelExporter publishes engine metrics through asynchronous instruments.
// Every collection reads one snapshot from the source.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	events  metric.Int64ObservableCounter
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	dropped metric.Int64ObservableCounter

	series    []eventSeries
	bucketsLE []metric.ObserveOption
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *authcore.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var err error

	e.events, err = meter.Int64ObservableCounter(EventsName,
		metric.WithDescription("Authentication and admission outcomes by event."))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", EventsName, err)
	}
	e.buckets, err = meter.Int64ObservableGauge(LatencyBucketsName,
		metric.WithDescription("Cumulative Authenticate latency samples at or below le seconds."))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", LatencyBucketsName, err)
	}
	e.count, err = meter.Int64ObservableGauge(LatencyCountName,
		metric.WithDescription("Authenticate latency samples."))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", LatencyCountName, err)
	}
	e.dropped, err = meter.Int64ObservableCounter(AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", AuditDroppedName, err)
	}

	// Attribute sets are fixed, so build them once.
	e.series = make([]eventSeries, 0, len(internaldefs.CounterDefs))
	for _, def := range internaldefs.CounterDefs {
		set := attribute.NewSet(eventKey.String(EventName(def.Name)))
		e.series = append(e.series, eventSeries{id: def.ID, attrs: metric.WithAttributeSet(set)})
	}
	e.bucketsLE = make([]metric.ObserveOption, len(internaldefs.HistogramBounds))
	for i, le := range internaldefs.HistogramBounds {
		e.bucketsLE[i] = metric.WithAttributeSet(attribute.NewSet(leKey.String(le)))
	}

	e.registration, err = meter.RegisterCallback(e.observe, e.events, e.buckets, e.count, e.dropped)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, s := range e.series {
		o.ObserveInt64(e.events, int64(snapshot.Counters[s.id]), s.attrs)
	}

	cumulative := internaldefs.CumulativeBuckets(
		internaldefs.NormalizeBuckets(snapshot.Histograms[authcore.MetricAuthenticateLatency]))
	for i, opt := range e.bucketsLE {
		o.ObserveInt64(e.buckets, int64(cumulative[i]), opt)
	}
	o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))

	o.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))
	return nil
}

// EventName turns an exposition counter name into the "event" attribute
// value: authcore_login_success_total becomes login_success.
func EventName(counter string) string {
	return strings.TrimSuffix(strings.TrimPrefix(counter, "authcore_"), "_total")
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
