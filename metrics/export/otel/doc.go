// Package otel exposes authcore metrics through an OpenTelemetry Meter.
//
// Engine counters are reported on one Int64ObservableCounter,
// authcore.events, with an "event" attribute per outcome. Authenticate
// latency is reported as cumulative bucket gauges keyed by "le". One
// callback reads the engine snapshot per collection. The caller owns the
// MeterProvider.
package otel
