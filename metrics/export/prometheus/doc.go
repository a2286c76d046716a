// Package prometheus renders authcore metrics in Prometheus text exposition
// format.
//
// Counters are named authcore_*_total. The one histogram is
// authcore_authenticate_latency_seconds. Mount [PrometheusExporter.Handler];
// nothing is registered globally.
package prometheus
