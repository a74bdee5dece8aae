// Package prometheus exposes goToken metrics to Prometheus.
//
// [NewPrometheusExporter] reads an engine's MetricsSnapshot and either serves
// the text exposition format through [PrometheusExporter.Handler] or acts as
// a prometheus.Collector. Counter names are prefixed gotoken_*_total; the
// single histogram is gotoken_check_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers mount the
//     Handler or register the collector themselves.
//   - Mutate engine state.
package prometheus
