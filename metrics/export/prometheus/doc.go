// Package prometheus exposes goIdentity metrics as a Prometheus collector.
//
// [PrometheusExporter] implements [prometheus.Collector]. Register it on a
// caller-owned registry, or mount [PrometheusExporter.Handler], which serves a
// private registry. Counter names are goidentity_*_total; the latency
// histograms are goidentity_login_latency_seconds and
// goidentity_verify_token_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
