// Package metric provides the Prometheus registry, the bridge metrics, and
// the HTTP server that exposes them.
//
// MetricsRegistry owns a private prometheus.Registry. The bridge metrics
// (Metrics) are registered at construction together with the Go runtime and
// process collectors. Components that carry their own metrics, such as the
// worker pool and the JetStream consumer, register them through the
// MetricsRegistrar interface keyed by service and metric name:
//
//	registry := metric.NewMetricsRegistry()
//	registry.CoreMetrics().RecordGroup(metric.GroupSent)
//
//	err := registry.RegisterCounter("worker_pool_echo", "dropped_total", dropped)
//
// Registering the same service and metric twice returns an invalid-class error
// rather than panicking.
//
// Server serves /metrics in the Prometheus exposition format and /health as
// the JSON aggregate of a HealthSource (typically a health.Monitor),
// answering 503 when the aggregate is unhealthy:
//
//	srv := metric.NewServer(9090, "/metrics", "semstreams-fix", registry, monitor)
//	if err := srv.Start(); err != nil { ... }
//	defer srv.Stop(ctx)
package metric
