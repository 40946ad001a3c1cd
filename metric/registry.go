package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/semstreams-fix/errors"
)

// MetricsRegistrar is how components outside this package publish their
// own collectors. Names are scoped by service, so two services may both
// own a "dropped_total".
type MetricsRegistrar interface {
	RegisterCounter(service, name string, c prometheus.Counter) error
	RegisterGauge(service, name string, g prometheus.Gauge) error
	RegisterCounterVec(service, name string, cv *prometheus.CounterVec) error
	RegisterGaugeVec(service, name string, gv *prometheus.GaugeVec) error
	RegisterHistogramVec(service, name string, hv *prometheus.HistogramVec) error
}

// MetricsRegistry owns the private Prometheus registry served on /metrics:
// the bridge metrics, the Go and process collectors, and whatever
// components add through MetricsRegistrar.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics

	mu    sync.Mutex
	owned map[string]struct{}
}

// NewMetricsRegistry creates a registry with the bridge metrics registered.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
		owned:              make(map[string]struct{}),
	}
	r.prometheusRegistry.MustRegister(r.Metrics.collectors()...)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying registry, for gathering.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry { return r.prometheusRegistry }

// CoreMetrics returns the bridge metrics.
func (r *MetricsRegistry) CoreMetrics() *Metrics { return r.Metrics }

// add registers c under service.name. A repeated service.name, or a
// collector Prometheus already knows under another key, is invalid.
func (r *MetricsRegistry) add(method, service, name string, c prometheus.Collector) error {
	key := service + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.owned[key]; dup {
		return errors.WrapInvalid(fmt.Errorf("metric %s already registered for service %s", name, service),
			"MetricsRegistry", method, "duplicate metric registration")
	}
	if err := r.prometheusRegistry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapInvalid(err, "MetricsRegistry", method, "prometheus conflict for metric "+name)
		}
		return errors.WrapFatal(err, "MetricsRegistry", method, "register with prometheus")
	}
	r.owned[key] = struct{}{}
	return nil
}

func (r *MetricsRegistry) RegisterCounter(service, name string, c prometheus.Counter) error {
	return r.add("RegisterCounter", service, name, c)
}

func (r *MetricsRegistry) RegisterGauge(service, name string, g prometheus.Gauge) error {
	return r.add("RegisterGauge", service, name, g)
}

func (r *MetricsRegistry) RegisterCounterVec(service, name string, cv *prometheus.CounterVec) error {
	return r.add("RegisterCounterVec", service, name, cv)
}

func (r *MetricsRegistry) RegisterGaugeVec(service, name string, gv *prometheus.GaugeVec) error {
	return r.add("RegisterGaugeVec", service, name, gv)
}

func (r *MetricsRegistry) RegisterHistogramVec(service, name string, hv *prometheus.HistogramVec) error {
	return r.add("RegisterHistogramVec", service, name, hv)
}
