// Package metrics provides the MetricsRegistry implementations: a
// prometheus-backed registry for production and an in-memory registry for
// tests and embedded use.
package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/gantryio/gantry/internal/core/ports"
)

const namespace = "gantry"

// PrometheusRegistry hands out prometheus instruments keyed by metric name.
// Each name is registered once; instruments with the same name must carry the
// same label keys.
type PrometheusRegistry struct {
	registerer prometheus.Registerer
	counters   *xsync.Map[string, *prometheus.CounterVec]
	gauges     *xsync.Map[string, *prometheus.GaugeVec]
}

func NewPrometheusRegistry(registerer prometheus.Registerer) *PrometheusRegistry {
	return &PrometheusRegistry{
		registerer: registerer,
		counters:   xsync.NewMap[string, *prometheus.CounterVec](),
		gauges:     xsync.NewMap[string, *prometheus.GaugeVec](),
	}
}

func (r *PrometheusRegistry) Counter(name string, labels map[string]string) ports.Counter {
	vec, _ := r.counters.LoadOrCompute(name, func() (*prometheus.CounterVec, bool) {
		v := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
		}, labelKeys(labels))
		r.registerer.MustRegister(v)
		return v, false
	})
	return vec.With(labels)
}

func (r *PrometheusRegistry) Gauge(name string, labels map[string]string) ports.Gauge {
	vec, _ := r.gauges.LoadOrCompute(name, func() (*prometheus.GaugeVec, bool) {
		v := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
		}, labelKeys(labels))
		r.registerer.MustRegister(v)
		return v, false
	})
	return vec.With(labels)
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func instrumentKey(name string, labels map[string]string) string {
	keys := labelKeys(labels)
	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}
