// Package metrics exposes chart counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pedigree"

type Metrics struct {
	registry       *prometheus.Registry
	chartsCreated  prometheus.Counter
	chartsUpdated  prometheus.Counter
	chartsRendered prometheus.Counter
	personsSaved   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chartsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charts_created_total",
			Help:      "Charts created.",
		}),
		chartsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charts_updated_total",
			Help:      "Charts edited by their owner.",
		}),
		chartsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charts_rendered_total",
			Help:      "Chart tables rendered for the view page.",
		}),
		personsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persons_saved_total",
			Help:      "Person records written by the tree builder.",
		}),
	}
	m.registry.MustRegister(
		m.chartsCreated,
		m.chartsUpdated,
		m.chartsRendered,
		m.personsSaved,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ChartCreated() {
	m.chartsCreated.Inc()
}

func (m *Metrics) ChartUpdated() {
	m.chartsUpdated.Inc()
}

func (m *Metrics) ChartRendered() {
	m.chartsRendered.Inc()
}

func (m *Metrics) PersonsSaved(n int) {
	m.personsSaved.Add(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
