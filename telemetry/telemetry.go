package telemetry

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

const namespace = "ldifconv"

type Histogram interface {
	Observe(float64)
}

type Counter interface {
	Inc()
	Add(float64)
}

type Gauge interface {
	Set(float64)
}

// Vec types for labeled metrics
type CounterVec interface {
	With(labels ...string) Counter
}

type NoopStat struct{}

type noopCounterVec struct{}

func (n noopCounterVec) With(labels ...string) Counter { return NoopStat{} }

type prometheusCounterVec struct {
	vec *prometheus.CounterVec
}

func (p *prometheusCounterVec) With(labelValues ...string) Counter {
	return p.vec.WithLabelValues(labelValues...)
}

func (n NoopStat) Observe(float64) {
}

func (n NoopStat) Set(float64) {
}

func (n NoopStat) Inc() {
}

func (n NoopStat) Add(float64) {
}

// Registry owns the Prometheus registry of one run. A nil *Registry hands
// out no-op metrics.
type Registry struct {
	reg    *prometheus.Registry
	labels prometheus.Labels
}

// NewRegistry creates a registry whose metrics all carry the run_id label.
func NewRegistry(runID string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	return &Registry{
		reg:    reg,
		labels: prometheus.Labels{"run_id": runID},
	}
}

func (r *Registry) NewCounter(name string, help string) Counter {
	if r == nil {
		return NoopStat{}
	}

	ret := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	})

	r.reg.MustRegister(ret)
	return ret
}

func (r *Registry) NewGauge(name string, help string) Gauge {
	if r == nil {
		return NoopStat{}
	}

	ret := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	})

	r.reg.MustRegister(ret)
	return ret
}

func (r *Registry) NewHistogram(name, help string, buckets []float64) Histogram {
	if r == nil {
		return NoopStat{}
	}

	ret := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: r.labels,
	})

	r.reg.MustRegister(ret)
	return ret
}

func (r *Registry) NewCounterVec(name, help string, labels []string) CounterVec {
	if r == nil {
		return noopCounterVec{}
	}

	ret := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	}, labels)

	r.reg.MustRegister(ret)
	return &prometheusCounterVec{vec: ret}
}

// WriteText writes every metric in the text exposition format, the format
// read by the node exporter textfile collector.
func (r *Registry) WriteText(w io.Writer) error {
	if r == nil {
		return nil
	}

	families, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
