package prometheus

import (
	"net/http"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter is a [prometheus.Collector] over engine snapshots.
//
// Each scrape takes one snapshot, so counters in a single response are
// mutually consistent.
type PrometheusExporter struct {
	source     internaldefs.Source
	counters   []boundDesc[goIdentity.MetricID]
	histograms []boundDesc[goIdentity.MetricID]
	state      []boundDesc[internaldefs.StateDef]
}

type boundDesc[K any] struct {
	key  K
	desc *prometheus.Desc
}

var _ prometheus.Collector = (*PrometheusExporter)(nil)

// NewPrometheusExporter creates an exporter that reads from engine.
func NewPrometheusExporter(engine *goIdentity.Engine) *PrometheusExporter {
	return NewPrometheusExporterFromSource(engine)
}

// NewPrometheusExporterFromSource creates an exporter over any snapshot source.
func NewPrometheusExporterFromSource(source internaldefs.Source) *PrometheusExporter {
	p := &PrometheusExporter{
		source:     source,
		counters:   make([]boundDesc[goIdentity.MetricID], 0, len(internaldefs.CounterDefs)),
		histograms: make([]boundDesc[goIdentity.MetricID], 0, len(internaldefs.HistogramDefs)),
		state:      make([]boundDesc[internaldefs.StateDef], 0, len(internaldefs.StateDefs)),
	}
	for _, def := range internaldefs.CounterDefs {
		p.counters = append(p.counters, boundDesc[goIdentity.MetricID]{
			key:  def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		p.histograms = append(p.histograms, boundDesc[goIdentity.MetricID]{
			key:  def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	for _, def := range internaldefs.StateDefs {
		p.state = append(p.state, boundDesc[internaldefs.StateDef]{
			key:  def,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return p
}

// Describe implements [prometheus.Collector].
func (p *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range p.counters {
		ch <- c.desc
	}
	for _, h := range p.histograms {
		ch <- h.desc
	}
	for _, s := range p.state {
		ch <- s.desc
	}
}

// Collect implements [prometheus.Collector].
func (p *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	if p == nil || p.source == nil {
		return
	}

	snapshot := p.source.MetricsSnapshot()
	for _, c := range p.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(snapshot.Counters[c.key]))
	}

	for _, h := range p.histograms {
		raw, ok := snapshot.Histograms[h.key]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, le := range internaldefs.HistogramUpperBounds {
			buckets[le] = cumulative[i]
		}
		// Sum is not tracked by the engine.
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	state := internaldefs.ReadState(p.source)
	for _, s := range p.state {
		valueType := prometheus.CounterValue
		if s.key.Kind == internaldefs.StateGauge {
			valueType = prometheus.GaugeValue
		}
		ch <- prometheus.MustNewConstMetric(s.desc, valueType, float64(s.key.Value(state)))
	}
}

// Registry returns a private registry holding only this exporter.
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(p)
	return reg
}

// Handler serves the exporter's metrics in the Prometheus exposition format.
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry(), promhttp.HandlerOpts{})
}
