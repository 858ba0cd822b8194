// Package telemetry exposes the stats hook's Welford moments and
// histograms as Prometheus metrics (SPEC_FULL §2 domain stack); the
// core only registers them, the optional external API serves /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/govillas/villasd/pkg/hook/builtin"
)

// MetricNames are the five metrics the stats hook tracks (spec §4.5).
var MetricNames = []string{"owd", "gap_received", "gap_sample", "reordered", "age"}

// PathStats registers and periodically refreshes gauges for one path's
// Stats hook snapshot, labeled by path name and metric.
type PathStats struct {
	pathName string
	stats    *builtin.Stats

	mean      *prometheus.GaugeVec
	variance  *prometheus.GaugeVec
	count     *prometheus.GaugeVec
	underflow *prometheus.GaugeVec
	overflow  *prometheus.GaugeVec
}

// NewPathStats builds and registers the gauge vectors against reg. reg
// is typically prometheus.DefaultRegisterer, injected so tests can use
// an isolated registry.
func NewPathStats(reg prometheus.Registerer, pathName string, stats *builtin.Stats) (*PathStats, error) {
	p := &PathStats{
		pathName: pathName,
		stats:    stats,
		mean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "villasd", Subsystem: "path", Name: "metric_mean",
			Help: "Welford-online mean of a path stats metric.",
		}, []string{"path", "metric"}),
		variance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "villasd", Subsystem: "path", Name: "metric_variance",
			Help: "Welford-online variance of a path stats metric.",
		}, []string{"path", "metric"}),
		count: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "villasd", Subsystem: "path", Name: "metric_count",
			Help: "Sample count contributing to a path stats metric (post-warmup).",
		}, []string{"path", "metric"}),
		underflow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "villasd", Subsystem: "path", Name: "metric_histogram_underflow",
			Help: "Count of values below a path stats metric's histogram range.",
		}, []string{"path", "metric"}),
		overflow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "villasd", Subsystem: "path", Name: "metric_histogram_overflow",
			Help: "Count of values above a path stats metric's histogram range.",
		}, []string{"path", "metric"}),
	}

	for _, c := range []prometheus.Collector{p.mean, p.variance, p.count, p.underflow, p.overflow} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Refresh reads the stats hook's current snapshot into the gauges.
// Called from the supervisor's periodic task, the same cadence as
// HookList.Periodic (spec §4.5, §4.8).
func (p *PathStats) Refresh() {
	snap := p.stats.Snapshot()
	for _, name := range MetricNames {
		m, ok := snap[name]
		if !ok {
			continue
		}
		labels := prometheus.Labels{"path": p.pathName, "metric": name}
		p.mean.With(labels).Set(m.Mean)
		p.variance.With(labels).Set(m.Variance)
		p.count.With(labels).Set(float64(m.Count))
		p.underflow.With(labels).Set(float64(m.Underflow))
		p.overflow.With(labels).Set(float64(m.Overflow))
	}
}
