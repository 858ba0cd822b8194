package builtin

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/sample"
)

// metric bundles a Welford accumulator with a histogram under one lock;
// Process and Periodic/telemetry reads both go through it.
type metric struct {
	mu   sync.Mutex
	w    Welford
	hist *Histogram
}

func newMetric(buckets int, low, high float64) *metric {
	return &metric{hist: NewHistogram(buckets, low, high)}
}

func (m *metric) update(x float64) {
	m.mu.Lock()
	m.w.Update(x)
	m.mu.Unlock()
	m.hist.Add(x)
}

// MetricSnapshot is a point-in-time read of one metric's moments, safe to
// hand to the telemetry exporter.
type MetricSnapshot struct {
	Count     int64
	Mean      float64
	Variance  float64
	Buckets   []int64
	Underflow int64
	Overflow  int64
}

func (m *metric) snapshot() MetricSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricSnapshot{
		Count:     m.w.Count(),
		Mean:      m.w.Mean(),
		Variance:  m.w.Variance(),
		Buckets:   m.hist.Counts(),
		Underflow: m.hist.Underflow(),
		Overflow:  m.hist.Overflow(),
	}
}

// StatsConfig is the Parse-level JSON configuration for the stats hook.
type StatsConfig struct {
	Buckets int     `json:"buckets"`
	Warmup  int     `json:"warmup"`
	Low     float64 `json:"low"`
	High    float64 `json:"high"`
}

// Stats computes owd, gap_received, gap_sample, reordered, and age
// moments and histograms over the path's sample stream (spec §4.5,
// §5). It is stateful per instance: attach once per path, not shared
// across paths. The first Warmup samples update sequence/timestamp
// tracking but are excluded from the exported moments, per the
// supplemented warmup behavior.
type Stats struct {
	hook.Base

	cfg StatsConfig

	owd         *metric
	gapReceived *metric
	gapSample   *metric
	reordered   *metric
	age         *metric

	seen         int64
	haveLast     bool
	lastSeq      uint64
	lastReceived time.Time
}

// NewStats constructs a Stats hook at the given priority, attachable to
// any context (spec: stats may run on node read, node write, or path).
func NewStats(priority int, ctx hook.Context) *Stats {
	s := &Stats{}
	s.Pri = priority
	s.Ctx = ctx
	s.Nam = "stats"
	s.cfg = StatsConfig{Buckets: 20, Warmup: 0, Low: 0, High: 1}
	s.initMetrics()
	return s
}

func (s *Stats) initMetrics() {
	s.owd = newMetric(s.cfg.Buckets, s.cfg.Low, s.cfg.High)
	s.gapReceived = newMetric(s.cfg.Buckets, s.cfg.Low, s.cfg.High)
	s.gapSample = newMetric(s.cfg.Buckets, 0, 1<<20)
	s.reordered = newMetric(1, 0, 2)
	s.age = newMetric(s.cfg.Buckets, s.cfg.Low, s.cfg.High)
}

func (s *Stats) Parse(raw json.RawMessage) error {
	cfg := StatsConfig{Buckets: 20, Warmup: 0, Low: 0, High: 1}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return err
		}
	}
	s.cfg = cfg
	s.initMetrics()
	return nil
}

func (s *Stats) Restart() error {
	s.seen = 0
	s.haveLast = false
	s.lastSeq = 0
	s.lastReceived = time.Time{}
	s.initMetrics()
	return nil
}

func (s *Stats) Process(smp *sample.Sample) (hook.Verdict, error) {
	s.seen++
	warmingUp := s.seen <= int64(s.cfg.Warmup)

	now := time.Now()
	if smp.Flags.Has(sample.HasTsOrigin) && !smp.TsOrigin.IsZero() {
		age := now.Sub(smp.TsOrigin).Seconds()
		if smp.Flags.Has(sample.HasTsReceived) && !smp.TsReceived.IsZero() {
			owd := smp.TsReceived.Sub(smp.TsOrigin).Seconds()
			if !warmingUp {
				s.owd.update(owd)
			}
		}
		if !warmingUp {
			s.age.update(age)
		}
	}

	if s.haveLast {
		if smp.Flags.Has(sample.HasTsReceived) && !smp.TsReceived.IsZero() && !s.lastReceived.IsZero() {
			gap := smp.TsReceived.Sub(s.lastReceived).Seconds()
			if !warmingUp {
				s.gapReceived.update(gap)
			}
		}
		if smp.Flags.Has(sample.HasSequence) {
			if smp.Sequence <= s.lastSeq {
				if !warmingUp {
					s.reordered.update(1)
				}
			} else if !warmingUp {
				s.gapSample.update(float64(smp.Sequence - s.lastSeq))
			}
		}
	}

	if smp.Flags.Has(sample.HasSequence) {
		s.lastSeq = smp.Sequence
	}
	if smp.Flags.Has(sample.HasTsReceived) {
		s.lastReceived = smp.TsReceived
	}
	s.haveLast = true

	return hook.Ok, nil
}

// Snapshot returns a point-in-time read of every tracked metric, keyed
// by the names the telemetry exporter uses.
func (s *Stats) Snapshot() map[string]MetricSnapshot {
	return map[string]MetricSnapshot{
		"owd":          s.owd.snapshot(),
		"gap_received": s.gapReceived.snapshot(),
		"gap_sample":   s.gapSample.snapshot(),
		"reordered":    s.reordered.snapshot(),
		"age":          s.age.snapshot(),
	}
}
