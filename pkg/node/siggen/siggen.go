// Package siggen implements the signal-generator reference Node of
// spec §4.7: wall-clock-ticked synthetic waveforms for topology tests
// and demos, with no external transport.
package siggen

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/govillas/villasd/pkg/node"
	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
	"golang.org/x/time/rate"
)

// Waveform selects the generated shape.
type Waveform int

const (
	Sine Waveform = iota
	Square
	Triangle
	Ramp
	Counter
	Random
	Mixed
)

func WaveformFromString(s string) (Waveform, error) {
	switch s {
	case "sine":
		return Sine, nil
	case "square":
		return Square, nil
	case "triangle":
		return Triangle, nil
	case "ramp":
		return Ramp, nil
	case "counter":
		return Counter, nil
	case "random":
		return Random, nil
	case "mixed":
		return Mixed, nil
	default:
		return 0, fmt.Errorf("siggen: unknown waveform %q", s)
	}
}

// Config is the Parse-level JSON configuration.
type Config struct {
	Signals    []string `json:"signals"`
	Waveform   string   `json:"signal_type"`
	Rate       float64  `json:"rate"`
	Frequency  float64  `json:"frequency"`
	Amplitude  float64  `json:"amplitude"`
	Offset     float64  `json:"offset"`
	StddevNorm float64  `json:"stddev"`
}

// Node generates samples of a configured waveform at a wall-clock rate
// limited by rate.Limiter, mirroring the "missed_steps on rate missed
// ticks" behavior of spec §4.7.
type Node struct {
	node.Base

	waveform Waveform
	freq     float64
	ampl     float64
	offset   float64
	stddev   float64
	hz       float64

	limiter *rate.Limiter
	counter float64
	seq     uint64
	start   time.Time

	missedSteps int64
	rng         *rand.Rand
}

func New(name string, vectorize int, sigs signal.List) *Node {
	n := &Node{
		waveform: Sine,
		freq:     1,
		ampl:     1,
		hz:       10,
		rng:      rand.New(rand.NewSource(1)),
	}
	n.Nam = name
	n.Vec = vectorize
	n.Flg = node.ProvidesSignals
	n.Sigs = sigs
	return n
}

func (n *Node) Parse(raw json.RawMessage) error {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}
	if cfg.Waveform != "" {
		wf, err := WaveformFromString(cfg.Waveform)
		if err != nil {
			return err
		}
		n.waveform = wf
	}
	if cfg.Rate > 0 {
		n.hz = cfg.Rate
	}
	if cfg.Frequency > 0 {
		n.freq = cfg.Frequency
	}
	if cfg.Amplitude > 0 {
		n.ampl = cfg.Amplitude
	}
	n.offset = cfg.Offset
	if cfg.StddevNorm > 0 {
		n.stddev = cfg.StddevNorm
	} else {
		n.stddev = 1
	}
	return nil
}

func (n *Node) Check() error {
	if n.hz <= 0 {
		return fmt.Errorf("siggen: rate must be > 0")
	}
	return nil
}

func (n *Node) Start() error {
	n.limiter = rate.NewLimiter(rate.Limit(n.hz), 1)
	n.start = time.Now()
	return nil
}

func (n *Node) Stop() error { return nil }

// Read blocks (via the rate limiter) until the next tick is due and
// produces one sample for it; with vectorize>1 it then adds further
// samples for ticks that are already due, without blocking again.
func (n *Node) Read(pool *sample.Pool, out []*sample.Sample) (int, int, error) {
	limit := len(out)
	if n.Vec > 0 && limit > n.Vec {
		limit = n.Vec
	}
	got := 0
	for got < limit {
		if got == 0 {
			if err := n.limiter.Wait(context.Background()); err != nil {
				break
			}
		} else if !n.limiter.Allow() {
			n.missedSteps++
			break
		}

		slot := make([]*sample.Sample, 1)
		if pool.Alloc(1, slot) == 0 {
			break
		}
		n.fill(slot[0])
		out[got] = slot[0]
		got++
	}
	return got, got, nil
}

func (n *Node) fill(s *sample.Sample) {
	t := time.Since(n.start).Seconds()
	var v float64
	switch n.waveform {
	case Sine:
		v = n.ampl*math.Sin(2*math.Pi*n.freq*t) + n.offset
	case Square:
		if math.Mod(t*n.freq, 1) < 0.5 {
			v = n.ampl + n.offset
		} else {
			v = -n.ampl + n.offset
		}
	case Triangle:
		phase := math.Mod(t*n.freq, 1)
		v = n.ampl*(2*math.Abs(2*phase-1)-1) + n.offset
	case Ramp:
		v = n.ampl*math.Mod(t*n.freq, 1) + n.offset
	case Counter:
		v = n.counter + n.offset
		n.counter++
	case Random:
		// Box-Muller transform for a standard-normal sample, scaled by
		// the configured stddev (spec §4.7: "random (normal, via
		// Box-Muller)").
		u1 := n.rng.Float64()
		u2 := n.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1+1e-300)) * math.Cos(2*math.Pi*u2)
		v = n.stddev*z + n.offset
	case Mixed:
		v = n.ampl*math.Sin(2*math.Pi*n.freq*t) + n.counter
		n.counter++
	}

	s.Sequence = n.seq
	n.seq++
	s.TsOrigin = time.Now()
	s.Flags = sample.HasSequence | sample.HasTsOrigin | sample.HasData
	s.Signals = n.Sigs
	count := len(n.Sigs)
	if count > s.Capacity {
		count = s.Capacity
	}
	if count == 0 {
		count = 1
		if s.Capacity < 1 {
			count = 0
		}
	}
	s.Length = count
	for i := 0; i < count; i++ {
		typ := signal.TypeFloat
		if i < len(n.Sigs) {
			typ = n.Sigs[i].Type
		}
		val, _ := signal.Cast(signal.TypeFloat, typ, signal.Float(v))
		s.Data[i] = val
	}
}

func (n *Node) Write([]*sample.Sample) (int, error) {
	return 0, fmt.Errorf("siggen: node is read-only")
}

func (n *Node) MissedSteps() int64 { return atomic.LoadInt64(&n.missedSteps) }
