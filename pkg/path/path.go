// Package path implements the fan-in/fan-out sample-routing engine of
// spec §4.6: per-path source and destination threads connected through
// a hook chain and mapping, driven by a trigger mode.
package path

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/mapping"
	"github.com/govillas/villasd/pkg/node"
	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/vlog"
)

// TriggerMode selects when a multi-source path composes and emits an
// output sample (spec §4.6, §8 property 7).
type TriggerMode int

const (
	// TriggerAny emits on every sample from any source, combined with
	// the latest cached value from every other source.
	TriggerAny TriggerMode = iota
	// TriggerAll emits exactly once per complete round of receipts
	// across every source (spec §8 property 7).
	TriggerAll
)

// State is the path's externally observable lifecycle state (spec §5).
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StatePaused
)

// Path fans samples from one or more source nodes through a shared
// hook list into one or more destination queues (spec §2, §4.6).
type Path struct {
	Name               string
	Mode               TriggerMode
	OriginalSequenceNo bool

	Sources      []*Source
	Destinations []*Destination
	Mapping      *mapping.List
	Hooks        *hook.List

	pathPool *sample.Pool

	mu     sync.Mutex
	latest map[string]*sample.Sample
	seen   map[string]bool

	outSeq uint64

	droppedErrors  int64
	resourceErrors int64

	stopCh chan struct{}
	wg     sync.WaitGroup
	state  atomic.Int32
}

// New builds a Path. pathPool supplies the composed path-local samples
// (capacity = len(mapping entries)); it is separate from any source or
// destination node's own pool.
func New(name string, mode TriggerMode, originalSeq bool, pathPool *sample.Pool, m *mapping.List, hooks *hook.List) *Path {
	return &Path{
		Name:               name,
		Mode:               mode,
		OriginalSequenceNo: originalSeq,
		Mapping:            m,
		Hooks:              hooks,
		pathPool:           pathPool,
		latest:             make(map[string]*sample.Sample),
		seen:               make(map[string]bool),
		stopCh:             make(chan struct{}),
	}
}

func (p *Path) AddSource(n node.Node, vectorize int, pool *sample.Pool, hooks *hook.List) *Source {
	s := &Source{Node: n, Vectorize: vectorize, Pool: pool, Hooks: hooks, path: p}
	p.Sources = append(p.Sources, s)
	return s
}

func (p *Path) AddDestination(n node.Node, vectorize, queueDepth int, hooks *hook.List) *Destination {
	d := newDestination(n, vectorize, queueDepth, hooks)
	p.Destinations = append(p.Destinations, d)
	return d
}

// Start brings nodes up in registry order then launches one goroutine
// per source and per destination (spec §5).
func (p *Path) Start() error {
	p.state.Store(int32(StateStarting))
	for _, d := range p.Destinations {
		if err := d.Node.Start(); err != nil {
			return err
		}
	}
	for _, s := range p.Sources {
		if err := s.Node.Start(); err != nil {
			return err
		}
	}
	if err := p.Hooks.Start(); err != nil {
		return err
	}

	p.state.Store(int32(StateRunning))
	for _, s := range p.Sources {
		p.wg.Add(1)
		go p.sourceLoop(s)
	}
	for _, d := range p.Destinations {
		p.wg.Add(1)
		go p.destinationLoop(d)
	}
	return nil
}

// Stop sets state to Stopping, closes every destination queue (waking
// blocked destination threads), signals source threads, and waits up
// to grace for every goroutine to exit.
func (p *Path) Stop(grace time.Duration) error {
	p.state.Store(int32(StateStopping))
	close(p.stopCh)
	for _, d := range p.Destinations {
		d.Queue.Close()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		vlog.Warnf("path %q: stop grace period elapsed, some threads left detached", p.Name)
	}

	for _, s := range p.Sources {
		_ = s.Node.Stop()
	}
	for _, d := range p.Destinations {
		_ = d.Node.Stop()
	}
	_ = p.Hooks.Stop()
	p.state.Store(int32(StateStopped))
	return nil
}

func (p *Path) State() State { return State(p.state.Load()) }

func (p *Path) ResourceErrors() int64 { return atomic.LoadInt64(&p.resourceErrors) }
func (p *Path) DroppedErrors() int64  { return atomic.LoadInt64(&p.droppedErrors) }

// nextSequence assigns the path's internal monotonic sequence, used
// when OriginalSequenceNo is false or the source sample has none.
func (p *Path) nextSequence() uint64 {
	return atomic.AddUint64(&p.outSeq, 1) - 1
}

func (p *Path) composeAndEmit(triggeringSource string, smp *sample.Sample) {
	p.mu.Lock()
	if old := p.latest[triggeringSource]; old != nil {
		old.Decref()
	}
	smp.Incref()
	p.latest[triggeringSource] = smp
	p.seen[triggeringSource] = true

	fire := p.Mode == TriggerAny
	if p.Mode == TriggerAll {
		fire = len(p.seen) == len(p.Sources)
		for _, s := range p.Sources {
			if !p.seen[s.Node.Name()] {
				fire = false
				break
			}
		}
	}

	var snapshot map[string]*sample.Sample
	if fire {
		snapshot = make(map[string]*sample.Sample, len(p.latest))
		for k, v := range p.latest {
			snapshot[k] = v
		}
		if p.Mode == TriggerAll {
			p.seen = make(map[string]bool)
		}
	}
	p.mu.Unlock()

	if !fire {
		return
	}
	p.emit(snapshot)
}

func (p *Path) emit(upstream map[string]*sample.Sample) {
	out := make([]*sample.Sample, 1)
	if p.pathPool.Alloc(1, out) == 0 {
		atomic.AddInt64(&p.resourceErrors, 1)
		return
	}
	dst := out[0]

	if err := p.Mapping.Apply(dst, upstream, nil); err != nil {
		vlog.Warnf("path %q: mapping error: %v", p.Name, err)
		dst.Decref()
		atomic.AddInt64(&p.droppedErrors, 1)
		return
	}

	if !p.OriginalSequenceNo || !dst.Flags.Has(sample.HasSequence) {
		dst.Sequence = p.nextSequence()
		dst.Flags |= sample.HasSequence
	}
	dst.TsReceived = time.Now()
	dst.Flags |= sample.HasTsReceived

	verdict, err := p.Hooks.Process(dst)
	if err != nil {
		vlog.Warnf("path %q: hook error: %v", p.Name, err)
		dst.Decref()
		atomic.AddInt64(&p.droppedErrors, 1)
		return
	}
	if verdict == hook.SkipSample {
		dst.Decref()
		return
	}

	for _, d := range p.Destinations {
		dst.Incref()
		ok, err := d.Queue.Push(dst)
		if err != nil || !ok {
			atomic.AddInt64(&d.enqueueOverrun, 1)
			dst.Decref()
		}
	}
	dst.Decref()
}
