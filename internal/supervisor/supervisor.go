// Package supervisor owns the node/path registries built from a config
// document and drives the start/stop lifecycle and periodic stats flush
// (spec §4.8), grounded on the teacher's internal/taskManager package:
// one gocron.Scheduler running a single recurring job per interval,
// started and shut down alongside the rest of the daemon.
package supervisor

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/govillas/villasd/internal/config"
	"github.com/govillas/villasd/internal/telemetry"
	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/hook/builtin"
	"github.com/govillas/villasd/pkg/node"
	"github.com/govillas/villasd/pkg/path"
	"github.com/govillas/villasd/pkg/sample"
)

const (
	defaultPathPoolCount = 16
	defaultDestQueueLen  = 64
)

// Supervisor owns every node and path built from one config Document,
// plus the scheduler driving their periodic work.
type Supervisor struct {
	nodes map[string]node.Node
	paths []*path.Path

	scheduler     gocron.Scheduler
	statsInterval time.Duration
	pathStats     []*telemetry.PathStats
	registerer    prometheus.Registerer
}

// New builds every node and path described by doc, wiring hooks and
// mappings, but does not start anything (spec §5: construction and
// start are distinct phases).
func New(doc *config.Document, registerer prometheus.Registerer) (*Supervisor, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	sv := &Supervisor{
		nodes:      make(map[string]node.Node, len(doc.Nodes)),
		registerer: registerer,
	}

	for name, spec := range doc.Nodes {
		n, err := newNode(name, spec)
		if err != nil {
			return nil, fmt.Errorf("supervisor: %w", err)
		}
		sv.nodes[name] = n
	}

	for _, pspec := range doc.Paths {
		p, err := sv.buildPath(pspec)
		if err != nil {
			return nil, fmt.Errorf("supervisor: %w", err)
		}
		sv.paths = append(sv.paths, p)
	}

	interval, err := doc.Stats()
	if err != nil {
		return nil, fmt.Errorf("supervisor: stats interval: %w", err)
	}
	sv.statsInterval = interval

	return sv, nil
}

func (sv *Supervisor) buildPath(spec config.PathSpec) (*path.Path, error) {
	var sources, destinations []node.Node
	for _, name := range spec.In {
		n, ok := sv.nodes[name]
		if !ok {
			return nil, fmt.Errorf("path %q: unknown source node %q", spec.Name, name)
		}
		sources = append(sources, n)
	}
	for _, name := range spec.Out {
		n, ok := sv.nodes[name]
		if !ok {
			return nil, fmt.Errorf("path %q: unknown destination node %q", spec.Name, name)
		}
		destinations = append(destinations, n)
	}

	m, err := buildMapping(spec, destinations)
	if err != nil {
		return nil, err
	}

	pathHooks, err := newHookList(spec.Hooks, hook.ContextPath)
	if err != nil {
		return nil, fmt.Errorf("path %q: hooks: %w", spec.Name, err)
	}

	mode := path.TriggerAny
	if spec.Mode == "all" {
		mode = path.TriggerAll
	}

	pool := sample.NewPool(defaultPathPoolCount, len(m.Signals()), sample.MemoryHeap)
	p := path.New(spec.Name, mode, spec.OriginalSequenceNo, pool, m, pathHooks)

	for _, n := range sources {
		vectorize := n.Vectorize()
		if vectorize <= 0 {
			vectorize = 1
		}
		srcPool := sample.NewPool(defaultPathPoolCount, len(n.Signals()), n.MemoryType())
		hooks := sourceHooks(n)
		p.AddSource(n, vectorize, srcPool, hooks)
	}
	for _, n := range destinations {
		vectorize := n.Vectorize()
		if vectorize <= 0 {
			vectorize = 1
		}
		hooks := destinationHooks(n)
		p.AddDestination(n, vectorize, defaultDestQueueLen, hooks)
	}

	for _, h := range pathHooks.Hooks() {
		if st, ok := h.(*builtin.Stats); ok {
			ps, err := telemetry.NewPathStats(sv.registerer, spec.Name, st)
			if err != nil {
				return nil, fmt.Errorf("path %q: telemetry: %w", spec.Name, err)
			}
			sv.pathStats = append(sv.pathStats, ps)
		}
	}

	return p, nil
}

// sourceHooks and destinationHooks read back the In/Out hook chains
// newNode attached to a concrete node via SetDirections, defaulting to
// an empty chain for node types that don't implement directioned.
func sourceHooks(n node.Node) *hook.List {
	if d, ok := n.(interface{ InHooks() *hook.List }); ok {
		return d.InHooks()
	}
	return hook.NewList()
}

func destinationHooks(n node.Node) *hook.List {
	if d, ok := n.(interface{ OutHooks() *hook.List }); ok {
		return d.OutHooks()
	}
	return hook.NewList()
}

// Start brings every path up (which starts its source/destination
// nodes in turn) then starts the periodic scheduler (spec §4.8, §5).
func (sv *Supervisor) Start() error {
	for _, p := range sv.paths {
		if err := p.Start(); err != nil {
			return fmt.Errorf("supervisor: starting path %q: %w", p.Name, err)
		}
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("supervisor: creating scheduler: %w", err)
	}
	sv.scheduler = s

	if _, err := s.NewJob(
		gocron.DurationJob(sv.statsInterval),
		gocron.NewTask(sv.runPeriodic),
	); err != nil {
		return fmt.Errorf("supervisor: scheduling periodic task: %w", err)
	}
	s.Start()
	return nil
}

// runPeriodic runs every path's HookList.Periodic (single-threaded per
// spec §4.5/§5) and refreshes the Prometheus gauges for every stats
// hook found along the way.
func (sv *Supervisor) runPeriodic() {
	for _, p := range sv.paths {
		p.Hooks.Periodic()
	}
	for _, ps := range sv.pathStats {
		ps.Refresh()
	}
}

// Stop stops the scheduler then every path, in reverse of Start order,
// with grace as the per-path shutdown timeout (spec §5).
func (sv *Supervisor) Stop(grace time.Duration) error {
	if sv.scheduler != nil {
		if err := sv.scheduler.Shutdown(); err != nil {
			return fmt.Errorf("supervisor: scheduler shutdown: %w", err)
		}
	}
	for _, p := range sv.paths {
		if err := p.Stop(grace); err != nil {
			return fmt.Errorf("supervisor: stopping path %q: %w", p.Name, err)
		}
	}
	return nil
}

// Paths returns the built paths, for inspection/testing.
func (sv *Supervisor) Paths() []*path.Path { return sv.paths }

// Node looks up a built node by name.
func (sv *Supervisor) Node(name string) (node.Node, bool) {
	n, ok := sv.nodes[name]
	return n, ok
}
