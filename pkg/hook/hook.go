// Package hook implements the per-sample transform/filter/observer chain
// of spec §4.5.
package hook

import (
	"encoding/json"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

// Verdict is the outcome of Hook.Process on one sample.
type Verdict int

const (
	// Ok continues the HookList to the next hook.
	Ok Verdict = iota
	// SkipSample drops this sample and continues with the next one.
	SkipSample
	// StopProcessing delivers only the samples processed so far and
	// returns early from the batch.
	StopProcessing
	// Error aborts HookList.Process and propagates the error.
	Error
)

// Context is a bitmask of the chains a hook instance may run in. Hook
// state is single-thread per instance (spec §5): an instance belongs to
// exactly one of node-read, node-write, or path.
type Context uint8

const (
	ContextNodeRead Context = 1 << iota
	ContextNodeWrite
	ContextPath
	ContextAny = ContextNodeRead | ContextNodeWrite | ContextPath
)

// Hook is a polymorphic per-sample transform/filter/observer with
// priority and lifecycle (spec §4.5). Implementations should embed Base
// to get no-op defaults for lifecycle methods they don't need.
type Hook interface {
	// Parse validates and applies hook-specific configuration.
	Parse(cfg json.RawMessage) error
	// Check validates cross-field invariants after Parse.
	Check() error
	// Prepare is called with the signal list flowing into this hook and
	// returns the signal list flowing out of it.
	Prepare(in signal.List) (signal.List, error)
	Start() error
	Stop() error
	Restart() error
	// Periodic is invoked at the supervisor's stats interval, always
	// from a single thread and never concurrently with Process (spec
	// §4.5, §5).
	Periodic()
	Process(s *sample.Sample) (Verdict, error)

	Priority() int
	Context() Context
	Name() string
}

// Base provides no-op defaults for every Hook lifecycle method except
// Process, so built-ins only override what they need.
type Base struct {
	Pri int
	Ctx Context
	Nam string
}

func (b *Base) Parse(json.RawMessage) error                { return nil }
func (b *Base) Check() error                                { return nil }
func (b *Base) Prepare(in signal.List) (signal.List, error) { return in, nil }
func (b *Base) Start() error                                { return nil }
func (b *Base) Stop() error                                 { return nil }
func (b *Base) Restart() error                              { return nil }
func (b *Base) Periodic()                                   {}
func (b *Base) Priority() int                                { return b.Pri }
func (b *Base) Context() Context                             { return b.Ctx }
func (b *Base) Name() string                                 { return b.Nam }
