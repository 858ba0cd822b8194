// Package node implements the transport-agnostic endpoint abstraction
// of spec §4.7: a Node reads samples from, and/or writes samples to,
// an opaque transport into/out of a Pool-backed Sample stream.
package node

import (
	"encoding/json"

	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

// Flags is a bitmask of node capabilities.
type Flags uint8

const (
	// ProvidesSignals marks a node that generates its own signal list
	// (e.g. a signal generator) rather than deriving one from config or
	// an upstream format.
	ProvidesSignals Flags = 1 << iota
)

// Side labels which half of a node's asymmetric lifecycle a Direction
// describes.
type Side int

const (
	SideIn Side = iota
	SideOut
)

func (s Side) String() string {
	if s == SideOut {
		return "out"
	}
	return "in"
}

// Direction mirrors the original's node_direction: each node carries
// one In and one Out Direction, each with its own hook chain, enabled
// flag, builtin-hook flag, and vectorize limit, so `in.hooks`,
// `out.hooks`, `in.builtin`, `out.builtin` in the config schema attach
// to the right side (SPEC_FULL §4 supplement, grounded on
// original_source/lib/node_direction.cpp).
type Direction struct {
	Hooks     *hook.List
	Enabled   bool
	Builtin   bool
	Vectorize int
}

// Node is the polymorphic endpoint contract of spec §4.7.
type Node interface {
	Name() string

	Parse(cfg json.RawMessage) error
	Check() error
	// Prepare finalizes the node's signal list and allocates any
	// per-node pool, after Parse and Check.
	Prepare() error

	Start() error
	Stop() error
	Pause() error
	Resume() error

	// Read returns up to len(out) new samples pulled from pool.
	// release reports how many of the returned samples the caller may
	// safely recycle (a node that needs trailing state for resampling
	// may ask the caller to hold some back).
	Read(pool *sample.Pool, out []*sample.Sample) (n int, release int, err error)
	// Write accepts as many of in as it durably consumed, in order;
	// it never writes out of order and never partially-accepts from
	// the middle of the slice.
	Write(in []*sample.Sample) (accepted int, err error)

	// Reverse swaps this node's read and write directions, used by
	// loopback-style test topologies.
	Reverse() error

	// PollFDs returns descriptors the supervisor may multiplex on
	// instead of dedicating a thread to this node; nil if the node has
	// no such descriptor.
	PollFDs() []int
	// NetemFDs returns descriptors subject to injected network
	// emulation (packet loss/delay), a subset of PollFDs.
	NetemFDs() []int

	MemoryType() sample.MemoryType
	Print() string

	Vectorize() int
	Flags() Flags
	Signals() signal.List
}

// Base provides no-op defaults for the lifecycle methods most nodes
// don't need to override.
type Base struct {
	Nam   string
	Vec   int
	Flg   Flags
	Sigs  signal.List
	MType sample.MemoryType

	In  Direction
	Out Direction
}

// SetDirections attaches the resolved In/Out Direction (hook chains,
// builtin/vectorize settings) after construction; the supervisor calls
// this once per node before Parse, since node-type constructors take
// only their transport-specific arguments.
func (b *Base) SetDirections(in, out Direction) { b.In = in; b.Out = out }

// InHooks and OutHooks expose the hook chain attached to each side, so
// path construction can pull a node's declared in/out hooks without
// reaching into its concrete type.
func (b *Base) InHooks() *hook.List  { return b.In.Hooks }
func (b *Base) OutHooks() *hook.List { return b.Out.Hooks }

func (b *Base) Name() string                 { return b.Nam }
func (b *Base) Check() error                  { return nil }
func (b *Base) Prepare() error                { return nil }
func (b *Base) Pause() error                  { return nil }
func (b *Base) Resume() error                 { return nil }
func (b *Base) Reverse() error                { return nil }
func (b *Base) PollFDs() []int                { return nil }
func (b *Base) NetemFDs() []int               { return nil }
func (b *Base) MemoryType() sample.MemoryType { return b.MType }
func (b *Base) Print() string                 { return b.Nam }
func (b *Base) Vectorize() int                { return b.Vec }
func (b *Base) Flags() Flags                  { return b.Flg }
func (b *Base) Signals() signal.List          { return b.Sigs }
