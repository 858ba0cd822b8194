package builtin

import (
	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/sample"
)

// sequenceWrapThreshold matches the original's detection window: a
// sequence that drops to exactly zero right after having been within 32
// of UINT32_MAX is a source restart, not reordering or wraparound.
const sequenceWrapThreshold = ^uint32(0) - 32

// Restart detects a source restart by watching for the sequence counter
// falling back to exactly zero after having been close to its maximum
// (spec §4.5 supplemented features). On a restart it counts it, clears
// its own last-sequence state and calls onReset if one was given; it
// does not reset other hooks' counters by itself.
type Restart struct {
	hook.Base

	haveLast bool
	lastSeq  uint64
	restarts int64
	onReset  func()
}

// NewRestart builds a Restart hook. onReset, if non-nil, is invoked
// synchronously (from Process, single-threaded per spec §5) whenever a
// restart is detected, so e.g. the Stats hook in the same chain can
// clear its accumulators.
func NewRestart(priority int, ctx hook.Context, onReset func()) *Restart {
	r := &Restart{onReset: onReset}
	r.Pri = priority
	r.Ctx = ctx
	r.Nam = "restart"
	return r
}

func (r *Restart) Process(smp *sample.Sample) (hook.Verdict, error) {
	if !smp.Flags.Has(sample.HasSequence) {
		return hook.Ok, nil
	}
	seq := smp.Sequence

	if r.haveLast && r.lastSeq >= uint64(sequenceWrapThreshold) && seq == 0 {
		r.restarts++
		r.haveLast = false
		if r.onReset != nil {
			r.onReset()
		}
	}

	r.lastSeq = seq
	r.haveLast = true
	return hook.Ok, nil
}

func (r *Restart) Restarts() int64 { return r.restarts }

func (r *Restart) Restart() error {
	r.haveLast = false
	r.lastSeq = 0
	return nil
}
