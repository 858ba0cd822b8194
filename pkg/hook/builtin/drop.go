package builtin

import (
	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/sample"
)

// Drop filters out-of-order and duplicate samples: it keeps the first
// sample it sees unconditionally, then only passes samples whose
// sequence strictly increases over the last one kept (spec §4.5).
type Drop struct {
	hook.Base

	haveLast bool
	lastSeq  uint64
	dropped  int64
}

func NewDrop(priority int, ctx hook.Context) *Drop {
	d := &Drop{}
	d.Pri = priority
	d.Ctx = ctx
	d.Nam = "drop"
	return d
}

func (d *Drop) Process(smp *sample.Sample) (hook.Verdict, error) {
	if !smp.Flags.Has(sample.HasSequence) {
		return hook.Ok, nil
	}
	if d.haveLast && smp.Sequence <= d.lastSeq {
		d.dropped++
		return hook.SkipSample, nil
	}
	d.lastSeq = smp.Sequence
	d.haveLast = true
	return hook.Ok, nil
}

func (d *Drop) Dropped() int64 { return d.dropped }

func (d *Drop) Restart() error {
	d.haveLast = false
	d.lastSeq = 0
	return nil
}
