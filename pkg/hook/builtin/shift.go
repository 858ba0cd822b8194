package builtin

import (
	"encoding/json"
	"time"

	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/sample"
)

// ShiftSeq adds a fixed offset to every sample's sequence number. Kept
// as its own hook type (not folded into ShiftTs) since the original
// exposes shift_seq and shift_ts as two independent hooks with
// independent configuration (spec §4.5 supplemented features).
type ShiftSeq struct {
	hook.Base
	offset int64
}

func NewShiftSeq(priority int, ctx hook.Context, offset int64) *ShiftSeq {
	s := &ShiftSeq{offset: offset}
	s.Pri = priority
	s.Ctx = ctx
	s.Nam = "shift_seq"
	return s
}

func (s *ShiftSeq) Parse(raw json.RawMessage) error {
	var cfg struct {
		Offset int64 `json:"offset"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}
	s.offset = cfg.Offset
	return nil
}

func (s *ShiftSeq) Process(smp *sample.Sample) (hook.Verdict, error) {
	if s.offset == 0 || !smp.Flags.Has(sample.HasSequence) {
		return hook.Ok, nil
	}
	smp.Sequence = uint64(int64(smp.Sequence) + s.offset)
	return hook.Ok, nil
}

// ShiftTs adds a fixed duration offset to both ts.origin and
// ts.received, when present.
type ShiftTs struct {
	hook.Base
	offset time.Duration
}

func NewShiftTs(priority int, ctx hook.Context, offset time.Duration) *ShiftTs {
	s := &ShiftTs{offset: offset}
	s.Pri = priority
	s.Ctx = ctx
	s.Nam = "shift_ts"
	return s
}

func (s *ShiftTs) Parse(raw json.RawMessage) error {
	var cfg struct {
		OffsetSeconds float64 `json:"offset"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}
	s.offset = time.Duration(cfg.OffsetSeconds * float64(time.Second))
	return nil
}

func (s *ShiftTs) Process(smp *sample.Sample) (hook.Verdict, error) {
	if s.offset == 0 {
		return hook.Ok, nil
	}
	if smp.Flags.Has(sample.HasTsOrigin) && !smp.TsOrigin.IsZero() {
		smp.TsOrigin = smp.TsOrigin.Add(s.offset)
	}
	if smp.Flags.Has(sample.HasTsReceived) && !smp.TsReceived.IsZero() {
		smp.TsReceived = smp.TsReceived.Add(s.offset)
	}
	return hook.Ok, nil
}
