package builtin

import (
	"encoding/json"
	"fmt"

	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/sample"
)

// Decimate passes every Nth sample and skips the rest (spec §4.5:
// "decimate(ratio)"). ratio is the keep-1-in-N factor; ratio<=1 is a
// no-op pass-through.
type Decimate struct {
	hook.Base

	ratio   int64
	counter int64
}

func NewDecimate(priority int, ctx hook.Context, ratio int64) *Decimate {
	d := &Decimate{ratio: ratio}
	d.Pri = priority
	d.Ctx = ctx
	d.Nam = "decimate"
	return d
}

func (d *Decimate) Parse(raw json.RawMessage) error {
	var cfg struct {
		Ratio int64 `json:"ratio"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}
	d.ratio = cfg.Ratio
	return nil
}

func (d *Decimate) Check() error {
	if d.ratio < 1 {
		return fmt.Errorf("decimate: ratio must be >= 1, got %d", d.ratio)
	}
	return nil
}

func (d *Decimate) Process(smp *sample.Sample) (hook.Verdict, error) {
	if d.ratio <= 1 {
		return hook.Ok, nil
	}
	keep := d.counter%d.ratio == 0
	d.counter++
	if keep {
		return hook.Ok, nil
	}
	return hook.SkipSample, nil
}

func (d *Decimate) Restart() error {
	d.counter = 0
	return nil
}
