package hook

import (
	"sort"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

// List is an ordered chain of hooks, preparation-sorted by descending
// priority (ties broken by insertion order), per spec §4.5.
type List struct {
	hooks  []Hook
	output signal.List
}

// NewList returns a List containing hooks sorted by descending priority;
// equal-priority hooks keep their relative input order (stable sort).
func NewList(hooks ...Hook) *List {
	l := &List{hooks: append([]Hook(nil), hooks...)}
	l.sort()
	return l
}

func (l *List) sort() {
	sort.SliceStable(l.hooks, func(i, j int) bool {
		return l.hooks[i].Priority() > l.hooks[j].Priority()
	})
}

// InsertBuiltins prepends the builtin hooks (already constructed and
// context-filtered by the caller) ahead of user hooks, then re-sorts by
// priority — matching spec §4.5: "Built-in hooks ... are auto-inserted
// ahead of user hooks when builtin=true, subject to a context mask."
func (l *List) InsertBuiltins(ctx Context, builtins ...Hook) {
	var selected []Hook
	for _, h := range builtins {
		if h.Context()&ctx != 0 {
			selected = append(selected, h)
		}
	}
	l.hooks = append(selected, l.hooks...)
	l.sort()
}

// Hooks returns the ordered hook chain (read-only use: stats export,
// tests).
func (l *List) Hooks() []Hook { return l.hooks }

// Prepare threads a signal list through every hook: the first hook
// receives in, each subsequent hook's Prepare receives the previous
// hook's output. The final signal list is the List's own output.
func (l *List) Prepare(in signal.List) (signal.List, error) {
	cur := in
	for _, h := range l.hooks {
		out, err := h.Prepare(cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	l.output = cur
	return cur, nil
}

func (l *List) Output() signal.List { return l.output }

func (l *List) Start() error {
	for _, h := range l.hooks {
		if err := h.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (l *List) Stop() error {
	for _, h := range l.hooks {
		if err := h.Stop(); err != nil {
			return err
		}
	}
	return nil
}

// Periodic runs every hook's Periodic in order; the supervisor must call
// this from a single thread (spec §4.5, §5).
func (l *List) Periodic() {
	for _, h := range l.hooks {
		h.Periodic()
	}
}

// Process runs the chain over one sample with the short-circuits of spec
// §4.5: Ok continues, SkipSample drops the sample (caller stops this
// sample, not the batch), StopProcessing tells the caller to stop the
// whole batch after this sample, Error propagates.
func (l *List) Process(s *sample.Sample) (Verdict, error) {
	for _, h := range l.hooks {
		v, err := h.Process(s)
		if err != nil {
			return Error, err
		}
		switch v {
		case Ok:
			continue
		case SkipSample, StopProcessing:
			return v, nil
		default:
			return Error, nil
		}
	}
	return Ok, nil
}

// ProcessBatch runs Process over every sample in smps, returning the
// prefix that survived (spec §4.6 step 5: "On StopProcessing within the
// batch, emit only the prefix"). Samples that hit SkipSample are
// excluded from the result but do not stop the batch.
func (l *List) ProcessBatch(smps []*sample.Sample) ([]*sample.Sample, error) {
	out := make([]*sample.Sample, 0, len(smps))
	for _, s := range smps {
		v, err := l.Process(s)
		if err != nil {
			return out, err
		}
		switch v {
		case Ok:
			out = append(out, s)
		case SkipSample:
			continue
		case StopProcessing:
			out = append(out, s)
			return out, nil
		}
	}
	return out, nil
}
