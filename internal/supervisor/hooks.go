package supervisor

import (
	"fmt"
	"io"
	"os"

	"github.com/govillas/villasd/internal/config"
	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/hook/builtin"
)

// printDefaultWriter is the print hook's destination absent an
// output_uri; supervisor wiring for an actual file/socket target is a
// later addition (spec §4.5 lists stdout as the default sink).
func printDefaultWriter() io.Writer { return os.Stdout }

// newHook constructs one builtin hook instance by type name (spec
// §4.5's fixed taxonomy: stats, restart, drop, decimate, shift_seq,
// shift_ts, print), Parse-ing and Check-ing it against spec.Params.
// Every Hook instance is single-owner (spec §5): callers must not share
// one across paths or node directions.
func newHook(spec config.HookSpec, ctx hook.Context) (hook.Hook, error) {
	var h hook.Hook

	switch spec.Type {
	case "stats":
		h = builtin.NewStats(spec.Priority, ctx)
	case "restart":
		h = builtin.NewRestart(spec.Priority, ctx, nil)
	case "drop":
		h = builtin.NewDrop(spec.Priority, ctx)
	case "decimate":
		h = builtin.NewDecimate(spec.Priority, ctx, 1)
	case "shift_seq":
		h = builtin.NewShiftSeq(spec.Priority, ctx, 0)
	case "shift_ts":
		h = builtin.NewShiftTs(spec.Priority, ctx, 0)
	case "print":
		h = builtin.NewPrint(spec.Priority, ctx, printDefaultWriter(), "", "", 0)
	default:
		return nil, fmt.Errorf("supervisor: unknown hook type %q", spec.Type)
	}

	if err := h.Parse(spec.Params); err != nil {
		return nil, fmt.Errorf("supervisor: hook %q: parse: %w", spec.Type, err)
	}
	if err := h.Check(); err != nil {
		return nil, fmt.Errorf("supervisor: hook %q: check: %w", spec.Type, err)
	}
	return h, nil
}

// newHookList builds a priority-ordered chain from a direction's or
// path's hook config list (spec §4.5). An empty specs slice yields an
// empty, harmless List.
func newHookList(specs []config.HookSpec, ctx hook.Context) (*hook.List, error) {
	hooks := make([]hook.Hook, 0, len(specs))
	for _, spec := range specs {
		h, err := newHook(spec, ctx)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, h)
	}
	return hook.NewList(hooks...), nil
}
