package supervisor

import (
	"fmt"

	"github.com/govillas/villasd/internal/config"
	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/node"
	"github.com/govillas/villasd/pkg/node/loopback"
	natsnode "github.com/govillas/villasd/pkg/node/nats"
	"github.com/govillas/villasd/pkg/node/siggen"
	"github.com/govillas/villasd/pkg/signal"
)

// directioned is satisfied by every node.Node via its embedded
// node.Base; used to attach per-side Direction state after
// construction.
type directioned interface {
	SetDirections(in, out node.Direction)
}

const defaultQueueLen = 128

// signalsFromSpecs turns a direction's declared signal config into a
// signal.List, resolving each signal's Init value against its own type
// (spec §4.4's Init-value fallback, mapping.Entry.fallback's source).
func signalsFromSpecs(specs []config.SignalSpec) (signal.List, error) {
	out := make(signal.List, 0, len(specs))
	for _, s := range specs {
		t, err := signal.TypeFromString(s.Type)
		if err != nil {
			return nil, fmt.Errorf("signal %q: %w", s.Name, err)
		}
		var init signal.Value
		if len(s.Init) > 0 {
			init, err = signal.ParseJSON(t, s.Init)
			if err != nil {
				return nil, fmt.Errorf("signal %q: init: %w", s.Name, err)
			}
		}
		out = append(out, signal.New(s.Name, s.Unit, t, init))
	}
	return out, nil
}

// newNode constructs a registered node type by name (spec §4.7's
// pluggable node types; this port registers the three reference
// implementations built out in pkg/node/*). Additional transports slot
// in here the same way, grounded on the teacher's per-type constructor
// + Parse/Check/Prepare lifecycle.
func newNode(name string, spec config.NodeSpec) (node.Node, error) {
	outSigs, err := signalsFromSpecs(spec.Out.Signals)
	if err != nil {
		return nil, fmt.Errorf("node %q: out: %w", name, err)
	}
	inSigs, err := signalsFromSpecs(spec.In.Signals)
	if err != nil {
		return nil, fmt.Errorf("node %q: in: %w", name, err)
	}

	var n node.Node
	switch spec.Type {
	case "loopback":
		vectorize := spec.In.Vectorize
		if vectorize <= 0 {
			vectorize = 1
		}
		n = loopback.New(name, defaultQueueLen, defaultQueueLen*vectorize, inSigs)
	case "siggen":
		vectorize := spec.Out.Vectorize
		if vectorize <= 0 {
			vectorize = 1
		}
		n = siggen.New(name, vectorize, outSigs)
	case "nats":
		sigs := outSigs
		if len(sigs) == 0 {
			sigs = inSigs
		}
		vectorize := spec.Out.Vectorize
		if vectorize <= 0 {
			vectorize = 1
		}
		n = natsnode.New(name, vectorize, sigs)
	default:
		return nil, fmt.Errorf("node %q: unknown type %q", name, spec.Type)
	}

	inHooks, err := newHookList(spec.In.Hooks, hook.ContextNodeRead)
	if err != nil {
		return nil, fmt.Errorf("node %q: in hooks: %w", name, err)
	}
	outHooks, err := newHookList(spec.Out.Hooks, hook.ContextNodeWrite)
	if err != nil {
		return nil, fmt.Errorf("node %q: out hooks: %w", name, err)
	}
	if d, ok := n.(directioned); ok {
		d.SetDirections(
			node.Direction{Hooks: inHooks, Enabled: true, Builtin: spec.In.Builtin, Vectorize: spec.In.Vectorize},
			node.Direction{Hooks: outHooks, Enabled: true, Builtin: spec.Out.Builtin, Vectorize: spec.Out.Vectorize},
		)
	}

	if err := n.Parse(spec.Params); err != nil {
		return nil, fmt.Errorf("node %q: parse: %w", name, err)
	}
	if err := n.Check(); err != nil {
		return nil, fmt.Errorf("node %q: check: %w", name, err)
	}
	if err := n.Prepare(); err != nil {
		return nil, fmt.Errorf("node %q: prepare: %w", name, err)
	}
	return n, nil
}
