package supervisor

import (
	"fmt"

	"github.com/govillas/villasd/internal/config"
	"github.com/govillas/villasd/pkg/mapping"
	"github.com/govillas/villasd/pkg/node"
	"github.com/govillas/villasd/pkg/signal"
)

// buildMapping parses a path's declarative selector list into a
// mapping.List (spec §4.4). Each selector's destination signal is
// taken positionally from the first destination node's declared
// signal list, falling back to an untyped float slot when the
// destination doesn't declare enough signals (e.g. a bare loopback
// used only for test topologies).
func buildMapping(spec config.PathSpec, destinations []node.Node) (*mapping.List, error) {
	var destSigs signal.List
	if len(destinations) > 0 {
		destSigs = destinations[0].Signals()
	}

	entries := make([]*mapping.Entry, 0, len(spec.Mapping))
	for i, sel := range spec.Mapping {
		var target *signal.Signal
		if i < len(destSigs) {
			target = destSigs[i]
		} else {
			target = signal.New(fmt.Sprintf("sig%d", i), "", signal.TypeFloat, signal.Float(0))
		}
		e, err := mapping.Parse(sel, target)
		if err != nil {
			return nil, fmt.Errorf("path %q: mapping[%d] %q: %w", spec.Name, i, sel, err)
		}
		entries = append(entries, e)
	}
	return mapping.NewList(entries...), nil
}
