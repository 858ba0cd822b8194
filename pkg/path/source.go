package path

import (
	"sync/atomic"
	"time"

	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/node"
	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/vlog"
)

// Source is a path's binding to one input node: its own pool, batching
// hint, and read-context hook chain (spec §4.6 source thread).
type Source struct {
	Node      node.Node
	Vectorize int
	Pool      *sample.Pool
	Hooks     *hook.List

	readErrors int64

	path *Path
}

func (s *Source) ReadErrors() int64 { return atomic.LoadInt64(&s.readErrors) }

// sourceLoop is the body of spec §4.6's source thread: read a batch,
// stamp sequence/ts.received, run read-side hooks, then hand each
// sample to the path for mapping/trigger evaluation. The thread's only
// suspension point is inside Node.Read (spec §5).
func (p *Path) sourceLoop(s *Source) {
	defer p.wg.Done()

	batchLen := s.Vectorize
	if batchLen <= 0 {
		batchLen = 1
	}
	batch := make([]*sample.Sample, batchLen)

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		n, _, err := s.Node.Read(s.Pool, batch)
		if err != nil {
			atomic.AddInt64(&s.readErrors, 1)
			vlog.Warnf("path %q source %q: read error: %v", p.Name, s.Node.Name(), err)
			continue
		}
		if n == 0 {
			continue
		}

		processed, err := s.Hooks.ProcessBatch(batch[:n])
		if err != nil {
			vlog.Warnf("path %q source %q: hook error: %v", p.Name, s.Node.Name(), err)
		}

		for _, smp := range processed {
			if !smp.Flags.Has(sample.HasTsReceived) {
				smp.TsReceived = time.Now()
				smp.Flags |= sample.HasTsReceived
			}
			p.composeAndEmit(s.Node.Name(), smp)
		}

		for i := 0; i < n; i++ {
			batch[i].Decref()
		}
	}
}
