package path

import (
	"context"
	"sync/atomic"

	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/node"
	"github.com/govillas/villasd/pkg/queue"
	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/vlog"
)

// Destination is a path's binding to one output node: its bounded
// SignalledQueue, batching hint, write-context hook chain, and overrun
// counter (spec §4.6 destination thread).
type Destination struct {
	Node      node.Node
	Vectorize int
	Queue     *queue.SignalledQueue[*sample.Sample]
	Hooks     *hook.List

	enqueueOverrun int64
	writeOverrun   int64
}

func newDestination(n node.Node, vectorize, queueDepth int, hooks *hook.List) *Destination {
	return &Destination{
		Node:      n,
		Vectorize: vectorize,
		Queue:     queue.NewSignalled[*sample.Sample](queueDepth),
		Hooks:     hooks,
	}
}

func (d *Destination) EnqueueOverrun() int64 { return atomic.LoadInt64(&d.enqueueOverrun) }
func (d *Destination) WriteOverrun() int64   { return atomic.LoadInt64(&d.writeOverrun) }

// destinationLoop is the body of spec §4.6's destination thread: block
// on the queue's event, run write-side hooks, write to the node, and
// decref every sample in the batch regardless of how many the node
// durably accepted.
func (p *Path) destinationLoop(d *Destination) {
	defer p.wg.Done()

	batchLen := d.Vectorize
	if batchLen <= 0 {
		batchLen = 1
	}
	batch := make([]*sample.Sample, batchLen)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-p.stopCh
		cancel()
	}()

	for {
		n, err := d.Queue.PullBlocking(ctx, batch)
		if n == 0 {
			if err != nil {
				return // ErrClosed or ctx.Err(): path is stopping
			}
			continue
		}

		processed, err := d.Hooks.ProcessBatch(batch[:n])
		if err != nil {
			vlog.Warnf("path %q destination %q: hook error: %v", p.Name, d.Node.Name(), err)
		}

		if len(processed) > 0 {
			accepted, werr := d.Node.Write(processed)
			if werr != nil {
				vlog.Warnf("path %q destination %q: write error: %v", p.Name, d.Node.Name(), werr)
			}
			if accepted < len(processed) {
				atomic.AddInt64(&d.writeOverrun, int64(len(processed)-accepted))
			}
		}

		for i := 0; i < n; i++ {
			batch[i].Decref()
		}
	}
}
