// Package loopback implements the minimal reference Node of spec §4.7:
// a private pool plus a SignalledQueue, demonstrating the node contract
// with no external transport.
package loopback

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/govillas/villasd/pkg/node"
	"github.com/govillas/villasd/pkg/queue"
	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

// Node is a loopback endpoint: whatever is written to it can be read
// back out, FIFO, through its own private pool and SignalledQueue.
type Node struct {
	node.Base

	queuelen int
	private  *sample.Pool
	q        *queue.SignalledQueue[*sample.Sample]

	writeOverruns int64
}

// New builds a loopback node with a private pool/queue of depth
// queuelen, each slot able to hold capacity values described by sigs.
func New(name string, queuelen, capacity int, sigs signal.List) *Node {
	n := &Node{queuelen: queuelen}
	n.Nam = name
	n.Vec = queuelen
	n.Sigs = sigs
	n.private = sample.NewPool(queuelen, capacity, sample.MemoryHeap)
	n.q = queue.NewSignalled[*sample.Sample](queuelen)
	return n
}

func (n *Node) Parse(json.RawMessage) error { return nil }

func (n *Node) Start() error { return nil }

func (n *Node) Stop() error {
	n.q.Close()
	return nil
}

// Write copies each incoming sample into the private pool and
// enqueues it; a full queue drops the remainder and counts an overrun
// (spec §4.6 step 7's destination-side counter, mirrored here since
// Loopback plays both roles).
func (n *Node) Write(in []*sample.Sample) (int, error) {
	accepted := 0
	for _, s := range in {
		slot := make([]*sample.Sample, 1)
		if got := n.private.Alloc(1, slot); got == 0 {
			break
		}
		sample.CopyShallow(slot[0], s)
		ok, err := n.q.Push(slot[0])
		if err != nil {
			slot[0].Decref()
			return accepted, err
		}
		if !ok {
			atomic.AddInt64(&n.writeOverruns, 1)
			slot[0].Decref()
			break
		}
		accepted++
	}
	return accepted, nil
}

// Read dequeues into the caller's pool, copying out of the private
// pool and releasing the private slot. The first pull blocks on the
// SignalledQueue's wakeup so a source thread reading an idle loopback
// suspends instead of busy-spinning (spec §5's sole source-thread
// suspension point); once at least one sample is available, further
// slots in this call are drained without blocking again.
func (n *Node) Read(pool *sample.Pool, out []*sample.Sample) (int, int, error) {
	if len(out) == 0 {
		return 0, 0, nil
	}

	got := 0
	priv := make([]*sample.Sample, 1)
	m, err := n.q.PullBlocking(context.Background(), priv)
	if err != nil {
		return 0, 0, err
	}
	if m > 0 {
		if !n.copyOut(pool, priv[0], out, &got) {
			return got, got, nil
		}
	}

	for got < len(out) {
		one, ok, err := n.q.Pull()
		if err != nil {
			return got, got, err
		}
		if !ok {
			break
		}
		if !n.copyOut(pool, one, out, &got) {
			break
		}
	}
	return got, got, nil
}

// copyOut allocates a slot from pool, copies priv into it, releases
// priv back to the private pool, and appends it to out at *got. It
// returns false if pool is exhausted, in which case priv has already
// been released and the caller should stop reading.
func (n *Node) copyOut(pool *sample.Pool, priv *sample.Sample, out []*sample.Sample, got *int) bool {
	dst := make([]*sample.Sample, 1)
	if pool.Alloc(1, dst) == 0 {
		priv.Decref()
		return false
	}
	sample.CopyShallow(dst[0], priv)
	priv.Decref()
	out[*got] = dst[0]
	*got++
	return true
}

func (n *Node) WriteOverruns() int64 { return atomic.LoadInt64(&n.writeOverruns) }
