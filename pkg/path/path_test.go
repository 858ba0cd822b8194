package path

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/mapping"
	"github.com/govillas/villasd/pkg/node"
	"github.com/govillas/villasd/pkg/node/loopback"
	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

// stalledNode is a destination-only test double whose Write sleeps
// before accepting, modeling spec §8 scenario 6's "destination stalled
// for 100 ms".
type stalledNode struct {
	node.Base
	delay time.Duration
}

func (s *stalledNode) Parse(json.RawMessage) error { return nil }
func (s *stalledNode) Start() error                { return nil }
func (s *stalledNode) Stop() error                 { return nil }
func (s *stalledNode) Read(*sample.Pool, []*sample.Sample) (int, int, error) {
	select {}
}
func (s *stalledNode) Write(in []*sample.Sample) (int, error) {
	time.Sleep(s.delay)
	return len(in), nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestPathAnyModeEchoesThroughLoopback(t *testing.T) {
	srcSigs := signal.List{signal.New("v1", "", signal.TypeFloat, signal.Value{})}
	src := loopback.New("src", 8, 2, srcSigs)

	target := signal.New("v1", "", signal.TypeFloat, signal.Value{})
	entry, err := mapping.Parse("src.data[0]", target)
	if err != nil {
		t.Fatalf("mapping.Parse: %v", err)
	}
	m := mapping.NewList(entry)

	dstSigs := signal.List{target}
	dst := loopback.New("dst", 8, 2, dstSigs)

	pathPool := sample.NewPool(8, 1, sample.MemoryHeap)
	p := New("echo", TriggerAny, false, pathPool, m, hook.NewList())
	srcPool := sample.NewPool(8, 2, sample.MemoryHeap)
	p.AddSource(src, 1, srcPool, hook.NewList())
	p.AddDestination(dst, 1, 4, hook.NewList())

	if err := p.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer p.Stop(time.Second)

	in := make([]*sample.Sample, 1)
	srcPool.Alloc(1, in)
	in[0].Flags = sample.HasData
	in[0].Signals = srcSigs
	in[0].Length = 1
	in[0].Data[0] = signal.Float(7.5)
	if _, err := src.Write(in); err != nil {
		t.Fatalf("src.Write: %v", err)
	}
	in[0].Decref()

	dstCallerPool := sample.NewPool(4, 1, sample.MemoryHeap)
	var out []*sample.Sample
	waitFor(t, time.Second, func() bool {
		o := make([]*sample.Sample, 1)
		n, _, err := dst.Read(dstCallerPool, o)
		if err != nil || n == 0 {
			return false
		}
		out = o
		return true
	})
	if out[0].Data[0].F != 7.5 {
		t.Fatalf("Data[0]=%v want 7.5", out[0].Data[0])
	}
	out[0].Decref()
}

func TestPathAllModeFiresOnceOnCompleteRound(t *testing.T) {
	sigsA := signal.List{signal.New("a", "", signal.TypeFloat, signal.Value{})}
	sigsB := signal.List{signal.New("b", "", signal.TypeFloat, signal.Value{})}
	srcA := loopback.New("A", 8, 2, sigsA)
	srcB := loopback.New("B", 8, 2, sigsB)

	tA := signal.New("a", "", signal.TypeFloat, signal.Value{})
	tB := signal.New("b", "", signal.TypeFloat, signal.Value{})
	eA, _ := mapping.Parse("A.data[0]", tA)
	eB, _ := mapping.Parse("B.data[0]", tB)
	m := mapping.NewList(eA, eB)

	dstSigs := signal.List{tA, tB}
	dst := loopback.New("dst", 8, 2, dstSigs)

	pathPool := sample.NewPool(8, 2, sample.MemoryHeap)
	p := New("fanin", TriggerAll, false, pathPool, m, hook.NewList())
	poolA := sample.NewPool(8, 2, sample.MemoryHeap)
	poolB := sample.NewPool(8, 2, sample.MemoryHeap)
	p.AddSource(srcA, 1, poolA, hook.NewList())
	p.AddSource(srcB, 1, poolB, hook.NewList())
	p.AddDestination(dst, 1, 4, hook.NewList())

	if err := p.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer p.Stop(time.Second)

	sendTo := func(n *loopback.Node, pool *sample.Pool, sigs signal.List, seq uint64, v float64) {
		in := make([]*sample.Sample, 1)
		pool.Alloc(1, in)
		in[0].Sequence = seq
		in[0].Flags = sample.HasSequence | sample.HasData
		in[0].Signals = sigs
		in[0].Length = 1
		in[0].Data[0] = signal.Float(v)
		n.Write(in)
		in[0].Decref()
	}

	sendTo(srcA, poolA, sigsA, 1, 10)
	sendTo(srcA, poolA, sigsA, 2, 11)
	time.Sleep(20 * time.Millisecond)
	sendTo(srcB, poolB, sigsB, 1, 20)

	dstCallerPool := sample.NewPool(4, 2, sample.MemoryHeap)
	var out []*sample.Sample
	waitFor(t, time.Second, func() bool {
		o := make([]*sample.Sample, 1)
		n, _, err := dst.Read(dstCallerPool, o)
		if err != nil || n == 0 {
			return false
		}
		out = o
		return true
	})
	if out[0].Data[0].F != 11 || out[0].Data[1].F != 20 {
		t.Fatalf("ALL-mode output = [%v,%v] want [11,20]", out[0].Data[0].F, out[0].Data[1].F)
	}
	out[0].Decref()
}

func TestPathBackpressureCountsOverrunsWithoutCrashing(t *testing.T) {
	srcSigs := signal.List{signal.New("v1", "", signal.TypeFloat, signal.Value{})}
	src := loopback.New("src", 32, 2, srcSigs)

	target := signal.New("v1", "", signal.TypeFloat, signal.Value{})
	entry, _ := mapping.Parse("src.data[0]", target)
	m := mapping.NewList(entry)

	dst := &stalledNode{delay: 100 * time.Millisecond}
	dst.Nam = "dst"

	pathPool := sample.NewPool(32, 1, sample.MemoryHeap)
	p := New("bp", TriggerAny, false, pathPool, m, hook.NewList())
	srcPool := sample.NewPool(32, 2, sample.MemoryHeap)
	p.AddSource(src, 1, srcPool, hook.NewList())
	d := p.AddDestination(dst, 1, 4, hook.NewList())

	if err := p.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer p.Stop(time.Second)

	for i := 0; i < 10; i++ {
		in := make([]*sample.Sample, 1)
		srcPool.Alloc(1, in)
		in[0].Flags = sample.HasData
		in[0].Signals = srcSigs
		in[0].Length = 1
		in[0].Data[0] = signal.Float(float64(i))
		src.Write(in)
		in[0].Decref()
	}

	waitFor(t, time.Second, func() bool { return d.EnqueueOverrun() > 0 })
	if d.EnqueueOverrun() == 0 {
		t.Fatal("expected at least one enqueue overrun under sustained load on a depth-4 queue")
	}
}
