package loopback

import (
	"testing"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

func TestLoopbackWriteThenRead(t *testing.T) {
	sigs := signal.List{signal.New("v1", "", signal.TypeFloat, signal.Value{})}
	n := New("loop0", 4, 2, sigs)

	pool := sample.NewPool(4, 2, sample.MemoryHeap)
	in := make([]*sample.Sample, 1)
	pool.Alloc(1, in)
	in[0].Sequence = 42
	in[0].Flags = sample.HasSequence | sample.HasData
	in[0].Signals = sigs
	in[0].Length = 1
	in[0].Data[0] = signal.Float(3.5)

	accepted, err := n.Write(in)
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if accepted != 1 {
		t.Fatalf("accepted=%d want 1", accepted)
	}
	in[0].Decref()

	callerPool := sample.NewPool(4, 2, sample.MemoryHeap)
	out := make([]*sample.Sample, 1)
	got, released, err := n.Read(callerPool, out)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if got != 1 || released != 1 {
		t.Fatalf("got=%d released=%d want 1,1", got, released)
	}
	if out[0].Sequence != 42 || out[0].Data[0].F != 3.5 {
		t.Fatalf("round-trip mismatch: %+v", out[0])
	}
}

func TestLoopbackWriteOverrunsWhenFull(t *testing.T) {
	sigs := signal.List{signal.New("v1", "", signal.TypeFloat, signal.Value{})}
	n := New("loop0", 2, 1, sigs)

	pool := sample.NewPool(8, 1, sample.MemoryHeap)
	total := 0
	for i := 0; i < 5; i++ {
		in := make([]*sample.Sample, 1)
		pool.Alloc(1, in)
		in[0].Flags = sample.HasData
		in[0].Signals = sigs
		in[0].Length = 1
		in[0].Data[0] = signal.Float(float64(i))
		accepted, _ := n.Write(in)
		total += accepted
		in[0].Decref()
	}
	if total >= 5 {
		t.Fatalf("accepted %d of 5 writes into a depth-2 loopback, want fewer once it fills", total)
	}
}
