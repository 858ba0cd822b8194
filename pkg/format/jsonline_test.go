package format

import (
	"testing"
	"time"

	"github.com/govillas/villasd/pkg/sample"
)

func TestJSONLineRoundTrip(t *testing.T) {
	sigs := floatSignals(2)
	codec := NewJSONLine(sigs)

	pool := sample.NewPool(2, 4, sample.MemoryHeap)
	in := newTestSample(pool, 3, time.Unix(10, 250), []float64{1.25, -2.5})

	buf := make([]byte, 1024)
	written, err := codec.Print(buf, []*sample.Sample{in})
	if err != nil {
		t.Fatalf("Print error: %v", err)
	}

	outPool := sample.NewPool(2, 4, sample.MemoryHeap)
	outs := make([]*sample.Sample, 1)
	outPool.Alloc(1, outs)

	_, n, err := codec.Scan(buf[:written], outs)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if n != 1 {
		t.Fatalf("Scan n=%d, want 1", n)
	}
	if outs[0].Sequence != 3 || outs[0].Data[0].F != 1.25 || outs[0].Data[1].F != -2.5 {
		t.Fatalf("round trip mismatch: %+v", outs[0])
	}
}
