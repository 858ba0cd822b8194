package format

import (
	"testing"
	"time"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

func TestRawRoundTripFakeHeader32(t *testing.T) {
	sigs := floatSignals(2)
	codec := NewRaw(sigs, Width32, false, true)

	pool := sample.NewPool(2, 4, sample.MemoryHeap)
	in := newTestSample(pool, 9, time.Unix(5, 0), []float64{11, 22})

	buf := make([]byte, 256)
	written, err := codec.Print(buf, []*sample.Sample{in})
	if err != nil {
		t.Fatalf("Print error: %v", err)
	}

	outPool := sample.NewPool(2, 4, sample.MemoryHeap)
	outs := make([]*sample.Sample, 1)
	outPool.Alloc(1, outs)

	consumed, n, err := codec.Scan(buf[:written], outs)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if consumed != written || n != 1 {
		t.Fatalf("Scan consumed=%d n=%d", consumed, n)
	}
	if outs[0].Sequence != 9 || outs[0].TsOrigin.Unix() != 5 {
		t.Fatalf("header mismatch: %+v", outs[0])
	}
	if outs[0].Data[0].F != 11 || outs[0].Data[1].F != 22 {
		t.Fatalf("data mismatch: %+v", outs[0].Data[:2])
	}
}

func TestRawBooleanAt16BitErrors(t *testing.T) {
	sigs := signal.List{signal.New("b", "", signal.TypeBoolean, signal.Value{})}
	codec := NewRaw(sigs, Width16, false, false)

	pool := sample.NewPool(1, 2, sample.MemoryHeap)
	out := make([]*sample.Sample, 1)
	pool.Alloc(1, out)
	out[0].Length = 1
	out[0].Signals = sigs
	out[0].Data[0] = signal.Boolean(true)

	buf := make([]byte, 32)
	if _, err := codec.Print(buf, out); err == nil {
		t.Fatal("expected error encoding boolean at 16-bit RAW width")
	}
}
