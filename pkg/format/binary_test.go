package format

import (
	"testing"
	"time"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

func floatSignals(n int) signal.List {
	l := make(signal.List, n)
	for i := range l {
		l[i] = signal.New("v", "", signal.TypeFloat, signal.Value{})
	}
	return l
}

func newTestSample(pool *sample.Pool, seq uint64, origin time.Time, vals []float64) *sample.Sample {
	out := make([]*sample.Sample, 1)
	pool.Alloc(1, out)
	s := out[0]
	s.Sequence = seq
	s.TsOrigin = origin
	s.Flags = sample.HasSequence | sample.HasTsOrigin | sample.HasData
	s.Signals = floatSignals(len(vals))
	s.Length = len(vals)
	for i, v := range vals {
		s.Data[i] = signal.Float(v)
	}
	return s
}

func TestBinaryRoundTrip(t *testing.T) {
	sigs := floatSignals(3)
	pool := sample.NewPool(4, 8, sample.MemoryHeap)

	in := newTestSample(pool, 42, time.Unix(100, 500_000_000), []float64{1.0, 2.0, 3.0})

	codec := NewBinary(sigs, false, false)
	buf := make([]byte, 256)
	written, err := codec.Print(buf, []*sample.Sample{in})
	if err != nil {
		t.Fatalf("Print error: %v", err)
	}

	outPool := sample.NewPool(4, 8, sample.MemoryHeap)
	outs := make([]*sample.Sample, 1)
	outPool.Alloc(1, outs)

	consumed, n, err := codec.Scan(buf[:written], outs)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if consumed != written || n != 1 {
		t.Fatalf("Scan consumed=%d n=%d, want %d 1", consumed, n, written)
	}

	got := outs[0]
	if got.Sequence != 42 {
		t.Errorf("Sequence = %d, want 42", got.Sequence)
	}
	if got.TsOrigin.Unix() != 100 || got.TsOrigin.Nanosecond() != 500_000_000 {
		t.Errorf("TsOrigin = %v, want 100.5s", got.TsOrigin)
	}
	for i, want := range []float64{1.0, 2.0, 3.0} {
		if got.Data[i].F != want {
			t.Errorf("Data[%d] = %v, want %v", i, got.Data[i].F, want)
		}
	}
}

func TestBinaryNeverTruncatesMidRecord(t *testing.T) {
	sigs := floatSignals(2)
	pool := sample.NewPool(2, 8, sample.MemoryHeap)
	a := newTestSample(pool, 1, time.Unix(0, 0), []float64{1, 2})
	b := newTestSample(pool, 2, time.Unix(0, 0), []float64{3, 4})

	codec := NewBinary(sigs, false, false)
	recLen := codec.recordLen(2)

	// Buffer fits exactly one record plus a few spare bytes, not enough
	// for a second.
	buf := make([]byte, recLen+3)
	written, err := codec.Print(buf, []*sample.Sample{a, b})
	if err != nil {
		t.Fatalf("Print error: %v", err)
	}
	if written != recLen {
		t.Fatalf("Print wrote %d bytes, want exactly one record (%d)", written, recLen)
	}
}

func TestBinaryWebVariantLittleEndian(t *testing.T) {
	sigs := floatSignals(1)
	pool := sample.NewPool(2, 4, sample.MemoryHeap)
	in := newTestSample(pool, 7, time.Unix(1, 0), []float64{9})

	be := NewBinary(sigs, false, false)
	web := NewBinary(sigs, false, true)

	bufBE := make([]byte, 64)
	bufWeb := make([]byte, 64)
	nBE, _ := be.Print(bufBE, []*sample.Sample{in})
	nWeb, _ := web.Print(bufWeb, []*sample.Sample{in})

	if nBE != nWeb {
		t.Fatalf("BE/web record lengths differ: %d vs %d", nBE, nWeb)
	}
	if string(bufBE[:nBE]) == string(bufWeb[:nWeb]) {
		t.Fatal("expected BE and LE encodings to differ in byte order")
	}
}
