package format

import (
	"testing"
	"time"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

func TestCSVRoundTripScenario(t *testing.T) {
	sigs := signal.List{
		signal.New("v1", "", signal.TypeFloat, signal.Value{}),
		signal.New("v2", "", signal.TypeInteger, signal.Value{}),
	}
	codec := NewCSV(sigs)

	pool := sample.NewPool(3, 4, sample.MemoryHeap)
	in := []*sample.Sample{
		newMixedSample(pool, 1, time.Unix(0, 0), []signal.Value{signal.Float(1.5), signal.Integer(2)}, sigs),
		newMixedSample(pool, 2, time.Unix(0, 1_000_000), []signal.Value{signal.Float(-0.5), signal.Integer(3)}, sigs),
		newMixedSample(pool, 3, time.Unix(1, 0), []signal.Value{signal.Float(0.0), signal.Integer(4)}, sigs),
	}

	buf := make([]byte, 4096)
	written, err := codec.Print(buf, in)
	if err != nil {
		t.Fatalf("Print error: %v", err)
	}

	outPool := sample.NewPool(3, 4, sample.MemoryHeap)
	outs := make([]*sample.Sample, 3)
	outPool.Alloc(3, outs)

	consumed, n, err := codec.Scan(buf[:written], outs)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if consumed != written || n != 3 {
		t.Fatalf("Scan consumed=%d n=%d, want %d 3", consumed, n, written)
	}

	for i, want := range in {
		got := outs[i]
		if got.Sequence != want.Sequence {
			t.Errorf("sample %d: Sequence = %d, want %d", i, got.Sequence, want.Sequence)
		}
		if got.TsOrigin.Unix() != want.TsOrigin.Unix() || got.TsOrigin.Nanosecond() != want.TsOrigin.Nanosecond() {
			t.Errorf("sample %d: TsOrigin = %v, want %v", i, got.TsOrigin, want.TsOrigin)
		}
		if diff := got.Data[0].F - want.Data[0].F; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("sample %d: v1 = %v, want %v", i, got.Data[0].F, want.Data[0].F)
		}
		if got.Data[1].I != want.Data[1].I {
			t.Errorf("sample %d: v2 = %v, want %v", i, got.Data[1].I, want.Data[1].I)
		}
	}
}

func newMixedSample(pool *sample.Pool, seq uint64, origin time.Time, vals []signal.Value, sigs signal.List) *sample.Sample {
	out := make([]*sample.Sample, 1)
	pool.Alloc(1, out)
	s := out[0]
	s.Sequence = seq
	s.TsOrigin = origin
	s.Flags = sample.HasSequence | sample.HasTsOrigin | sample.HasData
	s.Signals = sigs
	s.Length = len(vals)
	copy(s.Data, vals)
	return s
}
