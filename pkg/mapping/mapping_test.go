package mapping

import (
	"testing"
	"time"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

type fakeStats struct{ owdMean float64 }

func (f *fakeStats) StatsField(metric, field string) (float64, bool) {
	if metric == "owd" && field == "mean" {
		return f.owdMean, true
	}
	return 0, false
}

func TestParseEntries(t *testing.T) {
	target := signal.New("v", "", signal.TypeFloat, signal.Value{})

	cases := []struct {
		in   string
		kind Kind
	}{
		{"A.ts.origin", KindTsOrigin},
		{"A.ts.received", KindTsReceived},
		{"A.hdr.sequence", KindSequence},
		{"A.stats.owd.mean", KindStats},
		{"A.data[3-7]", KindDataRange},
	}
	for _, c := range cases {
		e, err := Parse(c.in, target)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if e.Kind != c.kind {
			t.Fatalf("Parse(%q).Kind=%v want %v", c.in, e.Kind, c.kind)
		}
	}
}

func TestApplyFillsMissingWithInit(t *testing.T) {
	target := signal.New("v", "", signal.TypeFloat, signal.Float(-1))
	e, err := Parse("A.data[0]", target)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	l := NewList(e)

	pool := sample.NewPool(2, 2, sample.MemoryHeap)
	out := make([]*sample.Sample, 1)
	pool.Alloc(1, out)

	if err := l.Apply(out[0], map[string]*sample.Sample{}, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out[0].Data[0].F != -1 {
		t.Fatalf("Data[0]=%v want init -1", out[0].Data[0])
	}
	if l.Missing() != 1 {
		t.Fatalf("Missing()=%d want 1", l.Missing())
	}
}

func TestApplyReadsStatsField(t *testing.T) {
	target := signal.New("owd_mean", "s", signal.TypeFloat, signal.Value{})
	e, err := Parse("A.stats.owd.mean", target)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	l := NewList(e)

	pool := sample.NewPool(2, 2, sample.MemoryHeap)
	out := make([]*sample.Sample, 1)
	pool.Alloc(1, out)

	stats := map[string]StatsSource{"A": &fakeStats{owdMean: 0.002}}
	if err := l.Apply(out[0], map[string]*sample.Sample{}, stats); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out[0].Data[0].F != 0.002 {
		t.Fatalf("Data[0]=%v want 0.002", out[0].Data[0])
	}
}

func TestApplyCastsDataRange(t *testing.T) {
	target := signal.New("v", "", signal.TypeInteger, signal.Value{})
	e, err := Parse("A.data[0]", target)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	l := NewList(e)

	pool := sample.NewPool(2, 2, sample.MemoryHeap)
	srcOut := make([]*sample.Sample, 1)
	pool.Alloc(1, srcOut)
	src := srcOut[0]
	src.Length = 1
	src.Signals = signal.List{signal.New("f", "", signal.TypeFloat, signal.Value{})}
	src.Data[0] = signal.Float(3.9)
	src.TsOrigin = time.Unix(1, 0)

	dstOut := make([]*sample.Sample, 1)
	pool.Alloc(1, dstOut)
	dst := dstOut[0]

	if err := l.Apply(dst, map[string]*sample.Sample{"A": src}, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dst.Data[0].I != 3 {
		t.Fatalf("Data[0]=%v want 3 (truncated cast)", dst.Data[0])
	}
}
