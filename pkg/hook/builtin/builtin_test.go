package builtin

import (
	"bytes"
	"testing"
	"time"

	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/sample"
)

func newSeqSample(pool *sample.Pool, seq uint64) *sample.Sample {
	out := make([]*sample.Sample, 1)
	pool.Alloc(1, out)
	s := out[0]
	s.Sequence = seq
	s.Flags = sample.HasSequence | sample.HasTsOrigin | sample.HasTsReceived
	s.TsOrigin = time.Unix(int64(seq), 0)
	s.TsReceived = time.Unix(int64(seq), int64(1e6))
	return s
}

func TestDropFiltersNonIncreasing(t *testing.T) {
	pool := sample.NewPool(8, 2, sample.MemoryHeap)
	d := NewDrop(0, hook.ContextPath)

	seqs := []uint64{1, 2, 2, 1, 3}
	wantVerdicts := []hook.Verdict{hook.Ok, hook.Ok, hook.SkipSample, hook.SkipSample, hook.Ok}

	for i, seq := range seqs {
		v, err := d.Process(newSeqSample(pool, seq))
		if err != nil {
			t.Fatalf("Process error: %v", err)
		}
		if v != wantVerdicts[i] {
			t.Fatalf("seq %d: verdict=%v want %v", seq, v, wantVerdicts[i])
		}
	}
	if d.Dropped() != 2 {
		t.Fatalf("Dropped()=%d want 2", d.Dropped())
	}
}

func TestDecimateKeepsEveryNth(t *testing.T) {
	pool := sample.NewPool(16, 2, sample.MemoryHeap)
	d := NewDecimate(0, hook.ContextPath, 3)

	kept := 0
	for i := uint64(0); i < 9; i++ {
		v, err := d.Process(newSeqSample(pool, i))
		if err != nil {
			t.Fatalf("Process error: %v", err)
		}
		if v == hook.Ok {
			kept++
		}
	}
	if kept != 3 {
		t.Fatalf("kept=%d want 3", kept)
	}
}

func TestDecimateCheckRejectsZeroRatio(t *testing.T) {
	d := NewDecimate(0, hook.ContextPath, 0)
	if err := d.Check(); err == nil {
		t.Fatal("expected error for ratio 0")
	}
}

func TestRestartDetectsWrapToZero(t *testing.T) {
	pool := sample.NewPool(8, 2, sample.MemoryHeap)
	resetCalled := false
	r := NewRestart(0, hook.ContextPath, func() { resetCalled = true })

	if _, err := r.Process(newSeqSample(pool, uint64(^uint32(0))-5)); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if _, err := r.Process(newSeqSample(pool, 0)); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if !resetCalled {
		t.Fatal("expected onReset to fire on wraparound")
	}
	if r.Restarts() != 1 {
		t.Fatalf("Restarts()=%d want 1", r.Restarts())
	}
}

func TestShiftSeqAddsOffset(t *testing.T) {
	pool := sample.NewPool(4, 2, sample.MemoryHeap)
	s := NewShiftSeq(0, hook.ContextPath, 100)
	smp := newSeqSample(pool, 5)
	if _, err := s.Process(smp); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if smp.Sequence != 105 {
		t.Fatalf("Sequence=%d want 105", smp.Sequence)
	}
}

func TestShiftTsAddsDuration(t *testing.T) {
	pool := sample.NewPool(4, 2, sample.MemoryHeap)
	s := NewShiftTs(0, hook.ContextPath, 2*time.Second)
	smp := newSeqSample(pool, 1)
	origin := smp.TsOrigin
	if _, err := s.Process(smp); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if !smp.TsOrigin.Equal(origin.Add(2 * time.Second)) {
		t.Fatalf("TsOrigin=%v want %v", smp.TsOrigin, origin.Add(2*time.Second))
	}
}

func TestStatsTracksGapAndReorder(t *testing.T) {
	pool := sample.NewPool(8, 2, sample.MemoryHeap)
	st := NewStats(0, hook.ContextPath)

	for _, seq := range []uint64{1, 2, 3} {
		if _, err := st.Process(newSeqSample(pool, seq)); err != nil {
			t.Fatalf("Process error: %v", err)
		}
	}
	if _, err := st.Process(newSeqSample(pool, 2)); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	snap := st.Snapshot()
	if snap["gap_sample"].Count != 2 {
		t.Fatalf("gap_sample count=%d want 2", snap["gap_sample"].Count)
	}
	if snap["reordered"].Count != 1 {
		t.Fatalf("reordered count=%d want 1", snap["reordered"].Count)
	}
	if snap["owd"].Count != 4 {
		t.Fatalf("owd count=%d want 4", snap["owd"].Count)
	}
}

func TestStatsWarmupExcludesSamples(t *testing.T) {
	pool := sample.NewPool(8, 2, sample.MemoryHeap)
	st := NewStats(0, hook.ContextPath)
	st.cfg.Warmup = 2
	st.initMetrics()

	for _, seq := range []uint64{1, 2, 3, 4} {
		if _, err := st.Process(newSeqSample(pool, seq)); err != nil {
			t.Fatalf("Process error: %v", err)
		}
	}
	snap := st.Snapshot()
	if snap["owd"].Count != 2 {
		t.Fatalf("owd count=%d want 2 (warmup should exclude first 2)", snap["owd"].Count)
	}
}

func TestPrintFormatsNodeNamePrefix(t *testing.T) {
	var buf bytes.Buffer
	pool := sample.NewPool(4, 2, sample.MemoryHeap)
	p := NewPrint(0, hook.ContextPath, &buf, "[%N]", "node0", 8)

	if err := p.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if _, err := p.Process(newSeqSample(pool, 7)); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("[node0]")) {
		t.Fatalf("output %q missing substituted node name prefix", out)
	}
	if !bytes.Contains([]byte(out), []byte("(7)")) {
		t.Fatalf("output %q missing sequence", out)
	}
}
