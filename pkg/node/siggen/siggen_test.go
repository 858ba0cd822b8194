package siggen

import (
	"encoding/json"
	"testing"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

func TestSiggenSineProducesIncreasingSequence(t *testing.T) {
	sigs := signal.List{signal.New("v1", "", signal.TypeFloat, signal.Value{})}
	n := New("sig0", 1, sigs)

	cfg, _ := json.Marshal(Config{Waveform: "sine", Rate: 1000, Frequency: 1, Amplitude: 1})
	if err := n.Parse(cfg); err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if err := n.Check(); err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer n.Stop()

	pool := sample.NewPool(8, 1, sample.MemoryHeap)
	var lastSeq uint64
	for i := 0; i < 3; i++ {
		out := make([]*sample.Sample, 1)
		got, _, err := n.Read(pool, out)
		if err != nil {
			t.Fatalf("Read error: %v", err)
		}
		if got != 1 {
			t.Fatalf("Read returned %d samples, want 1", got)
		}
		if i > 0 && out[0].Sequence <= lastSeq {
			t.Fatalf("sequence did not increase: %d <= %d", out[0].Sequence, lastSeq)
		}
		lastSeq = out[0].Sequence
		out[0].Decref()
	}
}

func TestSiggenWaveformFromStringRejectsUnknown(t *testing.T) {
	if _, err := WaveformFromString("bogus"); err == nil {
		t.Fatal("expected error for unknown waveform")
	}
}

func TestSiggenWriteIsReadOnlyRejected(t *testing.T) {
	n := New("sig0", 1, nil)
	if _, err := n.Write(nil); err == nil {
		t.Fatal("expected error writing to a generator node")
	}
}
