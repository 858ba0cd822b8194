package format

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

// jsonRecord is the one-JSON-object-per-line wire shape: sequence and
// timestamp fields alongside a "data" array keyed by signal position.
type jsonRecord struct {
	Sequence *uint64           `json:"sequence,omitempty"`
	TsOrigin *jsonTimestamp    `json:"ts_origin,omitempty"`
	Data     []json.RawMessage `json:"data"`
}

type jsonTimestamp struct {
	Sec  int64 `json:"sec"`
	Nsec int64 `json:"nsec"`
}

// JSONLine implements a JSON-object-per-line codec. Complex values
// serialize as {"real":...,"imag":...} per spec §4.3.
type JSONLine struct {
	signals signal.List
}

func NewJSONLine(signals signal.List) *JSONLine { return &JSONLine{signals: signals} }

func (c *JSONLine) Signals() signal.List   { return c.signals }
func (c *JSONLine) HasBinaryPayload() bool { return false }
func (c *JSONLine) Header() []byte         { return nil }
func (c *JSONLine) Footer() []byte         { return nil }

func (c *JSONLine) Print(buf []byte, samples []*sample.Sample) (int, error) {
	off := 0
	for _, smp := range samples {
		line, err := c.encode(smp)
		if err != nil {
			return off, err
		}
		line = append(line, '\n')
		if off+len(line) > len(buf) {
			break
		}
		off += copy(buf[off:], line)
	}
	return off, nil
}

func (c *JSONLine) encode(smp *sample.Sample) ([]byte, error) {
	rec := jsonRecord{}
	if smp.Flags.Has(sample.HasSequence) {
		seq := smp.Sequence
		rec.Sequence = &seq
	}
	if smp.Flags.Has(sample.HasTsOrigin) {
		rec.TsOrigin = &jsonTimestamp{Sec: smp.TsOrigin.Unix(), Nsec: int64(smp.TsOrigin.Nanosecond())}
	}
	rec.Data = make([]json.RawMessage, smp.Length)
	for i := 0; i < smp.Length; i++ {
		sigType := signal.TypeFloat
		if i < len(smp.Signals) {
			sigType = smp.Signals[i].Type
		}
		rec.Data[i] = signal.PackJSON(sigType, smp.Data[i])
	}
	return json.Marshal(rec)
}

func (c *JSONLine) Scan(buf []byte, out []*sample.Sample) (int, int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	consumed := 0
	i := 0
	for i < len(out) && scanner.Scan() {
		line := scanner.Text()
		consumed += len(line) + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := c.parseLine(line, out[i]); err != nil {
			return consumed, i, err
		}
		i++
	}
	return consumed, i, nil
}

func (c *JSONLine) parseLine(line string, smp *sample.Sample) error {
	var rec jsonRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return &WireError{Reason: "invalid json line: " + err.Error()}
	}

	smp.Flags = 0
	if rec.Sequence != nil {
		smp.Sequence = *rec.Sequence
		smp.Flags |= sample.HasSequence
	}
	if rec.TsOrigin != nil {
		smp.TsOrigin = timeFromUnix(rec.TsOrigin.Sec, rec.TsOrigin.Nsec)
		smp.Flags |= sample.HasTsOrigin
	}
	smp.Signals = c.signals
	smp.Flags |= sample.HasData

	n := len(rec.Data)
	if n > smp.Capacity {
		n = smp.Capacity
	}
	smp.Length = n
	for i := 0; i < n; i++ {
		sigType := signal.TypeFloat
		if i < len(c.signals) {
			sigType = c.signals[i].Type
		}
		v, err := signal.ParseJSON(sigType, rec.Data[i])
		if err != nil {
			return err
		}
		smp.Data[i] = v
	}
	return nil
}
