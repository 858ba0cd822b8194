package format

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

// CSV implements a comma-separated per-sample line: "sec,nsec,sequence,v1,v2,...\n"
// grounded on _examples/original_source/lib/formats/csv.cpp's field order
// (ts.origin, offset, sequence, then data).
type CSV struct {
	signals signal.List
}

func NewCSV(signals signal.List) *CSV { return &CSV{signals: signals} }

func (c *CSV) Signals() signal.List   { return c.signals }
func (c *CSV) HasBinaryPayload() bool { return false }

func (c *CSV) Header() []byte {
	var b strings.Builder
	b.WriteString("# sec,nsec,sequence")
	for _, s := range c.signals {
		b.WriteByte(',')
		b.WriteString(s.Name)
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func (c *CSV) Footer() []byte { return nil }

func (c *CSV) Print(buf []byte, samples []*sample.Sample) (int, error) {
	off := 0
	for _, smp := range samples {
		line := c.formatLine(smp)
		if off+len(line) > len(buf) {
			break
		}
		off += copy(buf[off:], line)
	}
	return off, nil
}

func (c *CSV) formatLine(smp *sample.Sample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d,%09d,%d", smp.TsOrigin.Unix(), smp.TsOrigin.Nanosecond(), smp.Sequence)
	for i := 0; i < smp.Length; i++ {
		sigType := signal.TypeFloat
		if i < len(smp.Signals) {
			sigType = smp.Signals[i].Type
		}
		b.WriteByte(',')
		b.WriteString(signal.PrintStr(sigType, smp.Data[i]))
	}
	b.WriteByte('\n')
	return b.String()
}

func (c *CSV) Scan(buf []byte, out []*sample.Sample) (int, int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	consumed := 0
	i := 0
	for i < len(out) && scanner.Scan() {
		line := scanner.Text()
		consumed += len(line) + 1
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		if err := c.parseLine(line, out[i]); err != nil {
			return consumed, i, err
		}
		i++
	}
	return consumed, i, nil
}

func (c *CSV) parseLine(line string, smp *sample.Sample) error {
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return &WireError{Reason: "csv record too short"}
	}
	sec, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return &WireError{Reason: "bad sec: " + err.Error()}
	}
	nsec, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return &WireError{Reason: "bad nsec: " + err.Error()}
	}
	seq, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return &WireError{Reason: "bad sequence: " + err.Error()}
	}

	smp.TsOrigin = timeFromUnix(sec, nsec)
	smp.Sequence = seq
	smp.Flags = sample.HasTsOrigin | sample.HasSequence | sample.HasData
	smp.Signals = c.signals

	vals := fields[3:]
	n := len(vals)
	if n > smp.Capacity {
		n = smp.Capacity
	}
	smp.Length = n
	for i := 0; i < n; i++ {
		sigType := signal.TypeFloat
		if i < len(c.signals) {
			sigType = c.signals[i].Type
		}
		v, err := signal.ParseStr(sigType, vals[i])
		if err != nil {
			return err
		}
		smp.Data[i] = v
	}
	return nil
}
