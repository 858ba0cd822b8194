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

// Human implements villas.human, the line-oriented debug/round-trip
// format: "sec.nanosec+offset(sequence)<sep>v1<sep>v2...\n", grounded on
// _examples/original_source/lib/formats/villas_human.cpp.
type Human struct {
	signals   signal.List
	separator byte
	fields    FieldMask
}

func NewHuman(signals signal.List, fields FieldMask) *Human {
	return &Human{signals: signals, separator: '\t', fields: fields}
}

func (c *Human) Signals() signal.List   { return c.signals }
func (c *Human) HasBinaryPayload() bool { return false }

func (c *Human) Header() []byte {
	var b strings.Builder
	b.WriteString("# seconds.nanoseconds")
	if c.fields.Has(FieldOffset) {
		b.WriteString("+offset")
	}
	if c.fields.Has(FieldSequence) {
		b.WriteString("(sequence)")
	}
	for _, s := range c.signals {
		b.WriteByte(c.separator)
		b.WriteString(s.Name)
		if s.Unit != "" {
			b.WriteString("[" + s.Unit + "]")
		}
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func (c *Human) Footer() []byte { return nil }

func (c *Human) Print(buf []byte, samples []*sample.Sample) (int, error) {
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

func (c *Human) formatLine(smp *sample.Sample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%09d", smp.TsOrigin.Unix(), smp.TsOrigin.Nanosecond())
	if c.fields.Has(FieldOffset) && smp.Flags.Has(sample.HasOffset) {
		fmt.Fprintf(&b, "%+e", smp.Offset.Seconds())
	}
	if c.fields.Has(FieldSequence) {
		fmt.Fprintf(&b, "(%d)", smp.Sequence)
	}
	for i := 0; i < smp.Length; i++ {
		sigType := signal.TypeFloat
		if i < len(smp.Signals) {
			sigType = smp.Signals[i].Type
		}
		b.WriteByte(c.separator)
		b.WriteString(signal.PrintStr(sigType, smp.Data[i]))
	}
	b.WriteByte('\n')
	return b.String()
}

func (c *Human) Scan(buf []byte, out []*sample.Sample) (int, int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	consumed := 0
	i := 0
	for i < len(out) && scanner.Scan() {
		line := scanner.Text()
		consumed += len(line) + 1
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "" {
			continue
		}
		if err := c.parseLine(line, out[i]); err != nil {
			return consumed, i, err
		}
		i++
	}
	return consumed, i, nil
}

func (c *Human) parseLine(line string, smp *sample.Sample) error {
	fields := strings.Split(line, string(c.separator))
	if len(fields) < 1 {
		return &WireError{Reason: "empty record"}
	}

	head := fields[0]
	if idx := strings.IndexByte(head, '('); idx >= 0 {
		tsPart := head[:idx]
		seqPart := strings.TrimSuffix(head[idx+1:], ")")
		seq, err := strconv.ParseUint(seqPart, 10, 64)
		if err != nil {
			return &WireError{Reason: "bad sequence: " + err.Error()}
		}
		smp.Sequence = seq
		smp.Flags |= sample.HasSequence
		head = tsPart
	}
	sec, nsec, err := parseTimestamp(head)
	if err != nil {
		return &WireError{Reason: "bad timestamp: " + err.Error()}
	}
	smp.TsOrigin = timeFromUnix(sec, nsec)
	smp.Flags |= sample.HasTsOrigin | sample.HasData
	smp.Signals = c.signals

	vals := fields[1:]
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

func parseTimestamp(s string) (sec, nsec int64, err error) {
	// strip any "+offset" suffix introduced by the exponential marker.
	if idx := strings.IndexAny(s, "+-"); idx > 0 {
		s = s[:idx]
	}
	parts := strings.SplitN(s, ".", 2)
	sec, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	if len(parts) == 2 {
		nsStr := parts[1]
		for len(nsStr) < 9 {
			nsStr += "0"
		}
		nsec, err = strconv.ParseInt(nsStr[:9], 10, 64)
		if err != nil {
			return 0, 0, err
		}
	}
	return sec, nsec, nil
}
