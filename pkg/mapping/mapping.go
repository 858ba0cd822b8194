// Package mapping implements the declarative per-path signal selector of
// spec §4.6/§4.7: an ordered list of Entry values that compose a
// path-local sample out of one or more source nodes' samples and their
// hook-maintained stats.
package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

// Kind enumerates what an Entry selects.
type Kind int

const (
	KindTsOrigin Kind = iota
	KindTsReceived
	KindSequence
	KindStats
	KindDataRange
)

// Entry is one parsed mapping selector, in the string form
// "node_name.ts.origin", "node_name.hdr.sequence",
// "node_name.stats.owd.mean", or "node_name.data[off-off+len]" (spec §6).
type Entry struct {
	Node   string
	Kind   Kind
	Metric string // KindStats: e.g. "owd"; Field: "mean"
	Field  string
	Offset int
	Length int

	Target *signal.Signal // destination signal descriptor and init value
}

// StatsSource is satisfied by anything that can answer a metric.field
// query, so mapping doesn't import pkg/hook/builtin directly and avoid a
// layering cycle (L4 sits below L3's concrete stats implementation in
// the module map, but above the hook interface).
type StatsSource interface {
	StatsField(metric, field string) (float64, bool)
}

// Parse parses one mapping entry string. It does not check that the
// node name refers to a known upstream node.
func Parse(s string, target *signal.Signal) (*Entry, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("mapping: malformed entry %q", s)
	}
	node, rest := parts[0], parts[1]
	e := &Entry{Node: node, Target: target}

	switch {
	case rest == "ts.origin":
		e.Kind = KindTsOrigin
	case rest == "ts.received":
		e.Kind = KindTsReceived
	case rest == "hdr.sequence":
		e.Kind = KindSequence
	case strings.HasPrefix(rest, "stats."):
		fields := strings.Split(strings.TrimPrefix(rest, "stats."), ".")
		if len(fields) != 2 {
			return nil, fmt.Errorf("mapping: malformed stats entry %q", s)
		}
		e.Kind = KindStats
		e.Metric = fields[0]
		e.Field = fields[1]
	case strings.HasPrefix(rest, "data[") && strings.HasSuffix(rest, "]"):
		body := rest[len("data[") : len(rest)-1]
		off, length, err := parseRange(body)
		if err != nil {
			return nil, fmt.Errorf("mapping: %q: %w", s, err)
		}
		e.Kind = KindDataRange
		e.Offset = off
		e.Length = length
	default:
		return nil, fmt.Errorf("mapping: unrecognized selector %q", s)
	}
	return e, nil
}

// parseRange accepts "off-off+len" ranges in the form "3-7" (inclusive
// bounds, per spec §6's "data[3-7]" example) translated to offset=3,
// length=5.
func parseRange(body string) (offset, length int, err error) {
	idx := strings.IndexByte(body, '-')
	if idx < 0 {
		off, err := strconv.Atoi(body)
		if err != nil {
			return 0, 0, err
		}
		return off, 1, nil
	}
	lo, err := strconv.Atoi(body[:idx])
	if err != nil {
		return 0, 0, err
	}
	hi, err := strconv.Atoi(body[idx+1:])
	if err != nil {
		return 0, 0, err
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("range end %d before start %d", hi, lo)
	}
	return lo, hi - lo + 1, nil
}

// ExpandRange turns a single "node.data[off-off+len]" config line into
// len KindDataRange entries, one per destination signal, each pulling
// exactly one upstream value. Config loading calls this instead of
// handing a multi-value range to Apply, keeping Entry.Apply a
// one-entry-one-slot operation.
func ExpandRange(node string, offset, length int, targets []*signal.Signal) ([]*Entry, error) {
	if len(targets) != length {
		return nil, fmt.Errorf("mapping: range of length %d needs %d target signals, got %d", length, length, len(targets))
	}
	out := make([]*Entry, length)
	for i := 0; i < length; i++ {
		out[i] = &Entry{
			Node:   node,
			Kind:   KindDataRange,
			Offset: offset + i,
			Length: 1,
			Target: targets[i],
		}
	}
	return out, nil
}

// List is the ordered set of mapping entries producing one path-local
// sample, plus the upstream-missing-value counter of spec §4.6.
type List struct {
	entries []*Entry
	missing int64
}

func NewList(entries ...*Entry) *List {
	return &List{entries: entries}
}

func (l *List) Signals() signal.List {
	out := make(signal.List, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Target
	}
	return out
}

// Missing returns the cumulative count of mapping reads that fell back
// to a signal's init value because the upstream source didn't supply
// it.
func (l *List) Missing() int64 { return atomic.LoadInt64(&l.missing) }

// Apply composes dst from the named upstream samples (one per source
// node feeding this path) and the stats sources keyed the same way.
// dst must already have Capacity >= len(entries); dst.Signals is set
// to l.Signals().
func (l *List) Apply(dst *sample.Sample, upstream map[string]*sample.Sample, stats map[string]StatsSource) error {
	dst.Signals = l.Signals()
	n := len(l.entries)
	if n > dst.Capacity {
		n = dst.Capacity
	}
	dst.Length = n
	dst.Flags |= sample.HasData

	for i := 0; i < n; i++ {
		e := l.entries[i]
		src := upstream[e.Node]

		switch e.Kind {
		case KindTsOrigin:
			if src != nil && src.Flags.Has(sample.HasTsOrigin) {
				dst.TsOrigin = src.TsOrigin
				dst.Flags |= sample.HasTsOrigin
			}
			dst.Data[i] = e.fallback()
		case KindTsReceived:
			if src != nil && src.Flags.Has(sample.HasTsReceived) {
				dst.TsReceived = src.TsReceived
				dst.Flags |= sample.HasTsReceived
			}
			dst.Data[i] = e.fallback()
		case KindSequence:
			if src != nil && src.Flags.Has(sample.HasSequence) {
				dst.Sequence = src.Sequence
				dst.Flags |= sample.HasSequence
			}
			dst.Data[i] = e.fallback()
		case KindStats:
			ss := stats[e.Node]
			if ss == nil {
				atomic.AddInt64(&l.missing, 1)
				dst.Data[i] = e.fallback()
				continue
			}
			v, ok := ss.StatsField(e.Metric, e.Field)
			if !ok {
				atomic.AddInt64(&l.missing, 1)
				dst.Data[i] = e.fallback()
				continue
			}
			dst.Data[i] = signal.Float(v)
		case KindDataRange:
			if src == nil || e.Offset >= src.Length {
				atomic.AddInt64(&l.missing, 1)
				dst.Data[i] = e.fallback()
				continue
			}
			srcType := signal.TypeFloat
			if e.Offset < len(src.Signals) {
				srcType = src.Signals[e.Offset].Type
			}
			v, err := signal.Cast(srcType, e.Target.Type, src.Data[e.Offset])
			if err != nil {
				return err
			}
			dst.Data[i] = v
		}
	}
	return nil
}

func (e *Entry) fallback() signal.Value {
	if e.Target != nil {
		return e.Target.Init
	}
	return signal.Value{}
}
