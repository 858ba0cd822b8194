// Package signal defines the scalar channel descriptors and typed values
// that make up a Sample, per spec §3.
package signal

import "sync/atomic"

// Type enumerates the value kinds a Signal can carry.
type Type int

const (
	TypeFloat Type = iota
	TypeInteger
	TypeBoolean
	TypeComplex
	typeCount
)

func (t Type) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	case TypeComplex:
		return "complex"
	default:
		return "invalid"
	}
}

// TypeFromString parses the config-facing spelling of a signal type.
func TypeFromString(name string) (Type, error) {
	switch name {
	case "float":
		return TypeFloat, nil
	case "integer":
		return TypeInteger, nil
	case "boolean":
		return TypeBoolean, nil
	case "complex":
		return TypeComplex, nil
	default:
		return 0, &InvalidTypeError{Name: name}
	}
}

// InvalidTypeError is returned by TypeFromString for an unknown type
// name, by the Value decoders for an unknown Type, and by Cast for an
// unsupported conversion. A token that does not parse as its declared
// type yields a ParseError instead; per spec §4.3 neither case silently
// coerces.
type InvalidTypeError struct {
	Name string
}

func (e *InvalidTypeError) Error() string {
	return "signal: invalid value type " + e.Name
}

// Signal is the descriptor of one scalar channel. Signals are shared
// between producers and consumers; Refcnt tracks the union of all
// samples and lists that reference the signal (spec §3).
type Signal struct {
	Name    string
	Unit    string
	Type    Type
	Init    Value
	Enabled bool

	refcnt int32
}

// New returns a Signal with refcnt 1.
func New(name, unit string, t Type, init Value) *Signal {
	return &Signal{
		Name:    name,
		Unit:    unit,
		Type:    t,
		Init:    init,
		Enabled: true,
		refcnt:  1,
	}
}

func (s *Signal) Incref() int32 {
	return atomic.AddInt32(&s.refcnt, 1)
}

func (s *Signal) Decref() int32 {
	return atomic.AddInt32(&s.refcnt, -1)
}

func (s *Signal) Refcnt() int32 {
	return atomic.LoadInt32(&s.refcnt)
}

// List is an ordered sequence of Signal references describing the type
// of each value slot in a Sample's data array.
type List []*Signal

// Names returns the ordered list of signal names, used by line-oriented
// codecs for header rows.
func (l List) Names() []string {
	out := make([]string, len(l))
	for i, s := range l {
		out[i] = s.Name
	}
	return out
}

// Clone returns a shallow copy of the list (same *Signal pointers); used
// when a HookList.Prepare step threads signals through unchanged.
func (l List) Clone() List {
	out := make(List, len(l))
	copy(out, l)
	return out
}
