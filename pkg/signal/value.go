package signal

import (
	"errors"
	"strconv"
)

// Value is a tagged union of the scalar kinds a Signal can describe. The
// tag is not carried in Value itself — the paired Signal.Type says which
// arm is live, matching the data model in spec §3 where "data[capacity]"
// is interpreted through the matching Signal.
type Value struct {
	F float64
	I int64
	B bool
	C complex64
}

func Float(f float64) Value    { return Value{F: f} }
func Integer(i int64) Value    { return Value{I: i} }
func Boolean(b bool) Value     { return Value{B: b} }
func Complex(c complex64) Value { return Value{C: c} }

// ParseStr parses the human-readable round-trip form of v for the given
// type (villas.human / CSV token form), per spec §4.3.
func ParseStr(t Type, s string) (Value, error) {
	switch t {
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, wrapParse(t, s, err)
		}
		return Float(f), nil
	case TypeInteger:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, wrapParse(t, s, err)
		}
		return Integer(i), nil
	case TypeBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, wrapParse(t, s, err)
		}
		return Boolean(b), nil
	case TypeComplex:
		c, err := strconv.ParseComplex(s, 64)
		if err != nil {
			return Value{}, wrapParse(t, s, err)
		}
		return Complex(complex64(c)), nil
	default:
		return Value{}, &InvalidTypeError{Name: t.String()}
	}
}

func wrapParse(t Type, s string, err error) error {
	return &ParseError{Type: t, Token: s, Cause: err}
}

// ParseError reports a failure to parse a token as a signal's declared
// type; callers treat it as a WireError (spec §7).
type ParseError struct {
	Type  Type
	Token string
	Cause error
}

func (e *ParseError) Error() string {
	return "signal: cannot parse " + strconv.Quote(e.Token) + " as " + e.Type.String() + ": " + e.Cause.Error()
}

func (e *ParseError) Unwrap() error { return e.Cause }

// PrintStr renders v under t in the human-readable round-trip form.
func PrintStr(t Type, v Value) string {
	switch t {
	case TypeFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case TypeInteger:
		return strconv.FormatInt(v.I, 10)
	case TypeBoolean:
		return strconv.FormatBool(v.B)
	case TypeComplex:
		return strconv.FormatComplex(complex128(v.C), 'g', -1, 64)
	default:
		return ""
	}
}

var errComplexJSON = errors.New(`signal: complex JSON value must be an object {"real":...,"imag":...}`)

// Cast converts v from one signal type to another. Numeric casts are
// lossy-succeed (truncating), per spec §4.3; boolean<->numeric uses 0/1;
// complex<->real uses the real part on narrowing and zero imaginary on
// widening.
func Cast(from, to Type, v Value) (Value, error) {
	if from == to {
		return v, nil
	}
	switch to {
	case TypeFloat:
		switch from {
		case TypeInteger:
			return Float(float64(v.I)), nil
		case TypeBoolean:
			if v.B {
				return Float(1), nil
			}
			return Float(0), nil
		case TypeComplex:
			return Float(float64(real(v.C))), nil
		}
	case TypeInteger:
		switch from {
		case TypeFloat:
			return Integer(int64(v.F)), nil
		case TypeBoolean:
			if v.B {
				return Integer(1), nil
			}
			return Integer(0), nil
		case TypeComplex:
			return Integer(int64(real(v.C))), nil
		}
	case TypeBoolean:
		switch from {
		case TypeFloat:
			return Boolean(v.F != 0), nil
		case TypeInteger:
			return Boolean(v.I != 0), nil
		case TypeComplex:
			return Boolean(real(v.C) != 0 || imag(v.C) != 0), nil
		}
	case TypeComplex:
		switch from {
		case TypeFloat:
			return Complex(complex(float32(v.F), 0)), nil
		case TypeInteger:
			return Complex(complex(float32(v.I), 0)), nil
		case TypeBoolean:
			if v.B {
				return Complex(complex(1, 0)), nil
			}
			return Complex(complex(0, 0)), nil
		}
	}
	return Value{}, &InvalidTypeError{Name: "cast " + from.String() + "->" + to.String()}
}
