package signal

import (
	"bytes"
	"encoding/json"
)

type complexJSON struct {
	Real float32 `json:"real"`
	Imag float32 `json:"imag"`
}

// ParseJSON decodes a single JSON scalar token (or, for complex, a
// {"real":...,"imag":...} object) into a Value of type t, per spec §4.3.
func ParseJSON(t Type, raw json.RawMessage) (Value, error) {
	switch t {
	case TypeFloat:
		var f float64
		if err := strictUnmarshal(raw, &f); err != nil {
			return Value{}, wrapParse(t, string(raw), err)
		}
		return Float(f), nil
	case TypeInteger:
		var i int64
		if err := strictUnmarshal(raw, &i); err != nil {
			return Value{}, wrapParse(t, string(raw), err)
		}
		return Integer(i), nil
	case TypeBoolean:
		var b bool
		if err := strictUnmarshal(raw, &b); err != nil {
			return Value{}, wrapParse(t, string(raw), err)
		}
		return Boolean(b), nil
	case TypeComplex:
		var c complexJSON
		if err := strictUnmarshal(raw, &c); err != nil {
			return Value{}, wrapParse(t, string(raw), err)
		}
		return Complex(complex(c.Real, c.Imag)), nil
	default:
		return Value{}, &InvalidTypeError{Name: t.String()}
	}
}

// PackJSON renders v under t as a JSON scalar (complex as an object).
func PackJSON(t Type, v Value) json.RawMessage {
	switch t {
	case TypeFloat:
		b, _ := json.Marshal(v.F)
		return b
	case TypeInteger:
		b, _ := json.Marshal(v.I)
		return b
	case TypeBoolean:
		b, _ := json.Marshal(v.B)
		return b
	case TypeComplex:
		b, _ := json.Marshal(complexJSON{Real: real(v.C), Imag: imag(v.C)})
		return b
	default:
		return nil
	}
}

// strictUnmarshal rejects type-mismatched JSON tokens (e.g. a string
// where a number is declared) instead of silently coercing, per spec
// §4.3's InvalidValueType requirement.
func strictUnmarshal(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
