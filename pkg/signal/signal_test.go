package signal

import (
	"encoding/json"
	"testing"
)

func TestTypeFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"float", TypeFloat, false},
		{"integer", TypeInteger, false},
		{"boolean", TypeBoolean, false},
		{"complex", TypeComplex, false},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		got, err := TypeFromString(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("TypeFromString(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("TypeFromString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePrintRoundTrip(t *testing.T) {
	cases := []struct {
		t Type
		s string
	}{
		{TypeFloat, "1.5"},
		{TypeInteger, "-7"},
		{TypeBoolean, "true"},
	}
	for _, c := range cases {
		v, err := ParseStr(c.t, c.s)
		if err != nil {
			t.Fatalf("ParseStr(%v, %q) error: %v", c.t, c.s, err)
		}
		if got := PrintStr(c.t, v); got != c.s {
			t.Errorf("PrintStr(ParseStr(%q)) = %q, want %q", c.s, got, c.s)
		}
	}
}

func TestParseStrTypeMismatchFails(t *testing.T) {
	if _, err := ParseStr(TypeInteger, "not-a-number"); err == nil {
		t.Fatal("expected parse error for non-numeric token against integer signal")
	}
}

func TestParseJSONRejectsTypeMismatch(t *testing.T) {
	// A JSON string fed to a float-typed signal must fail, not coerce
	// (spec §4.3 InvalidValueType).
	if _, err := ParseJSON(TypeFloat, json.RawMessage(`"1.5"`)); err == nil {
		t.Fatal("expected ParseJSON to reject a string token for a float signal")
	}
}

func TestPackJSONComplex(t *testing.T) {
	raw := PackJSON(TypeComplex, Complex(complex(float32(1), float32(2))))
	v, err := ParseJSON(TypeComplex, raw)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if real(v.C) != 1 || imag(v.C) != 2 {
		t.Fatalf("round trip value = %v, want 1+2i", v.C)
	}
}

func TestCastLossyTruncation(t *testing.T) {
	v, err := Cast(TypeFloat, TypeInteger, Float(3.9))
	if err != nil {
		t.Fatalf("Cast error: %v", err)
	}
	if v.I != 3 {
		t.Fatalf("Cast(3.9 float->int) = %d, want 3 (truncated, not rounded)", v.I)
	}
}

func TestCastBooleanNumeric(t *testing.T) {
	v, _ := Cast(TypeBoolean, TypeInteger, Boolean(true))
	if v.I != 1 {
		t.Fatalf("Cast(true->int) = %d, want 1", v.I)
	}
}
