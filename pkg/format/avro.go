package format

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
	"github.com/linkedin/goavro/v2"
)

// Avro is an optional, non-canonical sample codec for interop with
// systems that already speak Avro (e.g. archiving through the same
// pipeline the teacher's memorystore checkpoints use). It is NOT the
// wire format spec §6 guarantees — villas.binary remains canonical.
// Records are framed with a big-endian uint32 length prefix since Avro's
// own binary encoding carries no inter-record framing.
type Avro struct {
	signals signal.List
	codec   *goavro.Codec
}

func buildAvroSchema(signals signal.List) string {
	fields := []map[string]any{
		{"name": "sequence", "type": "long"},
		{"name": "sec", "type": "long"},
		{"name": "nsec", "type": "long"},
	}
	for _, s := range signals {
		var avroType string
		switch s.Type {
		case signal.TypeFloat:
			avroType = "double"
		case signal.TypeInteger:
			avroType = "long"
		case signal.TypeBoolean:
			avroType = "boolean"
		case signal.TypeComplex:
			avroType = "string" // JSON-encoded {"real":...,"imag":...}
		}
		fields = append(fields, map[string]any{"name": avroFieldName(s.Name), "type": avroType})
	}
	schema := map[string]any{
		"type":   "record",
		"name":   "Sample",
		"fields": fields,
	}
	b, _ := json.Marshal(schema)
	return string(b)
}

func avroFieldName(name string) string {
	// Avro field names must match [A-Za-z_][A-Za-z0-9_]*; signal names
	// are not guaranteed to, so every other character becomes '_'.
	// Records are keyed by this sanitized name, so two signals whose
	// sanitized names coincide map to the same field.
	out := make([]byte, 0, len(name))
	for i, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			out = append(out, byte(r))
		} else {
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "v"
	}
	return string(out)
}

// NewAvro compiles an Avro schema from signals. Panics on an
// uncompilable schema (signal list is fixed configuration, checked at
// path.Prepare time — a StateError-class failure, not a runtime one).
func NewAvro(signals signal.List) *Avro {
	schema := buildAvroSchema(signals)
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		panic(fmt.Sprintf("format: invalid avro schema: %v", err))
	}
	return &Avro{signals: signals, codec: codec}
}

func (c *Avro) Signals() signal.List   { return c.signals }
func (c *Avro) HasBinaryPayload() bool { return true }

func (c *Avro) Print(buf []byte, samples []*sample.Sample) (int, error) {
	off := 0
	for _, smp := range samples {
		native := map[string]any{
			"sequence": int64(smp.Sequence),
			"sec":      smp.TsOrigin.Unix(),
			"nsec":     int64(smp.TsOrigin.Nanosecond()),
		}
		for i, s := range c.signals {
			if i >= smp.Length {
				break
			}
			native[avroFieldName(s.Name)] = avroNative(s.Type, smp.Data[i])
		}

		rec, err := c.codec.BinaryFromNative(nil, native)
		if err != nil {
			return off, &WireError{Reason: "avro encode: " + err.Error()}
		}
		if off+4+len(rec) > len(buf) {
			break
		}
		binary.BigEndian.PutUint32(buf[off:], uint32(len(rec)))
		off += 4
		off += copy(buf[off:], rec)
	}
	return off, nil
}

func avroNative(t signal.Type, v signal.Value) any {
	switch t {
	case signal.TypeFloat:
		return v.F
	case signal.TypeInteger:
		return v.I
	case signal.TypeBoolean:
		return v.B
	case signal.TypeComplex:
		b, _ := json.Marshal(map[string]float32{"real": real(v.C), "imag": imag(v.C)})
		return string(b)
	default:
		return nil
	}
}

func (c *Avro) Scan(buf []byte, out []*sample.Sample) (int, int, error) {
	off := 0
	i := 0
	for i < len(out) {
		if off+4 > len(buf) {
			break
		}
		recLen := int(binary.BigEndian.Uint32(buf[off:]))
		if off+4+recLen > len(buf) {
			break
		}
		rec := buf[off+4 : off+4+recLen]

		native, _, err := c.codec.NativeFromBinary(rec)
		if err != nil {
			return off, i, &WireError{Reason: "avro decode: " + err.Error()}
		}
		fields, ok := native.(map[string]any)
		if !ok {
			return off, i, &WireError{Reason: "avro decode: not a record"}
		}

		smp := out[i]
		smp.Sequence = uint64(fields["sequence"].(int64))
		sec := fields["sec"].(int64)
		nsec := fields["nsec"].(int64)
		smp.TsOrigin = timeFromUnix(sec, nsec)
		smp.Flags = sample.HasSequence | sample.HasTsOrigin | sample.HasData
		smp.Signals = c.signals

		n := len(c.signals)
		if n > smp.Capacity {
			n = smp.Capacity
		}
		smp.Length = n
		for j := 0; j < n; j++ {
			s := c.signals[j]
			smp.Data[j] = avroFromNative(s.Type, fields[avroFieldName(s.Name)])
		}

		off += 4 + recLen
		i++
	}
	return off, i, nil
}

func avroFromNative(t signal.Type, v any) signal.Value {
	switch t {
	case signal.TypeFloat:
		return signal.Float(v.(float64))
	case signal.TypeInteger:
		return signal.Integer(v.(int64))
	case signal.TypeBoolean:
		return signal.Boolean(v.(bool))
	case signal.TypeComplex:
		var c struct {
			Real float32 `json:"real"`
			Imag float32 `json:"imag"`
		}
		_ = json.Unmarshal([]byte(v.(string)), &c)
		return signal.Complex(complex(c.Real, c.Imag))
	default:
		return signal.Value{}
	}
}
