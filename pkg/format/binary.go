package format

import (
	"encoding/binary"

	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

// Wire-value type bits carried in the binary header (spec §4.4): the
// canonical format supports exactly two value widths on the wire,
// 32-bit integer or 64-bit float. Booleans/complex signals are cast
// through signal.Cast into whichever wire type the codec is configured
// with.
const (
	wireFloat64 uint32 = 0
	wireInt32   uint32 = 1
)

// protocolVersion is the value placed in the header's 4-bit version
// field; bumped only on an incompatible wire change.
const protocolVersion uint32 = 2

const headerSize = 4 + 4 + 4 + 4 // header word, sequence, ts.sec, ts.nsec

// Binary implements the canonical villas.binary wire codec of spec §4.4:
//
//	32-bit header: version(4) | type(2) | reserved(10) | length(16)
//	32-bit sequence
//	32-bit ts.sec, 32-bit ts.nsec
//	length × (32-bit int | 64-bit float) values
//
// All fields are big-endian unless Web is set, in which case the wire is
// little-endian to match browser typed arrays.
type Binary struct {
	signals  signal.List
	wireType uint32 // wireFloat64 or wireInt32
	web      bool
}

// NewBinary returns a canonical villas.binary codec. wireType32 selects
// whether values are encoded as 64-bit floats (the default, lossless for
// TypeFloat/TypeInteger up to 2^53) or 32-bit integers.
func NewBinary(signals signal.List, wireType32 bool, web bool) *Binary {
	wt := wireFloat64
	if wireType32 {
		wt = wireInt32
	}
	return &Binary{signals: signals, wireType: wt, web: web}
}

func (c *Binary) Signals() signal.List    { return c.signals }
func (c *Binary) HasBinaryPayload() bool  { return true }

func (c *Binary) order() binary.ByteOrder {
	if c.web {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (c *Binary) valueWidth() int {
	if c.wireType == wireInt32 {
		return 4
	}
	return 8
}

func (c *Binary) recordLen(n int) int {
	return headerSize + n*c.valueWidth()
}

func (c *Binary) Print(buf []byte, samples []*sample.Sample) (int, error) {
	ord := c.order()
	off := 0
	for _, smp := range samples {
		n := smp.Length
		need := c.recordLen(n)
		if off+need > len(buf) {
			break
		}

		header := protocolVersion<<28 | c.wireType<<26 | uint32(n)&0xFFFF
		ord.PutUint32(buf[off:], header)
		ord.PutUint32(buf[off+4:], uint32(smp.Sequence))
		ord.PutUint32(buf[off+8:], uint32(smp.TsOrigin.Unix()))
		ord.PutUint32(buf[off+12:], uint32(smp.TsOrigin.Nanosecond()))
		off += headerSize

		for i := 0; i < n; i++ {
			sigType := signal.TypeFloat
			if i < len(smp.Signals) {
				sigType = smp.Signals[i].Type
			}
			if err := c.putValue(ord, buf[off:], sigType, smp.Data[i]); err != nil {
				return off, err
			}
			off += c.valueWidth()
		}
	}
	return off, nil
}

func (c *Binary) putValue(ord binary.ByteOrder, buf []byte, sigType signal.Type, v signal.Value) error {
	if c.wireType == wireInt32 {
		cv, err := signal.Cast(sigType, signal.TypeInteger, v)
		if err != nil {
			return err
		}
		ord.PutUint32(buf, uint32(int32(cv.I)))
		return nil
	}
	cv, err := signal.Cast(sigType, signal.TypeFloat, v)
	if err != nil {
		return err
	}
	ord.PutUint64(buf, mathFloat64bits(cv.F))
	return nil
}

func (c *Binary) getValue(ord binary.ByteOrder, buf []byte, sigType signal.Type) (signal.Value, error) {
	if c.wireType == wireInt32 {
		i := int32(ord.Uint32(buf))
		return signal.Cast(signal.TypeInteger, sigType, signal.Integer(int64(i)))
	}
	bits := ord.Uint64(buf)
	f := mathFloat64frombits(bits)
	return signal.Cast(signal.TypeFloat, sigType, signal.Float(f))
}

func (c *Binary) Scan(buf []byte, out []*sample.Sample) (int, int, error) {
	ord := c.order()
	off := 0
	i := 0
	for i < len(out) {
		if off == len(buf) {
			break
		}
		if off+headerSize > len(buf) {
			break
		}
		header := ord.Uint32(buf[off:])
		version := header >> 28
		wtype := (header >> 26) & 0x3
		length := int(header & 0xFFFF)

		if version != protocolVersion {
			return off, i, &WireError{Reason: "unsupported protocol version"}
		}
		if wtype != c.wireType {
			return off, i, &WireError{Reason: "wire value-type mismatch"}
		}

		need := headerSize + length*c.valueWidth()
		if off+need > len(buf) {
			break
		}

		smp := out[i]
		smp.Sequence = uint64(ord.Uint32(buf[off+4:]))
		sec := int64(int32(ord.Uint32(buf[off+8:])))
		nsec := int64(int32(ord.Uint32(buf[off+12:])))
		smp.TsOrigin = timeFromUnix(sec, nsec)
		smp.Flags = sample.HasSequence | sample.HasTsOrigin | sample.HasData
		smp.Signals = c.signals
		n := length
		if n > smp.Capacity {
			n = smp.Capacity
		}
		smp.Length = n

		valOff := off + headerSize
		for j := 0; j < n; j++ {
			sigType := signal.TypeFloat
			if j < len(c.signals) {
				sigType = c.signals[j].Type
			}
			v, err := c.getValue(ord, buf[valOff:], sigType)
			if err != nil {
				return off, i, err
			}
			smp.Data[j] = v
			valOff += c.valueWidth()
		}

		off += need
		i++
	}
	return off, i, nil
}
