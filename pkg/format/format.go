// Package format implements the codec surface of spec §4.4: encoding and
// decoding arrays of Samples against a fixed, configured Signal list.
//
// The source VILLASnode sketches two incompatible Format shapes — a
// byte-oriented scan/print and a FILE*-oriented variant. Per spec §9's
// Open Questions, the byte-oriented API is canonical here; nothing in
// this package performs its own buffered I/O.
package format

import (
	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
)

// FieldMask selects which optional Sample fields a codec includes on
// Print and expects (if present) on Scan.
type FieldMask uint8

const (
	FieldSequence FieldMask = 1 << iota
	FieldTsOrigin
	FieldTsReceived
	FieldOffset
	FieldData
)

func (m FieldMask) Has(bit FieldMask) bool { return m&bit != 0 }

// Codec is the byte-oriented encode/decode surface every format
// implements, operating over a fixed signal list (spec §4.4).
type Codec interface {
	// Print encodes as many samples as fit into buf, never truncating a
	// single sample mid-record, and returns the bytes written.
	Print(buf []byte, samples []*sample.Sample) (written int, err error)

	// Scan decodes samples into pre-allocated slots until buffer
	// underflow or a parse error, returning bytes consumed up to the
	// last complete record.
	Scan(buf []byte, out []*sample.Sample) (consumed int, n int, err error)

	// HasBinaryPayload reports whether this format produces
	// non-line-delimited binary output, so the I/O layer does not
	// attempt line-delimited reads (spec §4.4).
	HasBinaryPayload() bool

	// Signals returns the configured signal list this codec encodes
	// against.
	Signals() signal.List
}

// LineCodec is implemented by line-oriented formats (villas.human, CSV,
// JSON-per-line) that additionally expose a header/footer (spec §4.4).
type LineCodec interface {
	Codec
	Header() []byte
	Footer() []byte
}

// ErrShortBuffer describes a buffer that cannot hold even one complete
// record. The codecs in this package do not return it: their Print stops
// before the first record that does not fit and returns the bytes
// written so far (0 if none fit) with a nil error.
type ErrShortBuffer struct{}

func (ErrShortBuffer) Error() string { return "format: buffer too small for one record" }

// WireError wraps a decode failure (checksum/version mismatch, short
// record, type mismatch). Scan returns it together with the bytes
// consumed and the samples decoded before the failure; no codec here
// skips ahead to a framing boundary or keeps an error counter.
type WireError struct {
	Reason string
}

func (e *WireError) Error() string { return "format: wire error: " + e.Reason }
