package jdwpcodec

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/transform"

	"github.com/navicore/jdwp-mcp/internal/jdwpcodec/mutf8"
)

const writeScratchSize = 4096

// Encoder encodes JDWP primitive types onto an in-memory buffer. Unlike the
// teacher's io.Writer-backed Encoder, JDWP commands are always built as one
// complete packet before being handed to the transport (the length prefix
// has to be known up front), so this Encoder grows a []byte directly rather
// than streaming to a writer - the sticky-error convention is kept because
// it is what lets command-layer code write a long sequence of fields without
// checking an error after every one, exactly as the teacher's Encoder does.
type Encoder struct {
	buf []byte
	err error

	// tr is the UTF-8-to-modified-UTF-8 transform.Transformer String runs
	// its argument through before length-prefixing it, mirroring Decoder.tr.
	tr transform.Transformer
}

// NewEncoder returns an Encoder with a pre-sized scratch buffer.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, writeScratchSize), tr: mutf8.NewEncodeTransformer()}
}

// Bytes returns the accumulated buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// Error returns the first error recorded while encoding, if any. Encoders
// never fail writing to an in-memory buffer; Error exists for symmetry with
// Decoder and for future fixed-size-field validation.
func (e *Encoder) Error() error { return e.err }

// Byte appends a single byte.
func (e *Encoder) Byte(b byte) { e.buf = append(e.buf, b) }

// Bool appends a JDWP boolean (one byte, 0 or 1).
func (e *Encoder) Bool(v bool) {
	if v {
		e.Byte(1)
	} else {
		e.Byte(0)
	}
}

// Int8 appends a signed byte.
func (e *Encoder) Int8(v int8) { e.Byte(byte(v)) }

// Int16 appends a big-endian int16.
func (e *Encoder) Int16(v int16) { e.Uint16(uint16(v)) }

// Uint16 appends a big-endian uint16.
func (e *Encoder) Uint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// Int32 appends a big-endian int32.
func (e *Encoder) Int32(v int32) { e.Uint32(uint32(v)) }

// Uint32 appends a big-endian uint32.
func (e *Encoder) Uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// Int64 appends a big-endian int64.
func (e *Encoder) Int64(v int64) { e.Uint64(uint64(v)) }

// Uint64 appends a big-endian uint64.
func (e *Encoder) Uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// Float32 appends a big-endian IEEE-754 float32.
func (e *Encoder) Float32(v float32) { e.Uint32(math.Float32bits(v)) }

// Float64 appends a big-endian IEEE-754 float64.
func (e *Encoder) Float64(v float64) { e.Uint64(math.Float64bits(v)) }

// RawBytes appends p verbatim, unlength-prefixed.
func (e *Encoder) RawBytes(p []byte) { e.buf = append(e.buf, p...) }

// String appends a JDWP string: a big-endian u32 byte length followed by the
// modified-UTF-8 encoding of s (spec §4.2).
func (e *Encoder) String(s string) {
	enc, _, err := transform.Bytes(e.tr, []byte(s))
	if err != nil {
		// The transformer never actually errors (Encode has no failure
		// mode), but fall back to the direct scanner rather than drop the
		// field if that ever changes.
		enc = mutf8.Encode(nil, s)
	}
	e.Uint32(uint32(len(enc)))
	e.buf = append(e.buf, enc...)
}

// ID appends an identifier of width size bytes, zero-extended from v. size
// must be one of the IdSizes-reported widths (4 or 8 in practice).
func (e *Encoder) ID(v uint64, size int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[8-size:]...)
}
