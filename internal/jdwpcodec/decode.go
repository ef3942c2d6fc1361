package jdwpcodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/transform"

	"github.com/navicore/jdwp-mcp/internal/jdwpcodec/mutf8"
)

// Decoder decodes JDWP primitive types from an in-memory payload buffer,
// tracking a sticky error exactly the way the teacher's
// driver/internal/protocol/encoding.Decoder does: once a read runs past the
// end of the buffer every subsequent read becomes a no-op returning the zero
// value, and the caller checks Error() once at the end instead of after
// every field.
type Decoder struct {
	b   []byte
	off int
	err error

	// tr is the modified-UTF-8-to-UTF-8 transform.Transformer String runs
	// wire bytes through, the way the teacher's Decoder.CESU8Bytes runs its
	// scratch buffer through d.tr via transform.Bytes.
	tr transform.Transformer
}

// NewDecoder wraps a fully-read payload buffer for decoding.
func NewDecoder(b []byte) *Decoder { return &Decoder{b: b, tr: mutf8.NewDecodeTransformer()} }

// Error returns the first short-read error encountered, if any.
func (d *Decoder) Error() error { return d.err }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.b) - d.off }

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.b) {
		d.err = fmt.Errorf("jdwpcodec: short read: need %d bytes, have %d", n, len(d.b)-d.off)
		return nil
	}
	p := d.b[d.off : d.off+n]
	d.off += n
	return p
}

// Byte reads one byte.
func (d *Decoder) Byte() byte {
	p := d.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

// Bool reads a JDWP boolean.
func (d *Decoder) Bool() bool { return d.Byte() != 0 }

// Int8 reads a signed byte.
func (d *Decoder) Int8() int8 { return int8(d.Byte()) }

// Int16 reads a big-endian int16.
func (d *Decoder) Int16() int16 { return int16(d.Uint16()) }

// Uint16 reads a big-endian uint16.
func (d *Decoder) Uint16() uint16 {
	p := d.take(2)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint16(p)
}

// Int32 reads a big-endian int32.
func (d *Decoder) Int32() int32 { return int32(d.Uint32()) }

// Uint32 reads a big-endian uint32.
func (d *Decoder) Uint32() uint32 {
	p := d.take(4)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint32(p)
}

// Int64 reads a big-endian int64.
func (d *Decoder) Int64() int64 { return int64(d.Uint64()) }

// Uint64 reads a big-endian uint64.
func (d *Decoder) Uint64() uint64 {
	p := d.take(8)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint64(p)
}

// Float32 reads a big-endian IEEE-754 float32.
func (d *Decoder) Float32() float32 { return math.Float32frombits(d.Uint32()) }

// Float64 reads a big-endian IEEE-754 float64.
func (d *Decoder) Float64() float64 { return math.Float64frombits(d.Uint64()) }

// RawBytes reads n bytes verbatim.
func (d *Decoder) RawBytes(n int) []byte {
	p := d.take(n)
	if p == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, p)
	return out
}

// Skip discards n bytes.
func (d *Decoder) Skip(n int) { d.take(n) }

// String reads a JDWP string: a big-endian u32 byte length followed by
// modified-UTF-8 bytes, decoded to a standard Go string (spec §4.2).
func (d *Decoder) String() string {
	n := d.Uint32()
	p := d.take(int(n))
	if p == nil {
		return ""
	}
	out, _, err := transform.Bytes(d.tr, p)
	if err != nil {
		// The transformer never actually errors (Decode has no failure
		// mode), but fall back to the direct scanner rather than drop the
		// field if that ever changes.
		return mutf8.Decode(p)
	}
	return string(out)
}

// ID reads an identifier of width size bytes (4 or 8 in practice, as
// reported by IdSizes) and zero-extends it to uint64.
func (d *Decoder) ID(size int) uint64 {
	p := d.take(size)
	if p == nil {
		return 0
	}
	var v uint64
	for _, b := range p {
		v = v<<8 | uint64(b)
	}
	return v
}
