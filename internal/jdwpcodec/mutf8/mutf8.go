// Package mutf8 implements JDWP's "modified UTF-8" string encoding: ASCII
// bytes pass through unchanged, the NUL code point is encoded as the
// two-byte sequence 0xC0 0x80 instead of a literal zero byte, and code
// points above U+FFFF are encoded as a surrogate pair, each half emitted as
// its own three-byte UTF-8 sequence (six bytes total) rather than the
// four-byte form standard UTF-8 would use.
//
// This is the same shape of transform the teacher's driver/unicode/cesu8
// package implements for SAP HANA's CESU-8 strings (see
// driver/unicode/cesu8/cesu8_test.go for the surrogate-pair encoding this
// mirrors); the two encodings agree everywhere except NUL, which CESU-8
// leaves as a literal zero byte and modified UTF-8 does not.
package mutf8

import (
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// EncodedLen returns the number of bytes Encode will write for s.
func EncodedLen(s string) int {
	n := 0
	for _, r := range s {
		n += runeLen(r)
	}
	return n
}

func runeLen(r rune) int {
	switch {
	case r == 0:
		return 2
	case r < utf8.RuneSelf:
		return 1
	case r <= 0xFFFF:
		return utf8.RuneLen(r)
	default:
		return 6 // surrogate pair, 3 bytes each
	}
}

// Encode appends the modified-UTF-8 encoding of s to buf and returns the
// result.
func Encode(buf []byte, s string) []byte {
	var tmp [4]byte
	for _, r := range s {
		switch {
		case r == 0:
			buf = append(buf, 0xC0, 0x80)
		case r < utf8.RuneSelf:
			buf = append(buf, byte(r))
		case r <= 0xFFFF:
			n := utf8.EncodeRune(tmp[:], r)
			buf = append(buf, tmp[:n]...)
		default:
			// utf8.EncodeRune refuses surrogates, so each half is packed
			// into its three-byte form by hand.
			r1, r2 := utf16.EncodeRune(r)
			for _, h := range [2]rune{r1, r2} {
				buf = append(buf, 0xE0|byte(h>>12), 0x80|byte(h>>6)&0x3F, 0x80|byte(h)&0x3F)
			}
		}
	}
	return buf
}

// Decode converts modified-UTF-8 bytes (as JDWP emits them) to a standard Go
// string. ASCII bytes decode verbatim; the 0xC0 0x80 NUL encoding and
// 6-byte surrogate pairs are unpacked to their real code points.
func Decode(b []byte) string {
	out := make([]rune, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			out = append(out, rune(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b) && b[i+1]&0xC0 == 0x80:
			// Decoded by hand: utf8.DecodeRune rejects the overlong 0xC0 0x80 NUL.
			out = append(out, rune(c&0x1F)<<6|rune(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			// Decoded by hand: utf8.DecodeRune rejects encoded surrogate halves.
			r1 := rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
			if utf16.IsSurrogate(r1) && i+5 < len(b) && b[i+3]&0xF0 == 0xE0 {
				r2 := rune(b[i+3]&0x0F)<<12 | rune(b[i+4]&0x3F)<<6 | rune(b[i+5]&0x3F)
				if combined := utf16.DecodeRune(r1, r2); combined != utf8.RuneError {
					out = append(out, combined)
					i += 6
					continue
				}
			}
			out = append(out, r1)
			i += 3
		default:
			r, n := utf8.DecodeRune(b[i:])
			if n <= 0 {
				n = 1
			}
			out = append(out, r)
			i += n
		}
	}
	return string(out)
}

// decoder and encoder implement golang.org/x/text/transform.Transformer so
// jdwpcodec.Decoder/Encoder can carry a tr transform.Transformer field,
// following the teacher's Decoder.tr, and run modified-UTF-8 strings through
// the same transform.Bytes plumbing the teacher's CESU8Bytes uses.
type decoder struct{ transform.NopResetter }

// NewDecodeTransformer returns a transform.Transformer that converts
// modified-UTF-8 bytes to standard UTF-8.
func NewDecodeTransformer() transform.Transformer { return decoder{} }

func (decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	s := Decode(src)
	n := copy(dst, s)
	if n < len(s) {
		return n, 0, transform.ErrShortDst
	}
	return n, len(src), nil
}

type encoder struct{ transform.NopResetter }

// NewEncodeTransformer returns a transform.Transformer that converts
// standard UTF-8 to modified-UTF-8.
func NewEncodeTransformer() transform.Transformer { return encoder{} }

func (encoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	out := Encode(nil, string(src))
	n := copy(dst, out)
	if n < len(out) {
		return n, 0, transform.ErrShortDst
	}
	return n, len(src), nil
}
