package jdwpcodec

import "github.com/navicore/jdwp-mcp/internal/jdwperrors"

const headerSize = 11

// flagReply is set in a packet's flags byte when it is a reply rather than a
// command (spec §3, §6 wire notes).
const flagReply = 0x80

// EventCommandSet and EventCommand identify the composite-event packet: a
// command packet (not a reply) carrying JVM-initiated notifications instead
// of a client request (spec §4.3, §6).
const (
	EventCommandSet = 64
	EventCommand    = 100
)

// Packet is a fully framed JDWP message: the eleven-byte header plus its
// payload. Command and reply packets share this shape; Flags distinguishes
// them (spec §3).
type Packet struct {
	ID      uint32
	Flags   byte
	Payload []byte

	// Command packet fields (valid when Flags&flagReply == 0).
	CommandSet byte
	Command    byte

	// Reply packet field (valid when Flags&flagReply != 0).
	ErrorCode uint16
}

// IsReply reports whether this packet is a reply rather than a command.
func (p *Packet) IsReply() bool { return p.Flags&flagReply != 0 }

// IsEvent reports whether this packet is the composite-event command
// (command set 64, command 100).
func (p *Packet) IsEvent() bool {
	return !p.IsReply() && p.CommandSet == EventCommandSet && p.Command == EventCommand
}

// EncodeCommand frames a command packet with the given id, command set/
// command, and already-encoded payload.
func EncodeCommand(id uint32, commandSet, command byte, payload []byte) []byte {
	out := make([]byte, 0, headerSize+len(payload))
	e := NewEncoder()
	e.Uint32(uint32(headerSize + len(payload)))
	e.Uint32(id)
	e.Byte(0x00)
	e.Byte(commandSet)
	e.Byte(command)
	out = append(out, e.Bytes()...)
	out = append(out, payload...)
	return out
}

// EncodeReply frames a reply packet, used only by the (test-only) fake JVM
// in this engine's tests, never by a real JDWP client.
func EncodeReply(id uint32, errorCode uint16, payload []byte) []byte {
	e := NewEncoder()
	e.Uint32(uint32(headerSize + len(payload)))
	e.Uint32(id)
	e.Byte(flagReply)
	e.Uint16(errorCode)
	out := append(e.Bytes(), payload...)
	return out
}

// DecodeHeader4 parses the first four bytes of a packet (its length) so the
// caller knows how many more bytes to read. Spec §4.2: "Decoding reads four
// bytes to learn the length, then the remaining length - 4".
func DecodeHeader4(b []byte) (length uint32, err error) {
	if len(b) < 4 {
		return 0, &jdwperrors.ProtocolError{Msg: "packet shorter than length prefix"}
	}
	d := NewDecoder(b)
	return d.Uint32(), nil
}

// DecodeRest parses the remaining length-11 header fields plus payload,
// given the already-consumed 4-byte length and the rest of the frame.
func DecodeRest(length uint32, rest []byte) (*Packet, error) {
	if len(rest) != int(length)-4 {
		return nil, &jdwperrors.ProtocolError{Msg: "packet length mismatch"}
	}
	if len(rest) < headerSize-4 {
		return nil, &jdwperrors.ProtocolError{Msg: "packet shorter than header"}
	}
	d := NewDecoder(rest)
	p := &Packet{}
	p.ID = d.Uint32()
	p.Flags = d.Byte()
	if p.IsReply() {
		p.ErrorCode = d.Uint16()
	} else {
		p.CommandSet = d.Byte()
		p.Command = d.Byte()
	}
	p.Payload = d.RawBytes(d.Remaining())
	if d.Error() != nil {
		return nil, &jdwperrors.ProtocolError{Msg: "malformed packet: " + d.Error().Error()}
	}
	return p, nil
}

// Value is the tagged union carried by JDWP Value encodings (spec §3). Tag
// identifies which field is meaningful; object-family tags populate Object,
// primitives populate the matching field.
type Value struct {
	Tag ValueTag

	Bool    bool
	Byte    byte
	Char    uint16
	Short   int16
	Int     int32
	Long    int64
	Float   float32
	Double  float64
	Object  uint64 // zero means null for any object-family tag
}

// ValueTag enumerates the one-byte JDWP value tags this engine supports.
type ValueTag byte

// Tag values per the JDWP spec's tag constants.
const (
	TagVoid        ValueTag = 'V'
	TagArray       ValueTag = '['
	TagByte        ValueTag = 'B'
	TagChar        ValueTag = 'C'
	TagObject      ValueTag = 'L'
	TagFloat       ValueTag = 'F'
	TagDouble      ValueTag = 'D'
	TagInt         ValueTag = 'I'
	TagLong        ValueTag = 'J'
	TagShort       ValueTag = 'S'
	TagBoolean     ValueTag = 'Z'
	TagString      ValueTag = 's'
	TagThread      ValueTag = 't'
	TagThreadGroup ValueTag = 'g'
	TagClassLoader ValueTag = 'l'
	TagClassObject ValueTag = 'c'
)

// EncodeValue writes a tagged Value using the object-family width from ids.
func EncodeValue(e *Encoder, v Value, ids IdSizes) {
	e.Byte(byte(v.Tag))
	switch v.Tag {
	case TagBoolean:
		e.Bool(v.Bool)
	case TagByte:
		e.Byte(v.Byte)
	case TagChar:
		e.Uint16(v.Char)
	case TagShort:
		e.Int16(v.Short)
	case TagInt:
		e.Int32(v.Int)
	case TagLong:
		e.Int64(v.Long)
	case TagFloat:
		e.Float32(v.Float)
	case TagDouble:
		e.Float64(v.Double)
	case TagObject, TagString, TagArray, TagThread, TagThreadGroup, TagClassLoader, TagClassObject:
		e.ID(v.Object, ids.ObjectIDSize)
	}
}

// DecodeValue reads a tagged Value using the object-family width from ids.
func DecodeValue(d *Decoder, ids IdSizes) Value {
	tag := ValueTag(d.Byte())
	v := Value{Tag: tag}
	switch tag {
	case TagBoolean:
		v.Bool = d.Bool()
	case TagByte:
		v.Byte = d.Byte()
	case TagChar:
		v.Char = d.Uint16()
	case TagShort:
		v.Short = d.Int16()
	case TagInt:
		v.Int = d.Int32()
	case TagLong:
		v.Long = d.Int64()
	case TagFloat:
		v.Float = d.Float32()
	case TagDouble:
		v.Double = d.Float64()
	case TagObject, TagString, TagArray, TagThread, TagThreadGroup, TagClassLoader, TagClassObject:
		v.Object = d.ID(ids.ObjectIDSize)
	}
	return v
}

// Location identifies a precise point inside JVM code (spec §3, GLOSSARY).
type Location struct {
	RefTypeTag byte
	ClassID    uint64
	MethodID   uint64
	Index      int64
}

// EncodeLocation writes a Location using ids for the class/method id widths.
func EncodeLocation(e *Encoder, loc Location, ids IdSizes) {
	e.Byte(loc.RefTypeTag)
	e.ID(loc.ClassID, ids.ReferenceTypeIDSize)
	e.ID(loc.MethodID, ids.MethodIDSize)
	e.Int64(loc.Index)
}

// DecodeLocation reads a Location using ids for the class/method id widths.
func DecodeLocation(d *Decoder, ids IdSizes) Location {
	var loc Location
	loc.RefTypeTag = d.Byte()
	loc.ClassID = d.ID(ids.ReferenceTypeIDSize)
	loc.MethodID = d.ID(ids.MethodIDSize)
	loc.Index = d.Int64()
	return loc
}
