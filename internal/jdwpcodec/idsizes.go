package jdwpcodec

// IdSizes holds the per-JVM byte widths for JDWP's variable-width
// identifier families, negotiated once per session via VirtualMachine.IDSizes
// (command set 1, command 7) and never re-fetched: spec §3 invariant "once
// cached they never change for the session".
//
// The teacher parameterises its own codec by a single runtime "data format
// version" (encoding.Decoder.Dfv/SetDfv) rather than generating one decode
// routine per possible width; IdSizes generalises that same idea to JDWP's
// five independently-sized identifier kinds.
type IdSizes struct {
	FieldIDSize         int
	MethodIDSize        int
	ObjectIDSize        int
	ReferenceTypeIDSize int
	FrameIDSize         int
}

// DefaultIdSizes is used only to decode the very first exchange
// (VirtualMachine.IDSizes itself), which per spec §4.2 "uses a fixed
// skeleton" before any width is known. 64-bit JVMs are near-universal, so 8
// bytes is the practical default; the real reply immediately overwrites it.
var DefaultIdSizes = IdSizes{
	FieldIDSize:         8,
	MethodIDSize:        8,
	ObjectIDSize:        8,
	ReferenceTypeIDSize: 8,
	FrameIDSize:         8,
}
