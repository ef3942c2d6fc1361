package jdwpsession

import (
	"context"
	"strings"

	"github.com/navicore/jdwp-mcp/internal/jdwpcmd"
	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/navicore/jdwp-mcp/internal/jdwperrors"
)

// Evaluate implements debug.evaluate (spec §4.5 "Evaluate"): a dotted field
// path rooted at a local variable or "this" in the given frame. Method
// invocation is an explicit non-goal (spec §1 Non-goals, DESIGN.md open
// question) and is always refused.
func (s *Session) Evaluate(ctx context.Context, threadID, frameID uint64, expr string) (Summary, error) {
	parts := strings.Split(expr, ".")
	if len(parts) == 0 || parts[0] == "" {
		return Summary{}, &jdwperrors.ResolutionError{Msg: "empty expression"}
	}
	if strings.ContainsAny(expr, "()") {
		return Summary{}, &jdwperrors.Unsupported{Msg: "method invocation is not supported by evaluate"}
	}

	v, err := s.resolveRoot(ctx, threadID, frameID, parts[0])
	if err != nil {
		return Summary{}, err
	}

	for _, field := range parts[1:] {
		v, err = s.resolveField(ctx, v, field)
		if err != nil {
			return Summary{}, err
		}
	}

	return s.Summarize(ctx, v)
}

// resolveRoot finds the named local variable (or "this") in the frame whose
// location is valid at the frame's current pc, and fetches its value.
func (s *Session) resolveRoot(ctx context.Context, threadID, frameID uint64, name string) (jdwpcodec.Value, error) {
	frames, err := s.cmd.Frames(ctx, threadID, 0, -1)
	if err != nil {
		return jdwpcodec.Value{}, err
	}
	var frame *jdwpcmd.FrameInfo
	for i := range frames {
		if frames[i].FrameID == frameID {
			frame = &frames[i]
			break
		}
	}
	if frame == nil {
		return jdwpcodec.Value{}, &jdwperrors.NotFound{Kind: "frame", ID: name}
	}

	methods, err := s.types.methods(ctx, s.cmd, frame.Location.ClassID)
	if err != nil {
		return jdwpcodec.Value{}, err
	}
	var methodID uint64
	found := false
	for _, m := range methods {
		if m.MethodID == frame.Location.MethodID {
			methodID = m.MethodID
			found = true
			break
		}
	}
	if !found {
		return jdwpcodec.Value{}, &jdwperrors.ResolutionError{Msg: "frame's method not found on its declaring class"}
	}

	vt, err := s.types.variableTable(ctx, s.cmd, frame.Location.ClassID, methodID)
	if err != nil {
		return jdwpcodec.Value{}, err
	}

	for _, slot := range vt.Slots {
		if slot.Name != name {
			continue
		}
		if !slot.Contains(frame.Location.Index) {
			continue
		}
		vals, err := s.cmd.StackFrameGetValues(ctx, threadID, frameID, []jdwpcmd.SlotRequest{{Slot: slot.Slot, Tag: byte(signatureTag(slot.Signature))}})
		if err != nil {
			return jdwpcodec.Value{}, err
		}
		if len(vals) == 0 {
			return jdwpcodec.Value{}, &jdwperrors.ResolutionError{Msg: "JVM returned no value for slot"}
		}
		return vals[0], nil
	}

	return jdwpcodec.Value{}, &jdwperrors.NotFound{Kind: "variable", ID: name}
}

// resolveField dereferences v (must be an object reference) and returns its
// named field's value. The field is looked up by name among the classes
// findDeclaringClassAndField searches, not by v's runtime class or the
// previous field's declared signature.
func (s *Session) resolveField(ctx context.Context, v jdwpcodec.Value, name string) (jdwpcodec.Value, error) {
	if v.Tag != jdwpcodec.TagObject && v.Tag != jdwpcodec.TagThread && v.Tag != jdwpcodec.TagThreadGroup &&
		v.Tag != jdwpcodec.TagClassLoader && v.Tag != jdwpcodec.TagClassObject {
		return jdwpcodec.Value{}, &jdwperrors.Unsupported{Msg: "cannot take a field of a non-object value"}
	}
	if v.Object == 0 {
		return jdwpcodec.Value{}, &jdwperrors.ResolutionError{Msg: "null reference"}
	}

	classID, fieldID, ok := s.findDeclaringClassAndField(ctx, v, name)
	if !ok {
		return jdwpcodec.Value{}, &jdwperrors.NotFound{Kind: "field", ID: name}
	}
	_ = classID

	vals, err := s.cmd.GetValues(ctx, v.Object, []jdwpcmd.FieldRequest{{FieldID: fieldID}})
	if err != nil {
		return jdwpcodec.Value{}, err
	}
	if len(vals) == 0 {
		return jdwpcodec.Value{}, &jdwperrors.ResolutionError{Msg: "JVM returned no value for field"}
	}
	return vals[0], nil
}

// findDeclaringClassAndField is a best-effort walk of every cached ref type
// looking for one declaring a field named name. Without an
// ObjectReference.ReferenceType lookup wired, evaluate cannot learn an
// object's exact runtime class; it instead searches the classes of the
// session's resolved breakpoints, and no others.
func (s *Session) findDeclaringClassAndField(ctx context.Context, v jdwpcodec.Value, name string) (uint64, uint64, bool) {
	s.mu.Lock()
	candidates := make([]uint64, 0, len(s.breakpoints))
	seen := make(map[uint64]bool)
	for _, rec := range s.breakpoints {
		if rec.State == StateResolved && !seen[rec.ClassID] {
			seen[rec.ClassID] = true
			candidates = append(candidates, rec.ClassID)
		}
	}
	s.mu.Unlock()

	for _, classID := range candidates {
		fields, err := s.types.fields(ctx, s.cmd, classID)
		if err != nil {
			continue
		}
		for _, f := range fields {
			if f.Name == name {
				return classID, f.FieldID, true
			}
		}
	}
	return 0, 0, false
}

func signatureTag(sig string) jdwpcodec.ValueTag {
	if sig == "" {
		return jdwpcodec.TagObject
	}
	switch sig[0] {
	case 'Z':
		return jdwpcodec.TagBoolean
	case 'B':
		return jdwpcodec.TagByte
	case 'C':
		return jdwpcodec.TagChar
	case 'S':
		return jdwpcodec.TagShort
	case 'I':
		return jdwpcodec.TagInt
	case 'J':
		return jdwpcodec.TagLong
	case 'F':
		return jdwpcodec.TagFloat
	case 'D':
		return jdwpcodec.TagDouble
	case '[':
		return jdwpcodec.TagArray
	default:
		if sig == "Ljava/lang/String;" {
			return jdwpcodec.TagString
		}
		return jdwpcodec.TagObject
	}
}
