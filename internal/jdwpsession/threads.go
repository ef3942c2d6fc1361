package jdwpsession

import (
	"context"

	"github.com/navicore/jdwp-mcp/internal/jdwpcmd"
	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/navicore/jdwp-mcp/internal/jdwperrors"
)

// ThreadSnapshot is one row of debug.list_threads (spec §3, §6). Name and
// Status are left zero-valued: rendering them needs ThreadReference.Name and
// ThreadReference.Status, and §4.4's command table wires neither (see
// DESIGN.md). Suspended is this engine's own best-effort bookkeeping, so it
// costs no extra JDWP round trip.
type ThreadSnapshot struct {
	ID        uint64
	Name      string
	Status    string
	Suspended bool
}

// ListThreads implements debug.list_threads (spec §4.5).
func (s *Session) ListThreads(ctx context.Context) ([]ThreadSnapshot, error) {
	ids, err := s.cmd.AllThreads(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ThreadSnapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, ThreadSnapshot{ID: id, Suspended: s.suspendedThreads[id]})
	}
	return out, nil
}

// VarBinding is one local variable's name, declared signature, and current
// value (spec §3 Frame).
type VarBinding struct {
	Name      string
	Signature string
	Slot      int32
	Value     Summary
}

// Frame is one stack frame: its identity, source location, and the local
// variables valid at its current pc (spec §3).
type Frame struct {
	FrameID  uint64
	Location jdwpcodec.Location
	Method   string
	Line     int32
	Vars     []VarBinding
}

// GetStack implements debug.get_stack (spec §4.5 "Get stack"). threadID of
// zero means "use the thread of the most recent breakpoint/step hit".
func (s *Session) GetStack(ctx context.Context, threadID uint64) ([]Frame, error) {
	if threadID == 0 {
		t, ok := s.LastEventThread()
		if !ok {
			return nil, &jdwperrors.ResolutionError{Msg: "no thread specified and no prior breakpoint/step hit to default to"}
		}
		threadID = t
	}

	frames, err := s.cmd.Frames(ctx, threadID, 0, -1)
	if err != nil {
		return nil, err
	}

	out := make([]Frame, 0, len(frames))
	for _, fi := range frames {
		f := Frame{FrameID: fi.FrameID, Location: fi.Location}

		method, line, err := s.types.methodContaining(ctx, s.cmd, fi.Location.ClassID, fi.Location.MethodID, fi.Location.Index)
		if err == nil {
			f.Method = method.Name
			f.Line = line
		}

		vars, err := s.frameVars(ctx, threadID, fi)
		if err == nil {
			f.Vars = vars
		}

		out = append(out, f)
	}
	return out, nil
}

// frameVars fetches every local variable slot whose validity range contains
// the frame's current pc, then resolves and summarizes each value.
func (s *Session) frameVars(ctx context.Context, threadID uint64, fi jdwpcmd.FrameInfo) ([]VarBinding, error) {
	vt, err := s.types.variableTable(ctx, s.cmd, fi.Location.ClassID, fi.Location.MethodID)
	if err != nil {
		return nil, err
	}

	var live []jdwpcmd.VariableSlot
	for _, slot := range vt.Slots {
		if slot.Contains(fi.Location.Index) {
			live = append(live, slot)
		}
	}
	if len(live) == 0 {
		return nil, nil
	}

	reqs := make([]jdwpcmd.SlotRequest, len(live))
	for i, slot := range live {
		reqs[i] = jdwpcmd.SlotRequest{Slot: slot.Slot, Tag: byte(signatureTag(slot.Signature))}
	}

	vals, err := s.cmd.StackFrameGetValues(ctx, threadID, fi.FrameID, reqs)
	if err != nil {
		return nil, err
	}

	out := make([]VarBinding, 0, len(live))
	for i, slot := range live {
		if i >= len(vals) {
			break
		}
		sum, err := s.Summarize(ctx, vals[i])
		if err != nil {
			return nil, err
		}
		out = append(out, VarBinding{Name: slot.Name, Signature: slot.Signature, Slot: slot.Slot, Value: sum})
	}
	return out, nil
}
