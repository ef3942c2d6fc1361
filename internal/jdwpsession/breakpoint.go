package jdwpsession

import (
	"context"
	"strings"

	"github.com/navicore/jdwp-mcp/internal/jdwpcmd"
	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/navicore/jdwp-mcp/internal/jdwperrors"
)

// BreakpointState is the BreakpointRecord.state sum type from spec §3.
type BreakpointState int

const (
	StatePending BreakpointState = iota
	StateResolved
	StateCleared
)

func (s BreakpointState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// BreakpointRecord is spec §3's BreakpointRecord.
type BreakpointRecord struct {
	SymbolicID string
	Class      string
	Line       uint32

	State BreakpointState

	// Valid when State == StateResolved.
	ClassID   uint64
	MethodID  uint64
	CodeIndex int64
	RequestID uint32

	// ResolutionErr is set when class-prepare-driven resolution fails
	// (spec §4.5: "Failure is recorded on the breakpoint record").
	ResolutionErr string

	LastHit *EventHit
}

// signature turns a dotted-or-slashed class name into the JVM signature
// form "Lcom/x/Y;" (spec §4.5 step 1).
func signature(class string) string {
	return "L" + strings.ReplaceAll(class, ".", "/") + ";"
}

// SetBreakpoint implements debug.set_breakpoint (spec §4.5, §6).
func (s *Session) SetBreakpoint(ctx context.Context, class string, line uint32) (*BreakpointRecord, error) {
	s.mu.Lock()
	id := s.nextBreakpointID()
	rec := &BreakpointRecord{SymbolicID: id, Class: class, Line: line, State: StatePending}
	s.breakpoints[id] = rec
	s.mu.Unlock()

	sig := signature(class)
	refs, err := s.cmd.ClassesBySignature(ctx, sig)
	if err != nil {
		return nil, err
	}

	if len(refs) == 0 {
		if err := s.registerPending(ctx, sig, id); err != nil {
			return nil, err
		}
		return rec, nil
	}

	if err := s.resolveAgainst(ctx, rec, refs); err != nil {
		return nil, err
	}
	return rec, nil
}

// registerPending records interest in class-prepare events for sig,
// registering exactly one ClassPrepare subscription no matter how many
// breakpoints share the same unloaded class (spec §8 testable property).
func (s *Session) registerPending(ctx context.Context, sig, symbolicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingByClass[sig] = append(s.pendingByClass[sig], symbolicID)

	if _, already := s.classPrepareReq[sig]; already {
		return nil
	}

	reqID, err := s.cmd.EventRequestSet(ctx, jdwpcmd.EventClassPrepare, jdwpcmd.SuspendPolicyNone,
		[]jdwpcmd.Modifier{jdwpcmd.ClassMatch{Pattern: classNameFromSignature(sig)}})
	if err != nil {
		return err
	}
	s.classPrepareReq[sig] = reqID
	return nil
}

func classNameFromSignature(sig string) string {
	name := strings.TrimPrefix(sig, "L")
	name = strings.TrimSuffix(name, ";")
	return strings.ReplaceAll(name, "/", ".")
}

// resolveAgainst implements spec §4.5 step 3: for each candidate ref type,
// scan every method's line table for line, tie-breaking on smallest
// codeIndex, and register a Breakpoint event request at that Location.
func (s *Session) resolveAgainst(ctx context.Context, rec *BreakpointRecord, refs []jdwpcmd.RefType) error {
	var best *jdwpcodec.Location
	var bestClassID, bestMethodID uint64

	for _, ref := range refs {
		methods, err := s.types.methods(ctx, s.cmd, ref.TypeID)
		if err != nil {
			return err
		}
		for _, m := range methods {
			lt, err := s.types.lineTable(ctx, s.cmd, ref.TypeID, m.MethodID)
			if err != nil {
				return err
			}
			for _, entry := range lt.Lines {
				if entry.Line != int32(rec.Line) {
					continue
				}
				if entry.CodeIndex == lt.EndIndex {
					// A breakpoint at a line whose codeIndex equals the
					// method's endIndex is refused (spec §8 boundary).
					continue
				}
				if best == nil || entry.CodeIndex < best.Index {
					loc := jdwpcodec.Location{RefTypeTag: ref.RefTypeTag, ClassID: ref.TypeID, MethodID: m.MethodID, Index: entry.CodeIndex}
					best = &loc
					bestClassID, bestMethodID = ref.TypeID, m.MethodID
				}
			}
		}
	}

	if best == nil {
		return &jdwperrors.ResolutionError{Msg: "line not found in any method's line table"}
	}

	reqID, err := s.cmd.EventRequestSet(ctx, jdwpcmd.EventBreakpoint, jdwpcmd.SuspendPolicyEventThread,
		[]jdwpcmd.Modifier{jdwpcmd.LocationOnly{Location: *best}})
	if err != nil {
		return err
	}

	s.mu.Lock()
	rec.State = StateResolved
	rec.ClassID = bestClassID
	rec.MethodID = bestMethodID
	rec.CodeIndex = best.Index
	rec.RequestID = reqID
	s.mu.Unlock()
	return nil
}

// ListBreakpoints implements debug.list_breakpoints: a snapshot copy,
// excluding cleared records (spec §4.5 "List / Clear").
func (s *Session) ListBreakpoints() []BreakpointRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BreakpointRecord, 0, len(s.breakpoints))
	for _, rec := range s.breakpoints {
		if rec.State == StateCleared {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

// ClearBreakpoint implements debug.clear_breakpoint.
func (s *Session) ClearBreakpoint(ctx context.Context, symbolicID string) (bool, error) {
	s.mu.Lock()
	rec, ok := s.breakpoints[symbolicID]
	s.mu.Unlock()
	if !ok {
		return false, &jdwperrors.NotFound{Kind: "breakpoint", ID: symbolicID}
	}

	switch rec.State {
	case StateResolved:
		if err := s.cmd.EventRequestClear(ctx, jdwpcmd.EventBreakpoint, rec.RequestID); err != nil {
			return false, err
		}
	case StatePending:
		s.mu.Lock()
		sig := signature(rec.Class)
		ids := s.pendingByClass[sig]
		for i, id := range ids {
			if id == symbolicID {
				s.pendingByClass[sig] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	rec.State = StateCleared
	s.mu.Unlock()
	return true, nil
}

// handleEvent is the session's jdwpmux.EventSink: it runs on the single
// reader goroutine (spec §5), so hit-tracking never observes partial state.
// Class-prepare resolution is only enqueued here and runs on resolveWorker
// (see onClassPrepare).
func (s *Session) handleEvent(suspendPolicy byte, raw []byte) {
	es, err := jdwpcmd.DecodeEventSet(raw, *s.ids)
	if err != nil {
		s.log.Warn("jdwpsession: dropping malformed event set", "err", err)
		return
	}
	for _, ev := range es.Events {
		switch ev.Kind {
		case jdwpcmd.EventBreakpoint, jdwpcmd.EventSingleStep:
			s.recordHit(ev.RequestID, ev.ThreadID, ev.Location)
		case jdwpcmd.EventClassPrepare:
			s.onClassPrepare(ev.Signature)
		}
	}
}

func (s *Session) recordHit(requestID uint32, threadID uint64, loc jdwpcodec.Location) {
	hit := &EventHit{RequestID: requestID, ThreadID: threadID, Location: loc, Timestamp: s.clock.Now()}

	s.mu.Lock()
	s.lastEvent = hit
	s.suspendedThreads[threadID] = true
	for _, rec := range s.breakpoints {
		if rec.State == StateResolved && rec.RequestID == requestID {
			rec.LastHit = hit
		}
	}
	s.mu.Unlock()
}

// onClassPrepare is invoked inline on the mux reader goroutine (it is
// s.handleEvent's ClassPrepare case, and handleEvent is the jdwpmux.EventSink
// - jdwpmux/mux.go's doc comment requires a sink that "must not block for
// long"). Resolving a breakpoint issues synchronous commands
// (ClassesBySignature, Methods, LineTable, EventRequestSet), each of which
// waits on a reply that only the reader goroutine can deliver; running that
// work here would deadlock the session. So onClassPrepare only enqueues onto
// the resolution queue (spec §2.5) and returns immediately; resolveWorker
// does the actual resolving off that goroutine.
func (s *Session) onClassPrepare(signature string) {
	select {
	case s.resolveQueue <- signature:
	default:
		// Queue momentarily full: hand the send to its own goroutine rather
		// than block the reader waiting for resolveWorker to catch up.
		go func() { s.resolveQueue <- signature }()
	}
}

// processClassPrepare does the actual class-prepare-driven resolution work
// (spec §4.5 "Class-prepare driven resolution"). Runs only on
// resolveWorker's goroutine, so blocking here for a JDWP round trip is safe.
func (s *Session) processClassPrepare(signature string) {
	s.mu.Lock()
	ids := s.pendingByClass[signature]
	delete(s.pendingByClass, signature)
	s.mu.Unlock()
	if len(ids) == 0 {
		return
	}

	ctx := context.Background()
	refs, err := s.cmd.ClassesBySignature(ctx, signature)
	if err != nil || len(refs) == 0 {
		s.failPending(ids, "class-prepare fired but class still not resolvable")
		return
	}

	for _, id := range ids {
		s.mu.Lock()
		rec := s.breakpoints[id]
		s.mu.Unlock()
		if rec == nil || rec.State != StatePending {
			continue
		}
		if err := s.resolveAgainst(ctx, rec, refs); err != nil {
			s.mu.Lock()
			rec.ResolutionErr = err.Error()
			s.mu.Unlock()
		}
	}
}

func (s *Session) failPending(ids []string, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if rec := s.breakpoints[id]; rec != nil {
			rec.ResolutionErr = msg
		}
	}
}

// LastEventThread returns the thread of the most recent breakpoint/step hit,
// used by get_stack when no thread is specified (spec §4.5).
func (s *Session) LastEventThread() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastEvent == nil {
		return 0, false
	}
	return s.lastEvent.ThreadID, true
}
