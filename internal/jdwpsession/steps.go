package jdwpsession

import (
	"context"

	"github.com/navicore/jdwp-mcp/internal/jdwpcmd"
	"github.com/navicore/jdwp-mcp/internal/jdwperrors"
)

// step registers a single-step event request and resumes only threadID
// (spec §4.5 "Step"): "EventRequest.Set(SingleStep) with modifiers
// [Step(thread, size=Line, depth), Count(1)] and suspendPolicy=EventThread,
// then resume the thread. On the next step event the request is auto-
// cleared (because Count=1)."
//
// Per the Open Question resolved in DESIGN.md, stepping on a thread this
// engine does not believe is currently suspended is rejected outright
// rather than implicitly suspending it.
func (s *Session) step(ctx context.Context, threadID uint64, depth byte) error {
	if threadID == 0 {
		t, ok := s.LastEventThread()
		if !ok {
			return &jdwperrors.ResolutionError{Msg: "no thread specified and no prior breakpoint/step hit to default to"}
		}
		threadID = t
	}

	s.mu.Lock()
	suspended := s.suspendedThreads[threadID]
	s.mu.Unlock()
	if !suspended {
		return &jdwperrors.ResolutionError{Msg: "thread is not currently suspended"}
	}

	_, err := s.cmd.EventRequestSet(ctx, jdwpcmd.EventSingleStep, jdwpcmd.SuspendPolicyEventThread,
		[]jdwpcmd.Modifier{jdwpcmd.Step{ThreadID: threadID, Depth: depth}, jdwpcmd.Count{N: 1}})
	if err != nil {
		return err
	}

	if err := s.cmd.ThreadResume(ctx, threadID); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.suspendedThreads, threadID)
	s.mu.Unlock()
	return nil
}

// StepOver implements debug.step_over.
func (s *Session) StepOver(ctx context.Context, threadID uint64) error {
	return s.step(ctx, threadID, jdwpcmd.StepDepthOver)
}

// StepInto implements debug.step_into.
func (s *Session) StepInto(ctx context.Context, threadID uint64) error {
	return s.step(ctx, threadID, jdwpcmd.StepDepthInto)
}

// StepOut implements debug.step_out.
func (s *Session) StepOut(ctx context.Context, threadID uint64) error {
	return s.step(ctx, threadID, jdwpcmd.StepDepthOut)
}
