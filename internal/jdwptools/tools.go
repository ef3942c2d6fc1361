// Package jdwptools is the tool surface from spec §6: thirteen debug.*
// handlers that translate a tool name and argument map into calls against a
// single process-lifetime jdwpsession.Session. It is dispatcher-agnostic —
// the outer stdio JSON-RPC loop in cmd/jdwp-mcp supplies the tool name and
// decoded argument map and expects back a textual result or error; nothing
// here knows about JSON-RPC framing.
package jdwptools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/navicore/jdwp-mcp/internal/jdwperrors"
	"github.com/navicore/jdwp-mcp/internal/jdwplog"
	"github.com/navicore/jdwp-mcp/internal/jdwpsession"
	"github.com/navicore/jdwp-mcp/internal/jdwptransport"
)

// Dispatcher owns the process's single debug session (spec §4.5 invariant:
// "at most one session at a time") and exposes one method per debug.* tool.
type Dispatcher struct {
	log             *jdwplog.Logger
	dialTimeout     time.Duration
	summaryDefaults jdwpsession.SummarizeOptions

	mu      sync.Mutex
	session *jdwpsession.Session
}

// Options configures a Dispatcher.
type Options struct {
	Log             *jdwplog.Logger
	DialTimeout     time.Duration
	SummaryDefaults jdwpsession.SummarizeOptions
}

// New returns a Dispatcher ready to Handle tool calls; it owns no session
// until the first successful debug.attach.
func New(opts Options) *Dispatcher {
	if opts.Log == nil {
		opts.Log = jdwplog.Nop()
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 10 * time.Second
	}
	return &Dispatcher{
		log:             opts.Log,
		dialTimeout:     opts.DialTimeout,
		summaryDefaults: opts.SummaryDefaults,
	}
}

// Handle implements the dispatcher contract: given a tool name and decoded
// argument map, run the matching debug.* operation and return a result
// value ready for the caller to render as text, or an error.
func (d *Dispatcher) Handle(ctx context.Context, tool string, args map[string]any) (any, error) {
	switch tool {
	case "debug.attach":
		return d.attach(ctx, args)
	case "debug.set_breakpoint":
		return d.setBreakpoint(ctx, args)
	case "debug.list_breakpoints":
		return d.listBreakpoints(ctx, args)
	case "debug.clear_breakpoint":
		return d.clearBreakpoint(ctx, args)
	case "debug.continue":
		return d.continueExec(ctx, args)
	case "debug.pause":
		return d.pause(ctx, args)
	case "debug.step_over":
		return d.step(ctx, args, stepOver)
	case "debug.step_into":
		return d.step(ctx, args, stepInto)
	case "debug.step_out":
		return d.step(ctx, args, stepOut)
	case "debug.get_stack":
		return d.getStack(ctx, args)
	case "debug.evaluate":
		return d.evaluate(ctx, args)
	case "debug.list_threads":
		return d.listThreads(ctx, args)
	case "debug.disconnect":
		return d.disconnect(ctx, args)
	default:
		return nil, &jdwperrors.NotFound{Kind: "tool", ID: tool}
	}
}

func (d *Dispatcher) activeSession() (*jdwpsession.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil, &jdwperrors.ResolutionError{Msg: "no active debug session; call debug.attach first"}
	}
	return d.session, nil
}

// --- debug.attach ---

type attachResult struct {
	SessionID  string `json:"session_id"`
	JVMVersion string `json:"jvm_version"`
	IDSizes    string `json:"id_sizes"`
}

func (d *Dispatcher) attach(ctx context.Context, args map[string]any) (any, error) {
	host, err := stringArg(args, "host")
	if err != nil {
		return nil, err
	}
	port, err := uint16Arg(args, "port")
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.session != nil && d.session.Broken() == nil {
		d.mu.Unlock()
		return nil, &jdwperrors.AlreadyAttached{}
	}
	d.mu.Unlock()

	sess, err := jdwpsession.Attach(ctx, host, port, jdwpsession.Options{
		Dialer:          jdwptransport.DefaultDialer,
		DialTimeout:     d.dialTimeout,
		Log:             d.log,
		SummaryDefaults: d.summaryDefaults,
	})
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.session = sess
	d.mu.Unlock()

	return attachResult{
		SessionID:  sess.ID,
		JVMVersion: sess.JVMVersion,
		IDSizes: fmt.Sprintf("field=%d method=%d object=%d refType=%d frame=%d",
			sess.IDSizesInfo.FieldIDSize, sess.IDSizesInfo.MethodIDSize, sess.IDSizesInfo.ObjectIDSize,
			sess.IDSizesInfo.ReferenceTypeIDSize, sess.IDSizesInfo.FrameIDSize),
	}, nil
}

// --- debug.set_breakpoint ---

type setBreakpointResult struct {
	BreakpointID string `json:"breakpoint_id"`
	Status       string `json:"status"`
	RequestID    uint32 `json:"request_id,omitempty"`
}

func (d *Dispatcher) setBreakpoint(ctx context.Context, args map[string]any) (any, error) {
	sess, err := d.activeSession()
	if err != nil {
		return nil, err
	}
	class, err := stringArg(args, "class_pattern")
	if err != nil {
		return nil, err
	}
	line, err := uint32Arg(args, "line")
	if err != nil {
		return nil, err
	}

	rec, err := sess.SetBreakpoint(ctx, class, line)
	if err != nil {
		return nil, err
	}

	return setBreakpointResult{
		BreakpointID: rec.SymbolicID,
		Status:       rec.State.String(),
		RequestID:    rec.RequestID,
	}, nil
}

// --- debug.list_breakpoints ---

type breakpointView struct {
	ID      string `json:"id"`
	Class   string `json:"class"`
	Line    uint32 `json:"line"`
	Status  string `json:"status"`
	LastHit string `json:"last_hit,omitempty"`
}

func (d *Dispatcher) listBreakpoints(ctx context.Context, args map[string]any) (any, error) {
	sess, err := d.activeSession()
	if err != nil {
		return nil, err
	}
	recs := sess.ListBreakpoints()
	out := make([]breakpointView, 0, len(recs))
	for _, r := range recs {
		v := breakpointView{ID: r.SymbolicID, Class: r.Class, Line: r.Line, Status: r.State.String()}
		if r.ResolutionErr != "" {
			v.Status = "failed: " + r.ResolutionErr
		}
		if r.LastHit != nil {
			v.LastHit = formatThreadID(r.LastHit.ThreadID)
		}
		out = append(out, v)
	}
	return out, nil
}

// --- debug.clear_breakpoint ---

func (d *Dispatcher) clearBreakpoint(ctx context.Context, args map[string]any) (any, error) {
	sess, err := d.activeSession()
	if err != nil {
		return nil, err
	}
	id, err := stringArg(args, "breakpoint_id")
	if err != nil {
		return nil, err
	}
	cleared, err := sess.ClearBreakpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"cleared": cleared}, nil
}

// --- debug.continue / debug.pause ---

type okResult struct {
	OK bool `json:"ok"`
}

func (d *Dispatcher) continueExec(ctx context.Context, args map[string]any) (any, error) {
	sess, err := d.activeSession()
	if err != nil {
		return nil, err
	}
	if err := sess.Continue(ctx); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (d *Dispatcher) pause(ctx context.Context, args map[string]any) (any, error) {
	sess, err := d.activeSession()
	if err != nil {
		return nil, err
	}
	if err := sess.Pause(ctx); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

// --- debug.step_{over,into,out} ---

type stepKind int

const (
	stepOver stepKind = iota
	stepInto
	stepOut
)

func (d *Dispatcher) step(ctx context.Context, args map[string]any, kind stepKind) (any, error) {
	sess, err := d.activeSession()
	if err != nil {
		return nil, err
	}
	threadID, err := optionalThreadIDArg(args, "thread_id")
	if err != nil {
		return nil, err
	}

	switch kind {
	case stepOver:
		err = sess.StepOver(ctx, threadID)
	case stepInto:
		err = sess.StepInto(ctx, threadID)
	case stepOut:
		err = sess.StepOut(ctx, threadID)
	}
	if err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

// --- debug.get_stack ---

type frameView struct {
	FrameID string    `json:"frame_id"`
	Method  string    `json:"method"`
	Line    int32     `json:"line"`
	Vars    []varView `json:"vars"`
}

type varView struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (d *Dispatcher) getStack(ctx context.Context, args map[string]any) (any, error) {
	sess, err := d.activeSession()
	if err != nil {
		return nil, err
	}
	threadID, err := optionalThreadIDArg(args, "thread_id")
	if err != nil {
		return nil, err
	}

	frames, err := sess.GetStack(ctx, threadID)
	if err != nil {
		return nil, err
	}

	out := make([]frameView, 0, len(frames))
	for _, f := range frames {
		fv := frameView{FrameID: fmt.Sprintf("0x%x", f.FrameID), Method: f.Method, Line: f.Line}
		for _, v := range f.Vars {
			fv.Vars = append(fv.Vars, varView{Name: v.Name, Type: v.Signature, Value: v.Value.Text})
		}
		out = append(out, fv)
	}
	return out, nil
}

// --- debug.evaluate ---

func (d *Dispatcher) evaluate(ctx context.Context, args map[string]any) (any, error) {
	sess, err := d.activeSession()
	if err != nil {
		return nil, err
	}
	expr, err := stringArg(args, "expression")
	if err != nil {
		return nil, err
	}
	threadID, err := optionalThreadIDArg(args, "thread_id")
	if err != nil {
		return nil, err
	}
	frameIdx, _ := uint32Arg(args, "frame")

	if threadID == 0 {
		t, ok := sess.LastEventThread()
		if !ok {
			return nil, &jdwperrors.ResolutionError{Msg: "no thread specified and no prior breakpoint/step hit to default to"}
		}
		threadID = t
	}

	frames, err := sess.GetStack(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if int(frameIdx) >= len(frames) {
		return nil, &jdwperrors.NotFound{Kind: "frame", ID: fmt.Sprintf("%d", frameIdx)}
	}

	sum, err := sess.Evaluate(ctx, threadID, frames[frameIdx].FrameID, expr)
	if err != nil {
		return nil, err
	}
	return sum.Text, nil
}

// --- debug.list_threads ---

type threadView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Suspended bool   `json:"suspended"`
}

func (d *Dispatcher) listThreads(ctx context.Context, args map[string]any) (any, error) {
	sess, err := d.activeSession()
	if err != nil {
		return nil, err
	}
	threads, err := sess.ListThreads(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]threadView, 0, len(threads))
	for _, t := range threads {
		out = append(out, threadView{ID: formatThreadID(t.ID), Name: t.Name, Status: t.Status, Suspended: t.Suspended})
	}
	return out, nil
}

// --- debug.disconnect ---

func (d *Dispatcher) disconnect(ctx context.Context, args map[string]any) (any, error) {
	d.mu.Lock()
	sess := d.session
	d.mu.Unlock()
	if sess == nil {
		return okResult{OK: true}, nil
	}
	err := sess.Disconnect(ctx)

	d.mu.Lock()
	d.session = nil
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

// --- argument helpers ---

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", &jdwperrors.ResolutionError{Msg: "missing required argument " + key}
	}
	s, ok := v.(string)
	if !ok {
		return "", &jdwperrors.ResolutionError{Msg: key + " must be a string"}
	}
	return s, nil
}

func uint16Arg(args map[string]any, key string) (uint16, error) {
	n, err := numberArg(args, key)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

func uint32Arg(args map[string]any, key string) (uint32, error) {
	n, err := numberArg(args, key)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func numberArg(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok {
		return 0, &jdwperrors.ResolutionError{Msg: "missing required argument " + key}
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, &jdwperrors.ResolutionError{Msg: key + " is not a number"}
		}
		return parsed, nil
	default:
		return 0, &jdwperrors.ResolutionError{Msg: key + " is not a number"}
	}
}

// optionalThreadIDArg accepts either a th_<hex> string (as minted by
// formatThreadID) or a bare number, returning 0 (meaning "default to the
// last event's thread") when the argument is absent.
func optionalThreadIDArg(args map[string]any, key string) (uint64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return 0, nil
		}
		return parseThreadID(t)
	case float64:
		return uint64(t), nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	default:
		return 0, &jdwperrors.ResolutionError{Msg: key + " must be a string or number"}
	}
}

func formatThreadID(id uint64) string {
	return fmt.Sprintf("th_%x", id)
}

func parseThreadID(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "th_")
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, &jdwperrors.NotFound{Kind: "thread", ID: s}
	}
	return n, nil
}
