// Package jdwpsession holds the attach lifecycle, breakpoint registry,
// type/method caches, and summarization policy described in spec §4.5-§4.6.
// It is the JDWP analogue of the teacher's driver/internal/protocol.Session:
// one struct scoped to a single live connection, built once by an
// Attach-equivalent constructor and torn down exactly once.
package jdwpsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/navicore/jdwp-mcp/internal/jdwpcmd"
	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/navicore/jdwp-mcp/internal/jdwperrors"
	"github.com/navicore/jdwp-mcp/internal/jdwplog"
	"github.com/navicore/jdwp-mcp/internal/jdwpmux"
	"github.com/navicore/jdwp-mcp/internal/jdwptransport"
)

// Clock abstracts time.Now so tests can control EventHit timestamps; the
// engine itself always uses realClock.
type Clock interface{ Now() time.Time }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Session is the single per-process debug session (spec §3 invariant: "at
// most one session at a time"). All exported methods are safe for
// concurrent use; the tool surface calls them directly from each tool
// handler without its own locking.
type Session struct {
	ID          string
	JVMVersion  string
	IDSizesInfo jdwpcodec.IdSizes

	log *jdwplog.Logger
	tr  *jdwptransport.Transport
	mux *jdwpmux.Mux
	cmd *jdwpcmd.Client
	ids *jdwpcodec.IdSizes

	clock Clock

	mu sync.Mutex

	types *typeCache

	breakpoints    map[string]*BreakpointRecord
	pendingByClass map[string][]string // signature -> symbolic ids awaiting ClassPrepare
	classPrepareReq map[string]uint32  // signature -> ClassPrepare requestID already registered
	nextBpNum      int

	lastEvent *EventHit

	// suspendedThreads tracks threads this engine knows to be stopped at an
	// EventThread-suspend-policy breakpoint or step hit (spec §4.5 "Step").
	// It is a best-effort view: a bare debug.pause suspends the whole VM
	// without this engine learning which individual threads that affects.
	suspendedThreads map[uint64]bool

	// resolveQueue is the resolution queue named in spec §2.5: ClassPrepare
	// signatures awaiting breakpoint resolution. onClassPrepare (the mux
	// EventSink path, inline on the reader goroutine) only ever enqueues
	// here; resolveWorker is the sole goroutine that dequeues and issues
	// the synchronous commands resolution requires, so those commands never
	// block the reader they'd otherwise deadlock against.
	resolveQueue chan string
	stopResolve  chan struct{}

	summaryDefaults SummarizeOptions
}

// EventHit is the most recent breakpoint/step hit recorded for a request
// (spec §3).
type EventHit struct {
	RequestID uint32
	ThreadID  uint64
	Location  jdwpcodec.Location
	Timestamp time.Time
}

// Options configures Attach.
type Options struct {
	Dialer         jdwptransport.Dialer
	DialTimeout    time.Duration
	Log            *jdwplog.Logger
	SummaryDefaults SummarizeOptions
}

// Attach opens a transport to host:port, performs the handshake, issues
// Version then IDSizes, and starts the multiplexer (spec §4.5 "Attach").
func Attach(ctx context.Context, host string, port uint16, opts Options) (*Session, error) {
	if opts.Dialer == nil {
		opts.Dialer = jdwptransport.DefaultDialer
	}
	if opts.Log == nil {
		opts.Log = jdwplog.Nop()
	}

	tr, err := jdwptransport.Dial(ctx, opts.Dialer, host, port, jdwptransport.DialerOptions{Timeout: opts.DialTimeout})
	if err != nil {
		return nil, err
	}

	ids := jdwpcodec.DefaultIdSizes
	s := &Session{
		ID:              uuid.NewString(),
		log:             opts.Log,
		tr:              tr,
		ids:             &ids,
		clock:           realClock{},
		types:           newTypeCache(),
		breakpoints:      make(map[string]*BreakpointRecord),
		pendingByClass:   make(map[string][]string),
		classPrepareReq:  make(map[string]uint32),
		suspendedThreads: make(map[uint64]bool),
		resolveQueue:     make(chan string, 64),
		stopResolve:      make(chan struct{}),
		summaryDefaults:  opts.SummaryDefaults.orDefault(),
	}
	s.mux = jdwpmux.New(tr, opts.Log, s.handleEvent)
	s.cmd = jdwpcmd.New(s.mux, s.ids)
	go s.resolveWorker()

	ver, err := s.cmd.Version(ctx)
	if err != nil {
		close(s.stopResolve)
		tr.Close()
		return nil, err
	}
	s.JVMVersion = fmt.Sprintf("%s (JDWP %d.%d)", ver.Description, ver.JDWPMajor, ver.JDWPMinor)

	realIDs, err := s.cmd.IDSizes(ctx)
	if err != nil {
		close(s.stopResolve)
		tr.Close()
		return nil, err
	}
	*s.ids = realIDs
	s.IDSizesInfo = realIDs

	return s, nil
}

// Disconnect clears all outstanding breakpoints, closes the transport, and
// tears the multiplexer down; any outstanding waiters complete with
// Disconnected (spec §4.5 "Continue / Pause / Disconnect").
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	err := s.cmd.EventRequestClearAllBreakpoints(ctx)
	s.mux.Close()
	s.mu.Unlock()
	close(s.stopResolve)
	return err
}

// resolveWorker drains resolveQueue off the mux reader goroutine, one
// signature at a time, until stopResolve is closed by Disconnect.
func (s *Session) resolveWorker() {
	for {
		select {
		case sig := <-s.resolveQueue:
			s.processClassPrepare(sig)
		case <-s.stopResolve:
			return
		}
	}
}

// Continue issues VirtualMachine.Resume, resuming every thread.
func (s *Session) Continue(ctx context.Context) error {
	if err := s.cmd.Resume(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.suspendedThreads = make(map[uint64]bool)
	s.mu.Unlock()
	return nil
}

// Pause issues VirtualMachine.Suspend. Per the Open Question resolved in
// DESIGN.md, this always increments the VM-wide suspend counter; repeated
// calls stack, and a matching number of Continue calls would be needed to
// fully resume - this engine does not hide that, it only ever issues one
// Resume per debug.continue call.
func (s *Session) Pause(ctx context.Context) error { return s.cmd.Suspend(ctx) }

// Broken reports the error that tore the session down, if any.
func (s *Session) Broken() error { return s.mux.Broken() }

func (s *Session) nextBreakpointID() string {
	s.nextBpNum++
	return fmt.Sprintf("bp_%d", s.nextBpNum)
}

// invariant panics (raised as InvariantViolation, not a Go panic) on a
// condition the design asserts can never happen, mirroring the teacher's
// driver/internal/assert package.
func invariant(cond bool, msg string) error {
	if !cond {
		return &jdwperrors.InvariantViolation{Msg: msg}
	}
	return nil
}
