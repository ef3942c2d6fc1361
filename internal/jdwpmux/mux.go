// Package jdwpmux implements the request/reply/event multiplexer that lets
// many outstanding JDWP commands and asynchronous JVM events share one TCP
// connection (spec §4.3). It is the JDWP analogue of the teacher's
// protocolReader/protocolWriter split in driver/internal/protocol/protocol.go:
// one reader task owns the read half and demultiplexes; writers serialise
// behind a mutex so packets never interleave on the wire.
package jdwpmux

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/navicore/jdwp-mcp/internal/jdwperrors"
	"github.com/navicore/jdwp-mcp/internal/jdwplog"
	"github.com/navicore/jdwp-mcp/internal/jdwptransport"
)

// EventSink receives decoded composite-event packets in wire order. Calls
// are made from the single reader goroutine, so a sink never observes
// overlapping invocations (spec §5: "event-sink callbacks ... run
// sequentially and never observe partial state updates").
type EventSink func(suspendPolicy byte, raw []byte)

type waiter struct {
	reply chan replyResult
}

type replyResult struct {
	payload   []byte
	errorCode uint16
	err       error
}

// Mux is the single multiplexer instance for one JDWP session. It is
// created already attached to a live Transport and starts its reader
// goroutine immediately; there is no separate Start call, mirroring the
// teacher's Session wiring its reader at construction time.
type Mux struct {
	tr  *jdwptransport.Transport
	log *jdwplog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint32]*waiter
	broken  error

	nextID atomic.Uint32

	sink EventSink

	doneCh chan struct{}
}

// New starts the reader goroutine over tr and returns a ready Mux. sink is
// invoked for every composite-event packet; it must not block for long, as
// it runs inline on the reader goroutine.
func New(tr *jdwptransport.Transport, log *jdwplog.Logger, sink EventSink) *Mux {
	m := &Mux{
		tr:      tr,
		log:     log,
		pending: make(map[uint32]*waiter),
		sink:    sink,
		doneCh:  make(chan struct{}),
	}
	go m.readLoop()
	return m
}

// NextID allocates the next monotonic request id. IDs are assigned by the
// side that originates a command and are never reused within a session
// (spec §3, §4.3).
func (m *Mux) NextID() uint32 { return m.nextID.Add(1) }

// Send writes a framed command packet and blocks until its reply arrives,
// the session breaks, or ctx is cancelled. On cancellation the waiter stays
// registered so the eventual reply is drained and dropped by the reader
// (spec §4.3 "Cancellation").
func (m *Mux) Send(ctx context.Context, id uint32, commandSet, command byte, payload []byte) ([]byte, uint16, error) {
	w := &waiter{reply: make(chan replyResult, 1)}

	m.mu.Lock()
	if m.broken != nil {
		err := m.broken
		m.mu.Unlock()
		return nil, 0, &jdwperrors.Disconnected{Reason: err.Error()}
	}
	// Registered before the write completes so a reply racing the write
	// cannot be lost (spec §4.3).
	m.pending[id] = w
	m.mu.Unlock()

	frame := jdwpcodec.EncodeCommand(id, commandSet, command, payload)

	m.writeMu.Lock()
	err := m.tr.WriteAll(frame)
	m.writeMu.Unlock()
	if err != nil {
		m.fail(err)
		return nil, 0, err
	}
	m.log.Packet(ctx, jdwplog.DirOut, "command", "id", id, "set", commandSet, "cmd", command)

	select {
	case r := <-w.reply:
		if r.err != nil {
			return nil, 0, r.err
		}
		return r.payload, r.errorCode, nil
	case <-ctx.Done():
		return nil, 0, &jdwperrors.Timeout{Op: "waiting for reply"}
	case <-m.doneCh:
		m.mu.Lock()
		err := m.broken
		m.mu.Unlock()
		return nil, 0, &jdwperrors.Disconnected{Reason: err.Error()}
	}
}

// readLoop is the single reader task: it never suspends on anything but the
// socket (spec §5).
func (m *Mux) readLoop() {
	for {
		lenBuf, err := m.tr.ReadExact(4)
		if err != nil {
			m.fail(err)
			return
		}
		length, err := jdwpcodec.DecodeHeader4(lenBuf)
		if err != nil {
			m.fail(err)
			return
		}
		rest, err := m.tr.ReadExact(int(length) - 4)
		if err != nil {
			m.fail(err)
			return
		}
		pkt, err := jdwpcodec.DecodeRest(length, rest)
		if err != nil {
			m.fail(err)
			return
		}
		m.dispatch(pkt)
	}
}

func (m *Mux) dispatch(pkt *jdwpcodec.Packet) {
	if pkt.IsEvent() {
		m.log.Packet(context.Background(), jdwplog.DirEvent, "composite-event")
		if len(pkt.Payload) == 0 {
			// A composite-event command always carries at least the
			// suspendPolicy byte (spec §4.4); a zero-length one is malformed.
			// Drop it rather than index Payload[0] and panic the reader
			// goroutine (spec §7 "no panics").
			m.log.Warn("jdwpmux: dropping empty composite-event payload")
			return
		}
		if m.sink != nil {
			m.sink(pkt.Payload[0], pkt.Payload)
		}
		return
	}
	if !pkt.IsReply() {
		// A command packet that is not the composite event is not part of
		// this engine's scope (spec §4.4 enumerates every command we issue;
		// nothing besides events arrives unsolicited). Drop it rather than
		// treating it as fatal - a future JDWP extension adding new
		// server-initiated commands should not break existing sessions.
		m.log.Warn("jdwpmux: dropping unexpected unsolicited command packet", "set", pkt.CommandSet, "cmd", pkt.Command)
		return
	}

	m.mu.Lock()
	w, ok := m.pending[pkt.ID]
	if ok {
		delete(m.pending, pkt.ID)
	}
	m.mu.Unlock()

	if !ok {
		// A reply with no matching waiter is a protocol violation: spec §3
		// invariant "Packet IDs in flight are unique" and §4.3 "A missing id
		// is a protocol violation".
		m.fail(&jdwperrors.ProtocolError{Msg: "reply for unknown request id"})
		return
	}
	m.log.Packet(context.Background(), jdwplog.DirIn, "reply", "id", pkt.ID, "errorCode", pkt.ErrorCode)
	w.reply <- replyResult{payload: pkt.Payload, errorCode: pkt.ErrorCode}
}

// fail transitions the session to Broken and fails every outstanding
// waiter, per spec §5: "If the socket EOFs or returns a framing error the
// session transitions to Broken, fails every pending waiter with
// Disconnected, and no new commands are accepted."
func (m *Mux) fail(err error) {
	m.mu.Lock()
	if m.broken != nil {
		m.mu.Unlock()
		return
	}
	m.broken = err
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, w := range pending {
		w.reply <- replyResult{err: &jdwperrors.Disconnected{Reason: err.Error()}}
	}
	close(m.doneCh)
}

// Broken reports the error that tore the session down, if any.
func (m *Mux) Broken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broken
}

// Close tears the mux down deliberately (e.g. on debug.disconnect), failing
// any outstanding waiters with Disconnected just like a transport failure
// would.
func (m *Mux) Close() {
	m.fail(&jdwperrors.Disconnected{Reason: "disconnect requested"})
	m.tr.Close()
}
