package jdwpsession

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/navicore/jdwp-mcp/internal/jdwpcmd"
	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/navicore/jdwp-mcp/internal/jdwplog"
	"github.com/navicore/jdwp-mcp/internal/jdwpmux"
	"github.com/navicore/jdwp-mcp/internal/jdwptransport"
	"github.com/stretchr/testify/require"
)

type pipeDialer struct{ conn net.Conn }

func (d pipeDialer) DialContext(ctx context.Context, address string, opts jdwptransport.DialerOptions) (net.Conn, error) {
	return d.conn, nil
}

// testJVM is a minimal scriptable JDWP peer used across this package's
// tests, mirroring jdwpmux's own fake-JVM test double.
type testJVM struct {
	conn net.Conn
	ids  jdwpcodec.IdSizes
}

func (j *testJVM) readCommand(t *testing.T) *jdwpcodec.Packet {
	t.Helper()
	lenBuf := make([]byte, 4)
	_, err := io.ReadFull(j.conn, lenBuf)
	require.NoError(t, err)
	length, err := jdwpcodec.DecodeHeader4(lenBuf)
	require.NoError(t, err)
	rest := make([]byte, int(length)-4)
	_, err = io.ReadFull(j.conn, rest)
	require.NoError(t, err)
	pkt, err := jdwpcodec.DecodeRest(length, rest)
	require.NoError(t, err)
	return pkt
}

func (j *testJVM) reply(id uint32, errorCode uint16, payload []byte) {
	j.conn.Write(jdwpcodec.EncodeReply(id, errorCode, payload))
}

// newTestSession builds a Session wired to a fake JVM over net.Pipe, bypassing
// Attach's Version/IDSizes handshake so tests can script exactly the commands
// under test.
func newTestSession(t *testing.T) (*Session, *testJVM) {
	t.Helper()
	client, server := net.Pipe()

	handshakeDone := make(chan struct{})
	go func() {
		buf := make([]byte, len("JDWP-Handshake"))
		server.Read(buf)
		server.Write(buf)
		close(handshakeDone)
	}()

	tr, err := jdwptransport.Dial(context.Background(), pipeDialer{client}, "ignored", 1, jdwptransport.DialerOptions{Timeout: time.Second})
	require.NoError(t, err)
	<-handshakeDone

	ids := jdwpcodec.DefaultIdSizes
	s := &Session{
		log:              jdwplog.Nop(),
		tr:               tr,
		ids:              &ids,
		clock:            realClock{},
		types:            newTypeCache(),
		breakpoints:      make(map[string]*BreakpointRecord),
		pendingByClass:   make(map[string][]string),
		classPrepareReq:  make(map[string]uint32),
		suspendedThreads: make(map[uint64]bool),
		resolveQueue:     make(chan string, 64),
		stopResolve:      make(chan struct{}),
		summaryDefaults:  defaultSummarizeOptions,
	}
	s.mux = jdwpmux.New(tr, jdwplog.Nop(), s.handleEvent)
	s.cmd = jdwpcmd.New(s.mux, s.ids)
	go s.resolveWorker()
	t.Cleanup(func() { close(s.stopResolve) })

	return s, &testJVM{conn: server, ids: ids}
}

func TestNextBreakpointIDIncrements(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	require.Equal(t, "bp_1", s.nextBreakpointID())
	require.Equal(t, "bp_2", s.nextBreakpointID())
}

func TestInvariantPanicsAsError(t *testing.T) {
	require.Nil(t, invariant(true, "never happens"))
	err := invariant(false, "should not happen")
	require.Error(t, err)
}

// runJVM is a tiny helper to run the fake JVM's scripted side concurrently
// without the test racing the goroutine.
func runJVM(t *testing.T, fn func()) *sync.WaitGroup {
	t.Helper()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
	return &wg
}
