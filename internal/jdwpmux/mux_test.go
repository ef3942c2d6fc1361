package jdwpmux

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/navicore/jdwp-mcp/internal/jdwplog"
	"github.com/navicore/jdwp-mcp/internal/jdwptransport"
	"github.com/stretchr/testify/require"
)

type pipeDialer struct{ conn net.Conn }

func (d pipeDialer) DialContext(ctx context.Context, address string, opts jdwptransport.DialerOptions) (net.Conn, error) {
	return d.conn, nil
}

// newFakeJVMPair performs the handshake then lets the test script further packets.
func newFakeJVMPair(t *testing.T) (*jdwpmuxTestJVM, *Mux) {
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

	var events []struct {
		policy byte
		raw    []byte
	}
	var mu sync.Mutex
	m := New(tr, jdwplog.Nop(), func(policy byte, raw []byte) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, struct {
			policy byte
			raw    []byte
		}{policy, raw})
	})

	return &jdwpmuxTestJVM{conn: server, mu: &mu, events: &events}, m
}

type jdwpmuxTestJVM struct {
	conn   net.Conn
	mu     *sync.Mutex
	events *[]struct {
		policy byte
		raw    []byte
	}
}

func (j *jdwpmuxTestJVM) readCommand(t *testing.T) *jdwpcodec.Packet {
	t.Helper()
	lenBuf := make([]byte, 4)
	_, err := j.conn.Read(lenBuf)
	require.NoError(t, err)
	length, err := jdwpcodec.DecodeHeader4(lenBuf)
	require.NoError(t, err)
	rest := make([]byte, int(length)-4)
	_, err = j.conn.Read(rest)
	require.NoError(t, err)
	pkt, err := jdwpcodec.DecodeRest(length, rest)
	require.NoError(t, err)
	return pkt
}

func (j *jdwpmuxTestJVM) replyTo(id uint32, errorCode uint16, payload []byte) {
	j.conn.Write(jdwpcodec.EncodeReply(id, errorCode, payload))
}

func TestSendReceivesMatchingReply(t *testing.T) {
	jvm, m := newFakeJVMPair(t)
	defer jvm.conn.Close()

	done := make(chan struct{})
	go func() {
		pkt := jvm.readCommand(t)
		jvm.replyTo(pkt.ID, 0, []byte{0xAB})
		close(done)
	}()

	id := m.NextID()
	payload, errCode, err := m.Send(context.Background(), id, 1, 7, nil)
	<-done
	require.NoError(t, err)
	require.Equal(t, uint16(0), errCode)
	require.Equal(t, []byte{0xAB}, payload)
}

func TestSendSurfacesErrorCode(t *testing.T) {
	jvm, m := newFakeJVMPair(t)
	defer jvm.conn.Close()

	go func() {
		pkt := jvm.readCommand(t)
		jvm.replyTo(pkt.ID, 21, nil)
	}()

	id := m.NextID()
	_, errCode, err := m.Send(context.Background(), id, 1, 3, nil)
	require.NoError(t, err)
	require.Equal(t, uint16(21), errCode)
}

func TestUnexpectedReplyIDBreaksSession(t *testing.T) {
	jvm, m := newFakeJVMPair(t)
	defer jvm.conn.Close()

	jvm.replyTo(999, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err := m.Send(ctx, m.NextID(), 1, 1, nil)
	require.Error(t, err)
}

// TestEmptyCompositeEventPayloadDoesNotPanic guards dispatch's Payload[0]
// read: a zero-length composite-event frame must be dropped, not crash the
// reader goroutine (spec §7 "no panics").
func TestEmptyCompositeEventPayloadDoesNotPanic(t *testing.T) {
	jvm, m := newFakeJVMPair(t)
	defer jvm.conn.Close()

	jvm.conn.Write(jdwpcodec.EncodeCommand(1, jdwpcodec.EventCommandSet, jdwpcodec.EventCommand, nil))

	// A well-formed reply sent right after proves the reader goroutine
	// survived the empty event frame instead of panicking.
	go func() {
		pkt := jvm.readCommand(t)
		jvm.replyTo(pkt.ID, 0, []byte{0xCD})
	}()
	payload, errCode, err := m.Send(context.Background(), m.NextID(), 1, 7, nil)
	require.NoError(t, err)
	require.Equal(t, uint16(0), errCode)
	require.Equal(t, []byte{0xCD}, payload)
}
