// Package jdwptransport opens the TCP connection to a JVM's debug port and
// performs the JDWP handshake. It is deliberately thin: everything above the
// byte level (framing, correlation, typed commands) lives in jdwpcodec,
// jdwpmux and jdwpcmd.
package jdwptransport

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/navicore/jdwp-mcp/internal/jdwperrors"
)

// handshake is the fixed 14-byte ASCII string both sides exchange verbatim
// before any JDWP packet is valid on the wire (spec §4.1).
const handshake = "JDWP-Handshake"

// DialerOptions mirrors the teacher's driver/dial.DialerOptions shape: a
// small value object rather than a long parameter list, so a caller can add
// a field later without breaking every call site.
type DialerOptions struct {
	Timeout time.Duration
}

// Dialer abstracts the network dial the same way the teacher's
// driver/dial.Dialer interface does for its own SQL driver, so tests can
// substitute an in-memory pipe without touching real sockets.
type Dialer interface {
	DialContext(ctx context.Context, address string, opts DialerOptions) (net.Conn, error)
}

// DefaultDialer dials real TCP connections.
var DefaultDialer Dialer = defaultDialer{}

type defaultDialer struct{}

func (defaultDialer) DialContext(ctx context.Context, address string, opts DialerOptions) (net.Conn, error) {
	d := net.Dialer{Timeout: opts.Timeout}
	return d.DialContext(ctx, "tcp", address)
}

// Transport owns one half-duplex socket to a JVM debug port. Callers never
// see the underlying net.Conn; write_all/read_exact are the only operations
// exposed, matching spec §4.1 exactly.
type Transport struct {
	conn net.Conn
}

// Dial connects to host:port, completes the JDWP handshake, and returns a
// ready Transport. Handshake failure is fatal and the connection is closed
// before returning, per spec §4.1.
func Dial(ctx context.Context, dialer Dialer, host string, port uint16, opts DialerOptions) (*Transport, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	conn, err := dialer.DialContext(ctx, addr, opts)
	if err != nil {
		return nil, &jdwperrors.TransportError{Op: "dial", Err: err}
	}
	t := &Transport{conn: conn}
	if err := t.doHandshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *Transport) doHandshake() error {
	if err := t.WriteAll([]byte(handshake)); err != nil {
		return err
	}
	reply, err := t.ReadExact(len(handshake))
	if err != nil {
		return err
	}
	if string(reply) != handshake {
		return &jdwperrors.TransportError{Op: "handshake", Err: errMismatch}
	}
	return nil
}

var errMismatch = handshakeMismatch{}

type handshakeMismatch struct{}

func (handshakeMismatch) Error() string { return "handshake reply did not match \"JDWP-Handshake\"" }

// WriteAll writes all of p to the socket, returning a TransportError on any
// failure (spec §4.1: "write_all(bytes) ... strictly sequential").
func (t *Transport) WriteAll(p []byte) error {
	for len(p) > 0 {
		n, err := t.conn.Write(p)
		if err != nil {
			return &jdwperrors.TransportError{Op: "write", Err: err}
		}
		p = p[n:]
	}
	return nil
}

// ReadExact reads exactly n bytes from the socket, returning a
// TransportError (wrapping io.EOF/io.ErrUnexpectedEOF as appropriate) on any
// short read.
func (t *Transport) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	off := 0
	for off < n {
		m, err := t.conn.Read(buf[off:])
		off += m
		if err != nil {
			if off == n {
				break
			}
			return nil, &jdwperrors.TransportError{Op: "read", Err: err}
		}
	}
	return buf, nil
}

// Close closes the underlying socket.
func (t *Transport) Close() error { return t.conn.Close() }
