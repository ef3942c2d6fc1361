package jdwpsession

import (
	"context"
	"testing"

	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/stretchr/testify/require"
)

func TestStepRejectsThreadNotKnownSuspended(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	err := s.StepOver(context.Background(), 5)
	require.Error(t, err)
}

func TestStepOverRegistersAndResumesThread(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	s.mu.Lock()
	s.suspendedThreads[5] = true
	s.mu.Unlock()

	wg := runJVM(t, func() {
		// 15.1 EventRequest.Set
		pkt := jvm.readCommand(t)
		require.Equal(t, byte(15), pkt.CommandSet)
		require.Equal(t, byte(1), pkt.Command)
		e := jdwpcodec.NewEncoder()
		e.Uint32(88)
		jvm.reply(pkt.ID, 0, e.Bytes())

		// 11.3 ThreadReference.Resume
		pkt = jvm.readCommand(t)
		require.Equal(t, byte(11), pkt.CommandSet)
		require.Equal(t, byte(3), pkt.Command)
		jvm.reply(pkt.ID, 0, nil)
	})

	err := s.StepOver(context.Background(), 5)
	wg.Wait()
	require.NoError(t, err)

	s.mu.Lock()
	_, stillSuspended := s.suspendedThreads[5]
	s.mu.Unlock()
	require.False(t, stillSuspended)
}

func TestContinueClearsSuspendedThreads(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	s.mu.Lock()
	s.suspendedThreads[5] = true
	s.mu.Unlock()

	wg := runJVM(t, func() {
		pkt := jvm.readCommand(t)
		jvm.reply(pkt.ID, 0, nil)
	})

	err := s.Continue(context.Background())
	wg.Wait()
	require.NoError(t, err)

	s.mu.Lock()
	count := len(s.suspendedThreads)
	s.mu.Unlock()
	require.Equal(t, 0, count)
}
