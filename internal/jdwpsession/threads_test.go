package jdwpsession

import (
	"context"
	"testing"

	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/navicore/jdwp-mcp/internal/jdwperrors"
	"github.com/stretchr/testify/require"
)

func TestListThreads(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	wg := runJVM(t, func() {
		pkt := jvm.readCommand(t) // 1.4 AllThreads
		e := jdwpcodec.NewEncoder()
		e.Int32(2)
		e.ID(1, jvm.ids.ObjectIDSize)
		e.ID(2, jvm.ids.ObjectIDSize)
		jvm.reply(pkt.ID, 0, e.Bytes())
	})

	threads, err := s.ListThreads(context.Background())
	wg.Wait()
	require.NoError(t, err)
	require.Len(t, threads, 2)
	require.Equal(t, uint64(1), threads[0].ID)
	require.Equal(t, uint64(2), threads[1].ID)
	require.False(t, threads[0].Suspended)

	s.mu.Lock()
	s.suspendedThreads[2] = true
	s.mu.Unlock()

	wg = runJVM(t, func() {
		pkt := jvm.readCommand(t)
		e := jdwpcodec.NewEncoder()
		e.Int32(2)
		e.ID(1, jvm.ids.ObjectIDSize)
		e.ID(2, jvm.ids.ObjectIDSize)
		jvm.reply(pkt.ID, 0, e.Bytes())
	})
	threads, err = s.ListThreads(context.Background())
	wg.Wait()
	require.NoError(t, err)
	require.False(t, threads[0].Suspended)
	require.True(t, threads[1].Suspended)
}

func TestGetStackWithoutThreadOrPriorEventIsResolutionError(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	_, err := s.GetStack(context.Background(), 0)
	var re *jdwperrors.ResolutionError
	require.ErrorAs(t, err, &re)
}

func TestGetStackResolvesMethodLineAndVars(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	wg := runJVM(t, func() {
		// 11.6 Frames: one frame at classID 5 / methodID 9 / pc 6
		pkt := jvm.readCommand(t)
		e := jdwpcodec.NewEncoder()
		e.Int32(1)
		e.ID(100, jvm.ids.FrameIDSize)
		e.Byte(1)
		e.ID(5, jvm.ids.ReferenceTypeIDSize)
		e.ID(9, jvm.ids.MethodIDSize)
		e.Int64(6)
		jvm.reply(pkt.ID, 0, e.Bytes())

		// 2.5 Methods
		pkt = jvm.readCommand(t)
		e = jdwpcodec.NewEncoder()
		e.Int32(1)
		e.ID(9, jvm.ids.MethodIDSize)
		e.String("hello")
		e.String("()V")
		e.Int32(0)
		jvm.reply(pkt.ID, 0, e.Bytes())

		// 6.1 LineTable
		pkt = jvm.readCommand(t)
		e = jdwpcodec.NewEncoder()
		e.Int64(0)
		e.Int64(20)
		e.Int32(2)
		e.Int64(0)
		e.Int32(10)
		e.Int64(5)
		e.Int32(11)
		jvm.reply(pkt.ID, 0, e.Bytes())

		// 6.2 VariableTable: one slot, "greeting", valid from pc 0 for length 20
		pkt = jvm.readCommand(t)
		e = jdwpcodec.NewEncoder()
		e.Int32(0)
		e.Int32(1)
		e.Int64(0)
		e.String("greeting")
		e.String("Ljava/lang/String;")
		e.Int32(20)
		e.Int32(1)
		jvm.reply(pkt.ID, 0, e.Bytes())

		// 16.1 StackFrame.GetValues
		pkt = jvm.readCommand(t)
		e = jdwpcodec.NewEncoder()
		e.Int32(1)
		e.Byte(byte(jdwpcodec.TagString))
		e.ID(42, jvm.ids.ObjectIDSize)
		jvm.reply(pkt.ID, 0, e.Bytes())

		// StringReference.Value for the summarized string
		pkt = jvm.readCommand(t)
		e = jdwpcodec.NewEncoder()
		e.String("hello")
		jvm.reply(pkt.ID, 0, e.Bytes())
	})

	frames, err := s.GetStack(context.Background(), 7)
	wg.Wait()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, "hello", frames[0].Method)
	require.Equal(t, int32(11), frames[0].Line)
	require.Len(t, frames[0].Vars, 1)
	require.Equal(t, "greeting", frames[0].Vars[0].Name)
	require.Equal(t, "hello", frames[0].Vars[0].Value.Text)
}
