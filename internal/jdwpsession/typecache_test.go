package jdwpsession

import (
	"context"
	"testing"

	"github.com/navicore/jdwp-mcp/internal/jdwpcmd"
	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/stretchr/testify/require"
)

func TestMethodsFetchesOnceAndCaches(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	wg := runJVM(t, func() {
		// 2.5 Methods, should only be asked for once.
		pkt := jvm.readCommand(t)
		e := jdwpcodec.NewEncoder()
		e.Int32(1)
		e.ID(9, jvm.ids.MethodIDSize)
		e.String("hello")
		e.String("()V")
		e.Int32(0)
		jvm.reply(pkt.ID, 0, e.Bytes())
	})

	first, err := s.types.methods(context.Background(), s.cmd, 5)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, "hello", first[0].Name)

	second, err := s.types.methods(context.Background(), s.cmd, 5)
	wg.Wait()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLineTableFetchesOnceAndCaches(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	wg := runJVM(t, func() {
		// 6.1 LineTable, should only be asked for once.
		pkt := jvm.readCommand(t)
		e := jdwpcodec.NewEncoder()
		e.Int64(0)
		e.Int64(20)
		e.Int32(2)
		e.Int64(0)
		e.Int32(10)
		e.Int64(5)
		e.Int32(11)
		jvm.reply(pkt.ID, 0, e.Bytes())
	})

	first, err := s.types.lineTable(context.Background(), s.cmd, 5, 9)
	require.NoError(t, err)
	require.Len(t, first.Lines, 2)

	second, err := s.types.lineTable(context.Background(), s.cmd, 5, 9)
	wg.Wait()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLineForIndexPicksGreatestNotExceeding(t *testing.T) {
	lt := jdwpcmd.LineTableInfo{Lines: []jdwpcmd.LineEntry{
		{CodeIndex: 0, Line: 10},
		{CodeIndex: 5, Line: 11},
		{CodeIndex: 12, Line: 13},
	}}

	require.Equal(t, int32(10), lineForIndex(lt, 0))
	require.Equal(t, int32(11), lineForIndex(lt, 5))
	require.Equal(t, int32(11), lineForIndex(lt, 9))
	require.Equal(t, int32(13), lineForIndex(lt, 100))
}

func TestMethodContainingResolvesMethodAndLine(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	wg := runJVM(t, func() {
		pkt := jvm.readCommand(t) // Methods
		e := jdwpcodec.NewEncoder()
		e.Int32(1)
		e.ID(9, jvm.ids.MethodIDSize)
		e.String("hello")
		e.String("()V")
		e.Int32(0)
		jvm.reply(pkt.ID, 0, e.Bytes())

		pkt = jvm.readCommand(t) // LineTable
		e = jdwpcodec.NewEncoder()
		e.Int64(0)
		e.Int64(20)
		e.Int32(2)
		e.Int64(0)
		e.Int32(10)
		e.Int64(5)
		e.Int32(11)
		jvm.reply(pkt.ID, 0, e.Bytes())
	})

	method, line, err := s.types.methodContaining(context.Background(), s.cmd, 5, 9, 6)
	wg.Wait()
	require.NoError(t, err)
	require.Equal(t, "hello", method.Name)
	require.Equal(t, int32(11), line)
}
