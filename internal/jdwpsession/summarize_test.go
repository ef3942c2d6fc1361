package jdwpsession

import (
	"context"
	"strings"
	"testing"

	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/stretchr/testify/require"
)

func TestSummarizePrimitives(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	sum, err := s.Summarize(context.Background(), jdwpcodec.Value{Tag: jdwpcodec.TagInt, Int: 42})
	require.NoError(t, err)
	require.Equal(t, "primitive", sum.Kind)
	require.Equal(t, "42", sum.Text)
}

func TestSummarizeNullObject(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	sum, err := s.Summarize(context.Background(), jdwpcodec.Value{Tag: jdwpcodec.TagObject, Object: 0})
	require.NoError(t, err)
	require.Equal(t, "null", sum.Kind)
}

func TestSummarizeStringTruncatesAt200Bytes(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	long := strings.Repeat("a", 250)
	wg := runJVM(t, func() {
		pkt := jvm.readCommand(t)
		e := jdwpcodec.NewEncoder()
		e.String(long)
		jvm.reply(pkt.ID, 0, e.Bytes())
	})

	sum, err := s.Summarize(context.Background(), jdwpcodec.Value{Tag: jdwpcodec.TagString, Object: 11})
	wg.Wait()
	require.NoError(t, err)
	require.Contains(t, sum.Text, "…(+50 bytes)")
}

func TestSummarizeCyclicObjectGuardsAgainstRevisit(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	sm := &summarizer{ctx: context.Background(), cmd: s.cmd, types: s.types, opts: defaultSummarizeOptions, visited: map[uint64]bool{7: true}}
	sum, err := sm.objectValue(7, 0)
	require.NoError(t, err)
	require.Contains(t, sum.Text, "↺")
}

func TestSummarizeArrayTruncatesAtMaxCollectionItems(t *testing.T) {
	s, jvm := newTestSession(t)
	defer jvm.conn.Close()

	wg := runJVM(t, func() {
		// ArrayLength
		pkt := jvm.readCommand(t)
		e := jdwpcodec.NewEncoder()
		e.Int32(25)
		jvm.reply(pkt.ID, 0, e.Bytes())

		// ArrayGetValues
		pkt = jvm.readCommand(t)
		e = jdwpcodec.NewEncoder()
		e.Byte(byte(jdwpcodec.TagInt))
		e.Int32(10)
		for i := int32(0); i < 10; i++ {
			e.Int32(i)
		}
		jvm.reply(pkt.ID, 0, e.Bytes())
	})

	sum, err := s.Summarize(context.Background(), jdwpcodec.Value{Tag: jdwpcodec.TagArray, Object: 9})
	wg.Wait()
	require.NoError(t, err)
	require.True(t, sum.Truncated)
	require.Len(t, sum.Elements, 10)
	require.Contains(t, sum.Text, "…(+15)")
}

func TestSummarizeOptionsOrDefault(t *testing.T) {
	opts := SummarizeOptions{}.orDefault()
	require.Equal(t, 2, opts.MaxDepth)
	require.Equal(t, 10, opts.MaxCollectionItems)
}
