package jdwpcmd

import (
	"testing"

	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventSetBreakpoint(t *testing.T) {
	ids := jdwpcodec.DefaultIdSizes

	e := jdwpcodec.NewEncoder()
	e.Byte(SuspendPolicyEventThread)
	e.Int32(1)
	e.Byte(EventBreakpoint)
	e.Uint32(42)
	e.ID(17, ids.ObjectIDSize)
	jdwpcodec.EncodeLocation(e, jdwpcodec.Location{RefTypeTag: 1, ClassID: 5, MethodID: 9, Index: 12}, ids)

	es, err := DecodeEventSet(e.Bytes(), ids)
	require.NoError(t, err)
	require.Equal(t, SuspendPolicyEventThread, es.SuspendPolicy)
	require.Len(t, es.Events, 1)
	ev := es.Events[0]
	require.Equal(t, EventBreakpoint, ev.Kind)
	require.Equal(t, uint32(42), ev.RequestID)
	require.Equal(t, uint64(17), ev.ThreadID)
	require.Equal(t, int64(12), ev.Location.Index)
}

func TestDecodeEventSetClassPrepare(t *testing.T) {
	ids := jdwpcodec.DefaultIdSizes

	e := jdwpcodec.NewEncoder()
	e.Byte(SuspendPolicyNone)
	e.Int32(1)
	e.Byte(EventClassPrepare)
	e.Uint32(3)
	e.ID(1, ids.ObjectIDSize)
	e.Byte(1)
	e.ID(99, ids.ReferenceTypeIDSize)
	e.String("Lcom/example/HelloController;")
	e.Int32(2)

	es, err := DecodeEventSet(e.Bytes(), ids)
	require.NoError(t, err)
	ev := es.Events[0]
	require.Equal(t, "Lcom/example/HelloController;", ev.Signature)
	require.Equal(t, uint64(99), ev.TypeID)
}

func TestArrayGetValuesZeroLength(t *testing.T) {
	c := &Client{IDs: &jdwpcodec.DefaultIdSizes}
	vals, err := c.ArrayGetValues(nil, 123, 0, 0)
	require.NoError(t, err)
	require.Nil(t, vals)
}
