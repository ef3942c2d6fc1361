package jdwpcmd

import "github.com/navicore/jdwp-mcp/internal/jdwpcodec"

// Event is one element of a composite event packet (spec §3 EventHit, §6
// wire notes: "each event starts with a one-byte kind ... followed by a
// kind-specific body").
type Event struct {
	Kind      byte
	RequestID uint32
	ThreadID  uint64

	// Valid for EventBreakpoint and EventSingleStep.
	Location jdwpcodec.Location

	// Valid for EventClassPrepare.
	RefTypeTag byte
	TypeID     uint64
	Signature  string
	Status     int32
}

// EventSet is the decoded composite-event command (command set 64, command
// 100): "{suspendPolicy, [events]}" per spec §4.4.
type EventSet struct {
	SuspendPolicy byte
	Events        []Event
}

// DecodeEventSet decodes a composite-event payload as delivered by
// jdwpmux's EventSink.
func DecodeEventSet(raw []byte, ids jdwpcodec.IdSizes) (EventSet, error) {
	d := jdwpcodec.NewDecoder(raw)
	es := EventSet{SuspendPolicy: d.Byte()}
	n := d.Int32()
	es.Events = make([]Event, 0, n)
	for i := int32(0); i < n; i++ {
		kind := d.Byte()
		ev := Event{Kind: kind}
		switch kind {
		case EventBreakpoint, EventSingleStep:
			ev.RequestID = d.Uint32()
			ev.ThreadID = d.ID(ids.ObjectIDSize)
			ev.Location = jdwpcodec.DecodeLocation(d, ids)
		case EventClassPrepare:
			ev.RequestID = d.Uint32()
			ev.ThreadID = d.ID(ids.ObjectIDSize)
			ev.RefTypeTag = d.Byte()
			ev.TypeID = d.ID(ids.ReferenceTypeIDSize)
			ev.Signature = d.String()
			ev.Status = d.Int32()
		default:
			// An event kind this engine does not subscribe to should never
			// arrive; if it does, there is nothing sized we can skip safely
			// without a per-kind body length, so record it bare; the
			// session's event handler ignores kinds it does not handle.
		}
		es.Events = append(es.Events, ev)
	}
	if err := d.Error(); err != nil {
		return es, err
	}
	return es, nil
}
