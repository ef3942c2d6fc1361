package jdwpsession

import (
	"context"
	"fmt"

	"github.com/navicore/jdwp-mcp/internal/jdwpcmd"
	"github.com/navicore/jdwp-mcp/internal/jdwpcodec"
)

// SummarizeOptions bounds how deep and how wide object-graph expansion goes
// when rendering a value for evaluate/get_stack results (spec §4.6).
type SummarizeOptions struct {
	MaxDepth           int
	MaxCollectionItems int
	AutoExpandStrings  bool
	ExpandFields       bool
}

// defaultSummarizeOptions matches spec §4.6's stated defaults.
var defaultSummarizeOptions = SummarizeOptions{
	MaxDepth:           2,
	MaxCollectionItems: 10,
	AutoExpandStrings:  true,
	ExpandFields:       true,
}

// orDefault fills any zero-valued field with the spec default, so a caller
// may pass a partially-populated Options.SummaryDefaults.
func (o SummarizeOptions) orDefault() SummarizeOptions {
	out := o
	if out.MaxDepth == 0 {
		out.MaxDepth = defaultSummarizeOptions.MaxDepth
	}
	if out.MaxCollectionItems == 0 {
		out.MaxCollectionItems = defaultSummarizeOptions.MaxCollectionItems
	}
	return out
}

const maxStringPreview = 200

// Summary is the rendered form of one JDWP Value, ready to serialize into a
// tool result (spec §4.6).
type Summary struct {
	Kind      string // "primitive", "string", "object", "array", "null"
	Type      string // best-effort type name, empty when unknown
	Text      string // rendered display form
	Fields    map[string]Summary
	Elements  []Summary
	Truncated bool
}

// summarizer carries the per-call state (visited-object cycle guard) that
// must not leak across calls (spec §4.6: "a visited-objectID set scoped to
// a single summarize call").
type summarizer struct {
	ctx     context.Context
	cmd     *jdwpcmd.Client
	types   *typeCache
	opts    SummarizeOptions
	visited map[uint64]bool
}

// Summarize renders v per the session's configured SummarizeOptions.
func (s *Session) Summarize(ctx context.Context, v jdwpcodec.Value) (Summary, error) {
	sm := &summarizer{ctx: ctx, cmd: s.cmd, types: s.types, opts: s.summaryDefaults, visited: make(map[uint64]bool)}
	return sm.value(v, 0)
}

func (sm *summarizer) value(v jdwpcodec.Value, depth int) (Summary, error) {
	switch v.Tag {
	case jdwpcodec.TagVoid:
		return Summary{Kind: "primitive", Type: "void", Text: "void"}, nil
	case jdwpcodec.TagBoolean:
		return Summary{Kind: "primitive", Type: "boolean", Text: fmt.Sprintf("%t", v.Bool)}, nil
	case jdwpcodec.TagByte:
		return Summary{Kind: "primitive", Type: "byte", Text: fmt.Sprintf("%d", v.Byte)}, nil
	case jdwpcodec.TagChar:
		return Summary{Kind: "primitive", Type: "char", Text: fmt.Sprintf("%q", rune(v.Char))}, nil
	case jdwpcodec.TagShort:
		return Summary{Kind: "primitive", Type: "short", Text: fmt.Sprintf("%d", v.Short)}, nil
	case jdwpcodec.TagInt:
		return Summary{Kind: "primitive", Type: "int", Text: fmt.Sprintf("%d", v.Int)}, nil
	case jdwpcodec.TagLong:
		return Summary{Kind: "primitive", Type: "long", Text: fmt.Sprintf("%d", v.Long)}, nil
	case jdwpcodec.TagFloat:
		return Summary{Kind: "primitive", Type: "float", Text: fmt.Sprintf("%g", v.Float)}, nil
	case jdwpcodec.TagDouble:
		return Summary{Kind: "primitive", Type: "double", Text: fmt.Sprintf("%g", v.Double)}, nil
	case jdwpcodec.TagString:
		return sm.stringValue(v.Object)
	case jdwpcodec.TagArray:
		return sm.arrayValue(v.Object, depth)
	case jdwpcodec.TagObject, jdwpcodec.TagThread, jdwpcodec.TagThreadGroup, jdwpcodec.TagClassLoader, jdwpcodec.TagClassObject:
		return sm.objectValue(v.Object, depth)
	default:
		return Summary{Kind: "primitive", Type: "unknown", Text: "?"}, nil
	}
}

func (sm *summarizer) stringValue(objectID uint64) (Summary, error) {
	if objectID == 0 {
		return Summary{Kind: "null", Text: "null"}, nil
	}
	if !sm.opts.AutoExpandStrings {
		return Summary{Kind: "string", Type: "String", Text: fmt.Sprintf("@0x%x", objectID)}, nil
	}
	raw, err := sm.cmd.StringValue(sm.ctx, objectID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Kind: "string", Type: "String", Text: truncateString(raw)}, nil
}

// truncateString implements spec §4.6's 200-byte preview with a
// "…(+N bytes)" tail, cutting at a rune boundary.
func truncateString(s string) string {
	if len(s) <= maxStringPreview {
		return s
	}
	cut := maxStringPreview
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return fmt.Sprintf("%s…(+%d bytes)", s[:cut], len(s)-cut)
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func (sm *summarizer) objectValue(objectID uint64, depth int) (Summary, error) {
	if objectID == 0 {
		return Summary{Kind: "null", Text: "null"}, nil
	}
	out := Summary{Kind: "object", Text: fmt.Sprintf("@0x%x", objectID)}

	if sm.visited[objectID] {
		out.Text = fmt.Sprintf("↺ @0x%x", objectID)
		return out, nil
	}

	if !sm.opts.ExpandFields || depth >= sm.opts.MaxDepth {
		return out, nil
	}

	sm.visited[objectID] = true
	defer delete(sm.visited, objectID)

	// Field expansion needs the object's runtime refType, which this
	// engine does not fetch (ObjectReference.ReferenceType is not among
	// the commands jdwpcmd wires). Objects therefore render as their id
	// only: Fields is never populated, here or by evaluate.go, whatever
	// ExpandFields and MaxDepth are set to.
	return out, nil
}

func (sm *summarizer) arrayValue(arrayID uint64, depth int) (Summary, error) {
	if arrayID == 0 {
		return Summary{Kind: "null", Text: "null"}, nil
	}
	out := Summary{Kind: "array", Text: fmt.Sprintf("@0x%x", arrayID)}
	if depth >= sm.opts.MaxDepth {
		return out, nil
	}

	length, err := sm.cmd.ArrayLength(sm.ctx, arrayID)
	if err != nil {
		return Summary{}, err
	}

	want := length
	truncated := false
	if int(want) > sm.opts.MaxCollectionItems {
		want = int32(sm.opts.MaxCollectionItems)
		truncated = true
	}

	vals, err := sm.cmd.ArrayGetValues(sm.ctx, arrayID, 0, want)
	if err != nil {
		return Summary{}, err
	}

	out.Elements = make([]Summary, 0, len(vals))
	for _, v := range vals {
		elem, err := sm.value(v, depth+1)
		if err != nil {
			return Summary{}, err
		}
		out.Elements = append(out.Elements, elem)
	}
	if truncated {
		out.Truncated = true
		out.Text = fmt.Sprintf("@0x%x (len=%d, showing %d)…(+%d)", arrayID, length, want, int(length)-int(want))
	} else {
		out.Text = fmt.Sprintf("@0x%x (len=%d)", arrayID, length)
	}
	return out, nil
}
