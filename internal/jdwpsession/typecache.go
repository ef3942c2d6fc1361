package jdwpsession

import (
	"context"
	"sync"

	"github.com/navicore/jdwp-mcp/internal/jdwpcmd"
)

// typeCacheEntry holds everything fetched once per class (spec §4.5
// "Type/method/line-table caching"): fields and methods never change for a
// loaded class, and a method's line table is immutable once compiled.
type typeCacheEntry struct {
	fields    []jdwpcmd.FieldInfo
	fieldsErr error

	methods    []jdwpcmd.MethodInfo
	methodsErr error

	lineTables map[uint64]jdwpcmd.LineTableInfo
	varTables  map[uint64]jdwpcmd.VariableTableInfo
}

// typeCache memoizes per-refType/per-method JDWP lookups so repeated
// breakpoint resolution, stack walks, and evaluation against the same
// classes issue each query exactly once (spec §4.5, §4.6).
type typeCache struct {
	mu      sync.Mutex
	entries map[uint64]*typeCacheEntry
}

func newTypeCache() *typeCache {
	return &typeCache{entries: make(map[uint64]*typeCacheEntry)}
}

func (c *typeCache) entry(refType uint64) *typeCacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[refType]
	if !ok {
		e = &typeCacheEntry{
			lineTables: make(map[uint64]jdwpcmd.LineTableInfo),
			varTables:  make(map[uint64]jdwpcmd.VariableTableInfo),
		}
		c.entries[refType] = e
	}
	return e
}

// methods returns refType's methods, fetching and caching on first use.
func (c *typeCache) methods(ctx context.Context, cmd *jdwpcmd.Client, refType uint64) ([]jdwpcmd.MethodInfo, error) {
	e := c.entry(refType)

	c.mu.Lock()
	if e.methods != nil || e.methodsErr != nil {
		methods, err := e.methods, e.methodsErr
		c.mu.Unlock()
		return methods, err
	}
	c.mu.Unlock()

	methods, err := cmd.Methods(ctx, refType)

	c.mu.Lock()
	e.methods, e.methodsErr = methods, err
	c.mu.Unlock()
	return methods, err
}

// fields returns refType's fields, fetching and caching on first use.
func (c *typeCache) fields(ctx context.Context, cmd *jdwpcmd.Client, refType uint64) ([]jdwpcmd.FieldInfo, error) {
	e := c.entry(refType)

	c.mu.Lock()
	if e.fields != nil || e.fieldsErr != nil {
		fields, err := e.fields, e.fieldsErr
		c.mu.Unlock()
		return fields, err
	}
	c.mu.Unlock()

	fields, err := cmd.Fields(ctx, refType)

	c.mu.Lock()
	e.fields, e.fieldsErr = fields, err
	c.mu.Unlock()
	return fields, err
}

// lineTable returns the line table for refType/methodID, fetching and
// caching on first use.
func (c *typeCache) lineTable(ctx context.Context, cmd *jdwpcmd.Client, refType, methodID uint64) (jdwpcmd.LineTableInfo, error) {
	e := c.entry(refType)

	c.mu.Lock()
	if lt, ok := e.lineTables[methodID]; ok {
		c.mu.Unlock()
		return lt, nil
	}
	c.mu.Unlock()

	lt, err := cmd.LineTable(ctx, refType, methodID)
	if err != nil {
		return jdwpcmd.LineTableInfo{}, err
	}

	c.mu.Lock()
	e.lineTables[methodID] = lt
	c.mu.Unlock()
	return lt, nil
}

// variableTable returns the local-variable table for refType/methodID,
// fetching and caching on first use.
func (c *typeCache) variableTable(ctx context.Context, cmd *jdwpcmd.Client, refType, methodID uint64) (jdwpcmd.VariableTableInfo, error) {
	e := c.entry(refType)

	c.mu.Lock()
	if vt, ok := e.varTables[methodID]; ok {
		c.mu.Unlock()
		return vt, nil
	}
	c.mu.Unlock()

	vt, err := cmd.VariableTable(ctx, refType, methodID)
	if err != nil {
		return jdwpcmd.VariableTableInfo{}, err
	}

	c.mu.Lock()
	e.varTables[methodID] = vt
	c.mu.Unlock()
	return vt, nil
}

// methodContaining returns the method on refType with id methodID and the
// source line its line table maps pc to, used to resolve a Location back to
// a name+line for display.
func (c *typeCache) methodContaining(ctx context.Context, cmd *jdwpcmd.Client, refType, methodID uint64, pc int64) (jdwpcmd.MethodInfo, int32, error) {
	methods, err := c.methods(ctx, cmd, refType)
	if err != nil {
		return jdwpcmd.MethodInfo{}, 0, err
	}
	for _, m := range methods {
		if m.MethodID != methodID {
			continue
		}
		lt, err := c.lineTable(ctx, cmd, refType, methodID)
		if err != nil {
			return m, 0, err
		}
		line := lineForIndex(lt, pc)
		return m, line, nil
	}
	return jdwpcmd.MethodInfo{}, 0, nil
}

// lineForIndex finds the source line whose codeIndex is the greatest one
// not exceeding pc (JDWP line tables are monotonic but sparse).
func lineForIndex(lt jdwpcmd.LineTableInfo, pc int64) int32 {
	var line int32
	best := int64(-1)
	for _, entry := range lt.Lines {
		if entry.CodeIndex <= pc && entry.CodeIndex > best {
			best = entry.CodeIndex
			line = entry.Line
		}
	}
	return line
}
