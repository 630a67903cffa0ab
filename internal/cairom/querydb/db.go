// Package querydb implements the demand-driven, revision-indexed
// memoization substrate described in spec §4.1: every derived fact in the
// compiler (parse trees, semantic indices, MIR, diagnostics, ...) is a
// query over this database rather than something computed once and held.
//
// Query keys are canonicalized to strings. Every concrete query in this
// compiler is naturally named (a module path, a function id, ...), so this
// avoids the reflection machinery a fully generic key type would need to
// revalidate a dependency it only knows by (query name, key) — see
// DESIGN.md.
package querydb

import (
	"fmt"
	"reflect"
	"sync"
)

// Revision is the database's monotonic change counter (spec: "current_revision()").
type Revision uint64

// Database is the shared, reader-writer-protected store of inputs and
// memoized derived queries (spec §5: "interior mutability (reader-writer
// protection on the storage, point-in-time snapshots for concurrent
// readers)").
type Database struct {
	mu      sync.RWMutex
	rev     Revision
	inputs  map[string]*inputCell
	queries map[string]*queryDef
	cache   map[string]*cacheEntry
}

type inputCell struct {
	value     any
	changedAt Revision
}

type queryDef struct {
	name    string
	compute func(ctx *Context, key string) (any, error)
}

type depRef struct {
	input bool
	query string
	key   string
}

type cacheEntry struct {
	value      any
	verifiedAt Revision
	changedAt  Revision
	deps       []depRef
}

// New creates an empty database at revision 0.
func New() *Database {
	return &Database{
		inputs:  make(map[string]*inputCell),
		queries: make(map[string]*queryDef),
		cache:   make(map[string]*cacheEntry),
	}
}

// CurrentRevision returns the database's monotonic revision counter.
func (db *Database) CurrentRevision() Revision {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.rev
}

// SetInput stores an input value under (name, key), bumping the database
// revision and invalidating any derived query whose read-set includes it.
func SetInput[T any](db *Database, name, key string, value T) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rev++
	db.inputs[name+"|"+key] = &inputCell{value: value, changedAt: db.rev}
}

// GetInput reads back a previously set input (used by tests and by queries
// that want the raw input rather than going through a derived query).
func GetInput[T any](db *Database, name, key string) (T, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var zero T
	cell, ok := db.inputs[name+"|"+key]
	if !ok {
		return zero, false
	}
	v, ok := cell.value.(T)
	return v, ok
}

// Query is a typed handle to a registered derived computation.
type Query[V any] struct {
	name string
	db   *Database
}

// RegisterQuery registers a derived query under name. compute receives a
// Context that must be threaded through to any nested Query.Get call so the
// database can track dependencies and detect cycles.
func RegisterQuery[V any](db *Database, name string, compute func(ctx *Context, key string) (V, error)) *Query[V] {
	db.mu.Lock()
	db.queries[name] = &queryDef{
		name: name,
		compute: func(ctx *Context, key string) (any, error) {
			return compute(ctx, key)
		},
	}
	db.mu.Unlock()
	return &Query[V]{name: name, db: db}
}

// Get returns the memoized value for key, recomputing it (and recursively
// revalidating its dependencies) only if something it read has changed
// since it was last verified.
func (q *Query[V]) Get(ctx *Context, key string) (V, error) {
	var zero V
	val, _, err := q.db.resolve(ctx, q.name, key)
	if err != nil {
		return zero, err
	}
	v, ok := val.(V)
	if !ok {
		return zero, fmt.Errorf("querydb: query %q returned unexpected type %T", q.name, val)
	}
	return v, nil
}

// Context threads cycle-detection state and the current frame's dependency
// recorder through a chain of nested Query.Get calls. Create one with
// NewContext for each independent top-level request (e.g. one per LSP
// diagnostics request); never share a Context across concurrent goroutines.
type Context struct {
	stack []string
	frame *depFrame
}

type depFrame struct {
	deps []depRef
}

// NewContext starts a fresh dependency-tracking context for one top-level
// query invocation.
func NewContext() *Context {
	return &Context{}
}

// CyclicDependencyError is returned when a query transitively depends on
// itself (spec §4.1: "on cycle, the query fails with CyclicDependency
// containing the stack").
type CyclicDependencyError struct {
	Stack []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("querydb: cyclic dependency: %v", e.Stack)
}

func (db *Database) recordDep(ctx *Context, d depRef) {
	if ctx.frame != nil {
		ctx.frame.deps = append(ctx.frame.deps, d)
	}
}

// resolve returns (value, changedAt, error) for (name, key), recomputing or
// revalidating as needed, and records the access against ctx's current
// frame (if any) so the caller's own cache entry picks up the dependency.
func (db *Database) resolve(ctx *Context, name, key string) (any, Revision, error) {
	id := name + "|" + key
	for _, s := range ctx.stack {
		if s == id {
			stack := append(append([]string{}, ctx.stack...), id)
			return nil, 0, &CyclicDependencyError{Stack: stack}
		}
	}

	db.mu.RLock()
	entry, hasEntry := db.cache[id]
	curRev := db.rev
	db.mu.RUnlock()

	if hasEntry && entry.verifiedAt == curRev {
		db.recordDep(ctx, depRef{query: name, key: key})
		return entry.value, entry.changedAt, nil
	}

	if hasEntry {
		fresh, err := db.isFresh(ctx, entry)
		if err != nil {
			return nil, 0, err
		}
		if fresh {
			db.mu.Lock()
			entry.verifiedAt = curRev
			db.mu.Unlock()
			db.recordDep(ctx, depRef{query: name, key: key})
			return entry.value, entry.changedAt, nil
		}
	}

	db.mu.RLock()
	def, known := db.queries[name]
	db.mu.RUnlock()
	if !known {
		return nil, 0, fmt.Errorf("querydb: unknown query %q", name)
	}

	childCtx := &Context{
		stack: append(append([]string{}, ctx.stack...), id),
		frame: &depFrame{},
	}
	val, err := def.compute(childCtx, key)
	if err != nil {
		return nil, 0, err
	}

	db.mu.Lock()
	rev := db.rev
	changedAt := rev
	// Early cutoff: if the recomputed value is equal to what was cached
	// before, dependents don't need to see this as "changed" even though we
	// just re-verified it (spec's delta-diagnostics rationale generalizes
	// here: unrelated edits shouldn't cascade invalidation through a query
	// whose output they didn't actually affect).
	if hasEntry && reflect.DeepEqual(entry.value, val) {
		changedAt = entry.changedAt
	}
	db.cache[id] = &cacheEntry{value: val, verifiedAt: rev, changedAt: changedAt, deps: childCtx.frame.deps}
	db.mu.Unlock()

	db.recordDep(ctx, depRef{query: name, key: key})
	return val, changedAt, nil
}

// isFresh checks whether every dependency recorded the last time entry was
// computed is still unchanged as of entry.verifiedAt, recursively
// revalidating (and, if necessary, recomputing) query dependencies.
func (db *Database) isFresh(ctx *Context, entry *cacheEntry) (bool, error) {
	vctx := &Context{stack: ctx.stack}
	for _, d := range entry.deps {
		if d.input {
			db.mu.RLock()
			cell, ok := db.inputs[d.key]
			db.mu.RUnlock()
			if !ok || cell.changedAt > entry.verifiedAt {
				return false, nil
			}
			continue
		}
		_, changedAt, err := db.resolve(vctx, d.query, d.key)
		if err != nil {
			var cyc *CyclicDependencyError
			if asCyclic(err, &cyc) {
				return false, err
			}
			return false, err
		}
		if changedAt > entry.verifiedAt {
			return false, nil
		}
	}
	return true, nil
}

func asCyclic(err error, target **CyclicDependencyError) bool {
	c, ok := err.(*CyclicDependencyError)
	if ok {
		*target = c
	}
	return ok
}
