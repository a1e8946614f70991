// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// ThreadContextRegistry tracks every live ThreadContext. Registration and
// removal take a short-held mutex (spec.md §5: "short-critical-section
// lock for registration only"); the backend's hot drain loop never takes
// that lock directly. Instead it polls dirty, a single atomic flag flipped
// on every register/remove, and only rebuilds its local snapshot — via
// Snapshot — when dirty says the set has changed since the last rebuild.
type ThreadContextRegistry struct {
	mu    sync.Mutex
	byID  map[uint64]*ThreadContext
	nextID uint64

	dirty atomix.Bool
}

// NewThreadContextRegistry returns an empty registry.
func NewThreadContextRegistry() *ThreadContextRegistry {
	return &ThreadContextRegistry{byID: make(map[uint64]*ThreadContext)}
}

// Register creates and inserts a new ThreadContext wrapping q, returning
// it for the caller (a producer goroutine) to hold onto for the rest of
// its lifetime.
func (r *ThreadContextRegistry) Register(name string, q Queue) *ThreadContext {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	tc := newThreadContext(id, name, q)
	r.byID[id] = tc
	r.mu.Unlock()

	r.dirty.StoreRelease(true)
	return tc
}

// Remove drops tc from the registry. Callers must only do this after
// observing tc.ShuttingDown() and draining its queue to empty — Remove
// itself does not check either condition.
func (r *ThreadContextRegistry) Remove(tc *ThreadContext) {
	r.mu.Lock()
	delete(r.byID, tc.id)
	r.mu.Unlock()

	r.dirty.StoreRelease(true)
}

// Dirty reports whether the registered set has changed since the last
// call to Snapshot, without taking the registration lock.
func (r *ThreadContextRegistry) Dirty() bool {
	return r.dirty.LoadAcquire()
}

// Snapshot clears the dirty flag and returns every currently registered
// ThreadContext. The backend calls this only when Dirty reports true,
// holding the registration lock for the single map copy rather than for
// every drain iteration.
func (r *ThreadContextRegistry) Snapshot() []*ThreadContext {
	r.mu.Lock()
	r.dirty.StoreRelease(false)
	out := make([]*ThreadContext, 0, len(r.byID))
	for _, tc := range r.byID {
		out = append(out, tc)
	}
	r.mu.Unlock()

	return out
}

// LoggerRegistry maps logger names to Logger instances, the same
// short-critical-section-lock pattern as ThreadContextRegistry applied to
// a different set. Multiple producer goroutines may call CreateOrGet
// concurrently for the same name; exactly one Logger is ever created per
// name.
type LoggerRegistry struct {
	mu      sync.Mutex
	byName  map[string]*Logger
	backend *RdtscClock
}

// NewLoggerRegistry returns an empty registry. clock is shared by every
// Tsc-source Logger it creates; it may be nil if no logger in this
// registry uses Tsc.
func NewLoggerRegistry(clock *RdtscClock) *LoggerRegistry {
	return &LoggerRegistry{byName: make(map[string]*Logger), backend: clock}
}

// CreateOrGet returns the named Logger, creating it with opts if it does
// not already exist. A pre-existing Logger keeps its original options —
// opts is only consulted on first creation, matching the teacher's
// create-or-get idiom for other shared, name-keyed resources.
func (r *LoggerRegistry) CreateOrGet(name string, opts LoggerOptions, registry *ThreadContextRegistry) *Logger {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lg, ok := r.byName[name]; ok {
		return lg
	}
	lg := newLogger(name, opts, registry, r.backend)
	r.byName[name] = lg
	return lg
}

// Get returns the named Logger and whether it exists, without creating it.
func (r *LoggerRegistry) Get(name string) (*Logger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lg, ok := r.byName[name]
	return lg, ok
}

// Remove invalidates and drops the named Logger. Any ThreadContext still
// holding a reference to it will see Logger.Valid return false on its next
// emit attempt and count the record as dropped rather than panic.
func (r *LoggerRegistry) Remove(name string) {
	r.mu.Lock()
	lg, ok := r.byName[name]
	if ok {
		delete(r.byName, name)
	}
	r.mu.Unlock()

	if ok {
		lg.invalidate()
	}
}

// Names returns every currently registered logger name.
func (r *LoggerRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}
