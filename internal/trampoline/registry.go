package trampoline

import (
	"sync"
	"sync/atomic"
)

// Registry maps opaque ids to Go values. Ids are never reused and 0 is
// never issued, so a zero slot always means "absent". Safe for concurrent
// use: GC cleanups delete from it off the isolate goroutine.
type Registry struct {
	counter atomic.Uint64
	size    atomic.Int64
	entries sync.Map // uint64 -> any
}

// Store adds v and returns its id.
func (r *Registry) Store(v any) uint64 {
	id := r.counter.Add(1)
	r.entries.Store(id, v)
	r.size.Add(1)
	return id
}

// Load returns the value stored under id.
func (r *Registry) Load(id uint64) (any, bool) {
	if id == 0 {
		return nil, false
	}
	return r.entries.Load(id)
}

// Delete removes id and reports whether it was present.
func (r *Registry) Delete(id uint64) bool {
	if id == 0 {
		return false
	}
	if _, ok := r.entries.LoadAndDelete(id); ok {
		r.size.Add(-1)
		return true
	}
	return false
}

// Len returns the number of live entries.
func (r *Registry) Len() int { return int(r.size.Load()) }

// Drain removes every entry, calling fn for each in no particular order.
func (r *Registry) Drain(fn func(id uint64, v any)) {
	r.entries.Range(func(k, v any) bool {
		id := k.(uint64)
		if r.Delete(id) && fn != nil {
			fn(id, v)
		}
		return true
	})
}
