package jsbridge

import (
	"sync"

	"github.com/cryguy/jsbridge/internal/core"
)

// Handle is a durable reference owned by the host. It stays valid until it
// is passed to Isolate.Release, which must happen exactly once.
type Handle uint64

// NoHandle is the absent handle.
const NoHandle Handle = 0

type handleKind uint8

const (
	handleValue handleKind = iota + 1
	handleMessage
	handleScript
)

func (k handleKind) String() string {
	switch k {
	case handleValue:
		return "value"
	case handleMessage:
		return "message"
	case handleScript:
		return "script"
	}
	return "unknown"
}

type handleEntry struct {
	kind   handleKind
	ctx    *Context // nil for messages
	value  core.Value
	script core.Script
	name   string // script name
	msg    *Message
}

// handleTable is guarded because collector callbacks may inspect it while
// the owning goroutine runs.
type handleTable struct {
	mu      sync.Mutex
	next    uint64
	entries map[Handle]*handleEntry
}

func newHandleTable() *handleTable {
	return &handleTable{entries: make(map[Handle]*handleEntry)}
}

func (t *handleTable) add(e *handleEntry) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := Handle(t.next)
	t.entries[h] = e
	return h
}

func (t *handleTable) get(h Handle, kind handleKind) *handleEntry {
	t.mu.Lock()
	e, ok := t.entries[h]
	t.mu.Unlock()
	if !ok {
		violation("handle %d is not live", h)
	}
	if e.kind != kind {
		violation("handle %d is a %s handle, not a %s handle", h, e.kind, kind)
	}
	return e
}

func (t *handleTable) remove(h Handle) *handleEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok {
		violation("release of handle %d that is not live", h)
	}
	delete(t.entries, h)
	return e
}

func (t *handleTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// drain removes every entry.
func (t *handleTable) drain() []*handleEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*handleEntry, 0, len(t.entries))
	for h, e := range t.entries {
		out = append(out, e)
		delete(t.entries, h)
	}
	return out
}
