// Package allocator supplies ArrayBuffer backing stores for buffers created
// through the bridge.
package allocator

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pbnjay/memory"
	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/internal/core"
)

// FreeMode tells Free whether the block was committed or only reserved.
type FreeMode uint8

const (
	FreeModeFree FreeMode = iota
	FreeModeReserve
)

// Protection is the access mode requested through SetProtection.
type Protection uint8

const (
	ProtectionNoAccess Protection = iota
	ProtectionReadWrite
)

// Allocator is the backing-store contract. A nil slice from any allocating
// method means failure and must be propagated, never replaced.
type Allocator interface {
	// Allocate returns length zeroed bytes.
	Allocate(length int) []byte
	// AllocateUninitialized returns length bytes with unspecified contents.
	AllocateUninitialized(length int) []byte
	// Reserve returns a zero-length slice with capacity length.
	Reserve(length int) []byte
	// Free releases a block by address. Safe to call from any goroutine.
	Free(addr uintptr, length int, mode FreeMode)
	// SetProtection changes the access mode of a reserved range.
	SetProtection(addr uintptr, length int, p Protection) bool
}

// Addr returns the address Free expects for b.
func Addr(b []byte) uintptr {
	if cap(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// Stats reports the default allocator's bookkeeping.
type Stats struct {
	LiveBlocks int
	LiveBytes  int64
	Allocated  uint64 // total successful allocations
	Freed      uint64
	Failed     uint64
}

// Default is the built-in allocator. Go owns the memory; Default tracks
// live blocks so every block is freed exactly once and the byte limit holds.
type Default struct {
	limit int64

	mu    sync.Mutex
	live  map[uintptr]int
	bytes int64

	allocated atomic.Uint64
	freed     atomic.Uint64
	failed    atomic.Uint64
}

var _ Allocator = (*Default)(nil)

// NewDefault returns an allocator capped at limit live bytes. A limit of 0
// uses the machine's physical memory.
func NewDefault(limit int64) *Default {
	if limit <= 0 {
		limit = int64(memory.TotalMemory())
		if limit <= 0 {
			limit = 1 << 62
		}
	}
	return &Default{limit: limit, live: make(map[uintptr]int)}
}

// Limit returns the live-byte cap.
func (a *Default) Limit() int64 { return a.limit }

func (a *Default) Allocate(length int) []byte {
	return a.alloc(length, length)
}

// AllocateUninitialized shares Allocate's path: Go zeroes all memory, so
// "unspecified" contents happen to be zero.
func (a *Default) AllocateUninitialized(length int) []byte {
	return a.alloc(length, length)
}

func (a *Default) Reserve(length int) []byte {
	return a.alloc(0, length)
}

func (a *Default) alloc(length, capacity int) []byte {
	if length < 0 || capacity < length {
		a.failed.Add(1)
		return nil
	}
	a.mu.Lock()
	if a.bytes+int64(capacity) > a.limit {
		a.mu.Unlock()
		a.failed.Add(1)
		return nil
	}
	a.bytes += int64(capacity)
	a.mu.Unlock()

	if capacity == 0 {
		a.allocated.Add(1)
		return []byte{}
	}
	b := make([]byte, length, capacity)

	a.mu.Lock()
	a.live[Addr(b)] = capacity
	a.mu.Unlock()
	a.allocated.Add(1)
	return b
}

// Free forgets a block. Unknown or already freed addresses are logged and
// ignored.
func (a *Default) Free(addr uintptr, length int, mode FreeMode) {
	if addr == 0 {
		return
	}
	a.mu.Lock()
	n, ok := a.live[addr]
	if ok {
		delete(a.live, addr)
		a.bytes -= int64(n)
	}
	a.mu.Unlock()

	if !ok {
		core.Logger().Warn("allocator: free of unknown block",
			zap.Uintptr("addr", addr), zap.Int("length", length), zap.Uint8("mode", uint8(mode)))
		return
	}
	a.freed.Add(1)
}

// SetProtection is accepted and ignored: Go memory cannot be remapped.
func (a *Default) SetProtection(addr uintptr, length int, p Protection) bool {
	return true
}

// Stats returns a snapshot of the allocator's counters.
func (a *Default) Stats() Stats {
	a.mu.Lock()
	s := Stats{LiveBlocks: len(a.live), LiveBytes: a.bytes}
	a.mu.Unlock()
	s.Allocated = a.allocated.Load()
	s.Freed = a.freed.Load()
	s.Failed = a.failed.Load()
	return s
}
