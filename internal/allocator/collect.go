package allocator

import (
	"runtime"
	"unsafe"
)

type block struct {
	addr   uintptr
	length int
}

// ReleaseOnCollect arranges for b to be freed through a once the Go
// garbage collector finds its backing array unreachable. The cleanup runs
// on a runtime goroutine, which is why Free must be goroutine safe.
func ReleaseOnCollect(a Allocator, b []byte, mode FreeMode) {
	if cap(b) == 0 {
		return
	}
	runtime.AddCleanup(unsafe.SliceData(b), func(blk block) {
		a.Free(blk.addr, blk.length, mode)
	}, block{addr: Addr(b), length: cap(b)})
}
