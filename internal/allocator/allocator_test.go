package allocator

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAllocateAndFree(t *testing.T) {
	a := NewDefault(1 << 20)

	b := a.Allocate(128)
	require.Len(t, b, 128)
	for _, c := range b {
		require.Zero(t, c)
	}
	s := a.Stats()
	assert.Equal(t, 1, s.LiveBlocks)
	assert.Equal(t, int64(128), s.LiveBytes)

	a.Free(Addr(b), len(b), FreeModeFree)
	a.Free(Addr(b), len(b), FreeModeFree)

	s = a.Stats()
	assert.Equal(t, 0, s.LiveBlocks)
	assert.Equal(t, int64(0), s.LiveBytes)
	assert.Equal(t, uint64(1), s.Freed)
}

func TestDefaultReserveHasNoLength(t *testing.T) {
	a := NewDefault(1 << 20)
	b := a.Reserve(4096)
	require.NotNil(t, b)
	assert.Len(t, b, 0)
	assert.Equal(t, 4096, cap(b))
	assert.Equal(t, int64(4096), a.Stats().LiveBytes)

	a.Free(Addr(b), cap(b), FreeModeReserve)
	assert.Equal(t, int64(0), a.Stats().LiveBytes)
}

func TestDefaultLimitReturnsNil(t *testing.T) {
	a := NewDefault(100)
	require.NotNil(t, a.Allocate(60))
	assert.Nil(t, a.Allocate(60))
	assert.Nil(t, a.AllocateUninitialized(-1))
	assert.Equal(t, uint64(2), a.Stats().Failed)
}

func TestDefaultLimitFromPhysicalMemory(t *testing.T) {
	assert.Greater(t, NewDefault(0).Limit(), int64(0))
}

func TestZeroLengthAllocation(t *testing.T) {
	a := NewDefault(10)
	b := a.Allocate(0)
	require.NotNil(t, b)
	assert.Len(t, b, 0)
	a.Free(Addr(b), 0, FreeModeFree)
}

func TestHooksOverrideOnlyWhatTheyDefine(t *testing.T) {
	base := NewDefault(1 << 20)
	var calls int
	var gotUD any
	a := NewHooked(Hooks{
		UserData: 7,
		Allocate: func(ud any, length int, super func(int) []byte) []byte {
			calls++
			gotUD = ud
			b := super(length)
			for i := range b {
				b[i] = 0xAA
			}
			return b
		},
	}, base)

	b := a.Allocate(4)
	assert.Equal(t, []byte{0xAA, 0xAA, 0xAA, 0xAA}, b)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 7, gotUD)

	u := a.AllocateUninitialized(8)
	require.Len(t, u, 8)
	assert.Equal(t, 1, calls)

	a.Free(Addr(b), 4, FreeModeFree)
	a.Free(Addr(u), 8, FreeModeFree)
	assert.Equal(t, 0, base.Stats().LiveBlocks)
	assert.True(t, a.SetProtection(0, 0, ProtectionNoAccess))
}

func TestHookFailurePropagatesNil(t *testing.T) {
	a := NewHooked(Hooks{
		Allocate: func(any, int, func(int) []byte) []byte { return nil },
	}, nil)
	assert.Nil(t, a.Allocate(16))
}

func TestHookedFreeDecoratesSuper(t *testing.T) {
	base := NewDefault(1 << 20)
	var freed []uintptr
	a := NewHooked(Hooks{
		Free: func(ud any, addr uintptr, length int, mode FreeMode, super func(uintptr, int, FreeMode)) {
			freed = append(freed, addr)
			super(addr, length, mode)
		},
	}, base)

	b := a.Allocate(10)
	a.Free(Addr(b), 10, FreeModeFree)
	assert.Equal(t, []uintptr{Addr(b)}, freed)
	assert.Equal(t, uint64(1), base.Stats().Freed)
}

func TestHookedCloseRunsDestroy(t *testing.T) {
	var destroyed int
	a := NewHooked(Hooks{Destroy: func(any) { destroyed++ }}, nil)
	a.Close()
	assert.Equal(t, 1, destroyed)

	bad := NewHooked(Hooks{Destroy: func(any) { panic("nope") }}, nil)
	assert.Panics(t, bad.Close)
}

func TestFreeFromManyGoroutines(t *testing.T) {
	a := NewDefault(1 << 24)
	blocks := make([][]byte, 64)
	for i := range blocks {
		blocks[i] = a.Allocate(256)
	}

	var wg sync.WaitGroup
	for _, b := range blocks {
		wg.Add(1)
		go func(b []byte) {
			defer wg.Done()
			a.Free(Addr(b), len(b), FreeModeFree)
		}(b)
	}
	wg.Wait()
	assert.Equal(t, 0, a.Stats().LiveBlocks)
	assert.Equal(t, uint64(64), a.Stats().Freed)
}

func TestReleaseOnCollect(t *testing.T) {
	a := NewDefault(1 << 20)
	func() {
		b := a.Allocate(1024)
		ReleaseOnCollect(a, b, FreeModeFree)
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return a.Stats().LiveBlocks == 0
	}, 5*time.Second, 10*time.Millisecond)
}
