package jsbridge

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reinitialize restores the engine TestMain set up.
func reinitialize(t *testing.T) {
	t.Helper()
	resetEngine()
	require.NoError(t, Initialize())
}

func TestLifecycleOrder(t *testing.T) {
	resetEngine()
	t.Cleanup(func() { reinitialize(t) })

	_, err := NewIsolate()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Nil(t, CurrentPlatform())
	assert.Nil(t, DefaultAllocator())

	var platformDestroyed, allocatorDestroyed atomic.Int32
	plat := NewHookedPlatform(PlatformHooks{
		Destroy: func(any) { platformDestroyed.Add(1) },
	}, nil)
	alloc := NewHookedAllocator(AllocatorHooks{
		Destroy: func(any) { allocatorDestroyed.Add(1) },
	}, nil)

	require.NoError(t, Initialize(WithPlatform(plat), WithAllocator(alloc)))
	assert.Same(t, plat, CurrentPlatform())
	assert.Same(t, alloc, DefaultAllocator())

	err = Initialize()
	assert.ErrorIs(t, err, ErrLifecycle)

	iso, err := NewIsolate()
	require.NoError(t, err)
	_, err = iso.NewContext()
	require.NoError(t, err)

	Dispose()
	assert.Equal(t, IsolateDisposed, iso.State(), "Dispose tears down live isolates")
	assert.EqualValues(t, 1, platformDestroyed.Load())
	assert.EqualValues(t, 1, allocatorDestroyed.Load())
	assert.Nil(t, CurrentPlatform(), "a shut down platform is not handed out")
	assert.Nil(t, DefaultAllocator())

	err = Initialize()
	assert.True(t, errors.Is(err, ErrLifecycle))
	_, err = NewIsolate()
	assert.ErrorIs(t, err, ErrNotInitialized)

	// A second Dispose only logs.
	Dispose()
	assert.EqualValues(t, 1, platformDestroyed.Load())
}

func TestEngineName(t *testing.T) {
	assert.Contains(t, []string{"goja", "v8", "quickjs"}, EngineName())
	assert.Equal(t, DefaultStackTraceLimit, CurrentConfig().StackTraceLimit)
}

func TestIsolateState(t *testing.T) {
	iso, ctx := newTestContext(t)
	assert.Equal(t, IsolateCreated, iso.State())
	assert.Nil(t, iso.EnteredContext())

	ctx.Enter()
	assert.Equal(t, IsolateActive, iso.State())
	assert.Same(t, ctx, iso.EnteredContext())
	ctx.Exit()
	assert.Equal(t, IsolateCreated, iso.State())
	assert.Equal(t, "created", iso.State().String())

	iso.Dispose()
	assert.Equal(t, IsolateDisposed, iso.State())
	iso.Dispose() // no-op
}

func TestIsolatesAreIndependent(t *testing.T) {
	_, a := newTestContext(t)
	_, b := newTestContext(t)

	mustEval(t, a, "globalThis.shared = 1")
	h := mustEval(t, b, "typeof globalThis.shared")
	assert.Equal(t, "undefined", mustString(t, b, h))
}

func TestCodeCachePath(t *testing.T) {
	resetEngine()
	t.Cleanup(func() { reinitialize(t) })

	cfg := DefaultConfig()
	cfg.CodeCachePath = filepath.Join(t.TempDir(), "scripts.db")
	require.NoError(t, Initialize(WithConfig(cfg)))

	iso, ctx := newTestContext(t)
	for i := 0; i < 2; i++ {
		var ec ExceptionContext
		s := ctx.CompileModule(&ec, "cached.js", "export default 1;", TransformOptions{Format: FormatModule})
		require.NotEqual(t, NoHandle, s)
		iso.Release(s)
	}
	stats := engine.cache.Stats()
	assert.GreaterOrEqual(t, stats.Hits, int64(1))
	assert.GreaterOrEqual(t, stats.Puts, int64(1))
}
