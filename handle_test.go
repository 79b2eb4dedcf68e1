package jsbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRelease(t *testing.T) {
	iso, ctx := newTestContext(t)
	base := iso.HandleCount()

	h := ctx.String("kept")
	assert.Equal(t, base+1, iso.HandleCount())
	assert.Equal(t, "kept", mustString(t, ctx, h))

	iso.Release(h)
	assert.Equal(t, base, iso.HandleCount())
	iso.Release(NoHandle)

	assert.Panics(t, func() { iso.Release(h) }, "double release")
	assert.Panics(t, func() { ctx.TypeOf(h) }, "use after release")
}

func TestScopeLocals(t *testing.T) {
	iso, ctx := newTestContext(t)
	obj := mustEval(t, ctx, "({ n: 7 })")

	outer := iso.OpenScope()
	l := outer.Local(obj)
	assert.Same(t, ctx, l.Context())
	assert.False(t, l.IsEmpty())

	inner := iso.OpenScope()
	assert.Panics(t, func() { outer.Close() }, "closing out of order")
	inner.Close()

	kept := outer.Persist(l)
	assert.Equal(t, NoHandle, outer.PersistMaybe(Local{}, true))
	assert.Equal(t, NoHandle, outer.PersistMaybe(l, false))
	outer.Close()
	outer.Close() // idempotent

	assert.Panics(t, func() { outer.Persist(l) }, "local read after close")

	n, err := ctx.GetProperty(kept, "n")
	require.NoError(t, err)
	assert.EqualValues(t, 7, mustInt(t, ctx, n))
}

func TestFatalErrorHandler(t *testing.T) {
	iso, ctx := newTestContext(t)

	var location, message string
	iso.SetFatalErrorHandler(func(loc, msg string) { location, message = loc, msg })

	assert.Panics(t, func() { ctx.Exit() })
	assert.Equal(t, "Context.Exit", location)
	assert.Contains(t, message, "innermost")
}

func TestContextOutlivesDispose(t *testing.T) {
	iso, err := NewIsolate()
	require.NoError(t, err)
	defer iso.Dispose()
	ctx, err := iso.NewContext()
	require.NoError(t, err)

	h := ctx.NewObject()
	ctx.Dispose()
	assert.Equal(t, KindObject, ctx.TypeOf(h), "a live handle keeps the context open")
	assert.Panics(t, ctx.Dispose)

	iso.Release(h)
	assert.Panics(t, func() { ctx.NewObject() }, "closed once the last handle is gone")
}

func TestNestedEnter(t *testing.T) {
	iso, a := newTestContext(t)
	b, err := iso.NewContext()
	require.NoError(t, err)

	a.Enter()
	b.Enter()
	assert.Equal(t, 2, iso.ContextDepth())
	assert.Same(t, b, iso.EnteredContext())
	b.Exit()
	a.Exit()
	assert.Zero(t, iso.ContextDepth())
}

func TestCrossContextHandle(t *testing.T) {
	iso, a := newTestContext(t)
	b, err := iso.NewContext()
	require.NoError(t, err)

	h := a.NewObject()
	assert.Panics(t, func() { b.TypeOf(h) })

	// A scope can still open it; the Local belongs to a.
	s := iso.OpenScope()
	defer s.Close()
	assert.Same(t, a, s.Local(h).Context())
}
