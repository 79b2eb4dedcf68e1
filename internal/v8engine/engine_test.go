//go:build v8

package v8engine

import (
	"sync"
	"testing"
	"time"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu   sync.Mutex
	m    map[string][]byte
	gets int
	hits int
}

func (c *memCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.m[key]
	if ok {
		c.hits++
	}
	return b, ok
}

func (c *memCache) Put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = data
}

func newTestContext(t *testing.T, cache core.CodeCache) (*isolate, core.Context) {
	t.Helper()
	b := New()
	require.NoError(t, b.Initialize(core.DefaultConfig()))
	iso, err := b.NewIsolate(core.IsolateConfig{StackTraceLimit: 10, CodeCache: cache})
	require.NoError(t, err)
	ctx, err := iso.NewContext()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx.Close()
		iso.Dispose()
	})
	return iso.(*isolate), ctx
}

func eval(t *testing.T, ctx core.Context, src string) core.Value {
	t.Helper()
	s, thrown := ctx.Compile("test.js", src)
	require.Nil(t, thrown)
	v, thrown := ctx.Run(s)
	require.Nil(t, thrown)
	return v
}

func TestDescribePrimitives(t *testing.T) {
	_, ctx := newTestContext(t, nil)

	cases := []struct {
		src  string
		want core.Primitive
	}{
		{"undefined", core.Primitive{Kind: core.KindUndefined}},
		{"null", core.Primitive{Kind: core.KindNull}},
		{"false", core.Primitive{Kind: core.KindBoolean}},
		{"2.5", core.Primitive{Kind: core.KindNumber, Number: 2.5}},
		{"'v8'", core.Primitive{Kind: core.KindString, String: "v8"}},
		{"2n ** 70n", core.Primitive{Kind: core.KindBigInt, String: "1180591620717411303424"}},
		{"Symbol()", core.Primitive{Kind: core.KindSymbol}},
		{"[]", core.Primitive{Kind: core.KindObject}},
		{"(() => 1)", core.Primitive{Kind: core.KindFunction}},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			assert.Equal(t, tc.want, ctx.Describe(eval(t, ctx, tc.src)))
		})
	}
}

func TestCallKeepsThrownValue(t *testing.T) {
	_, ctx := newTestContext(t, nil)
	fn := eval(t, ctx, "(function thrower() {\n  throw { code: 7 };\n})")

	_, thrown := ctx.Call(fn, ctx.Undefined())
	require.NotNil(t, thrown)
	assert.Equal(t, "[object Object]", thrown.Text)
	assert.Equal(t, core.KindObject, ctx.Describe(thrown.Exception).Kind)
}

func TestCallErrorFrames(t *testing.T) {
	_, ctx := newTestContext(t, nil)
	fn := eval(t, ctx, "(function boom() {\n  throw new TypeError('bad');\n})")

	_, thrown := ctx.Call(fn, ctx.Undefined())
	require.NotNil(t, thrown)
	assert.Equal(t, "TypeError: bad", thrown.Text)
	assert.Equal(t, "test.js", thrown.ScriptName)
	assert.Equal(t, 2, thrown.Line)
	require.NotEmpty(t, thrown.Frames)
	assert.Equal(t, "boom", thrown.Frames[0].FunctionName)
}

func TestRunErrorRebuildsException(t *testing.T) {
	_, ctx := newTestContext(t, nil)
	s, thrown := ctx.Compile("run.js", "null.x")
	require.Nil(t, thrown)
	_, thrown = ctx.Run(s)
	require.NotNil(t, thrown)
	assert.Contains(t, thrown.Text, "TypeError")
	assert.Equal(t, "run.js", thrown.ScriptName)
	assert.Equal(t, core.KindObject, ctx.Describe(thrown.Exception).Kind)
}

func TestSyntaxError(t *testing.T) {
	_, ctx := newTestContext(t, nil)
	_, thrown := ctx.Compile("bad.js", "let = = 1;")
	require.NotNil(t, thrown)
	assert.Contains(t, thrown.Text, "SyntaxError")
}

func TestNativeFunction(t *testing.T) {
	_, ctx := newTestContext(t, nil)
	fn, err := ctx.NewFunction("twice", func(args []core.Value) (core.Value, core.Value) {
		n := ctx.Describe(args[0]).Number
		if n < 0 {
			return nil, ctx.String("negative")
		}
		return ctx.Number(n * 2), nil
	})
	require.NoError(t, err)

	v, thrown := ctx.Call(fn, ctx.Undefined(), ctx.Number(21))
	require.Nil(t, thrown)
	assert.Equal(t, 42.0, ctx.Describe(v).Number)

	_, thrown = ctx.Call(fn, ctx.Undefined(), ctx.Number(-1))
	require.NotNil(t, thrown)
	assert.Equal(t, "negative", thrown.Text)
}

func TestArrayBufferRoundTrip(t *testing.T) {
	_, ctx := newTestContext(t, nil)
	buf, thrown := ctx.NewArrayBuffer([]byte{1, 2, 3})
	require.Nil(t, thrown)

	got, ok := ctx.ArrayBufferBytes(buf)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)

	_, ok = ctx.ArrayBufferBytes(ctx.Number(1))
	assert.False(t, ok)
}

func TestPromiseState(t *testing.T) {
	_, ctx := newTestContext(t, nil)
	pi := ctx.(core.PromiseInspector)

	state, res, ok := pi.PromiseState(eval(t, ctx, "Promise.resolve(5)"))
	require.True(t, ok)
	assert.Equal(t, core.PromiseFulfilled, state)
	assert.Equal(t, 5.0, ctx.Describe(res).Number)

	state, _, ok = pi.PromiseState(eval(t, ctx, "new Promise(() => {})"))
	require.True(t, ok)
	assert.Equal(t, core.PromisePending, state)
}

func TestCodeCacheWritten(t *testing.T) {
	cache := &memCache{m: map[string][]byte{}}
	_, ctx := newTestContext(t, cache)
	eval(t, ctx, "function f() { return 1 } f()")
	assert.Len(t, cache.m, 1)

	eval(t, ctx, "function f() { return 1 } f()")
	assert.Equal(t, 1, cache.hits)
}

func TestTerminate(t *testing.T) {
	iso, ctx := newTestContext(t, nil)
	s, thrown := ctx.Compile("loop.js", "for (;;) {}")
	require.Nil(t, thrown)

	time.AfterFunc(50*time.Millisecond, iso.TerminateExecution)
	_, thrown = ctx.Run(s)
	require.NotNil(t, thrown)
	assert.Equal(t, "Error: execution terminated", thrown.Text)
}
