//go:build !v8 && !quickjs

package gojaengine

import (
	"testing"
	"time"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) (*isolate, core.Context) {
	t.Helper()
	b := New()
	require.NoError(t, b.Initialize(core.DefaultConfig()))
	iso, err := b.NewIsolate(core.IsolateConfig{StackTraceLimit: 10})
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
	_, ctx := newTestContext(t)

	cases := []struct {
		src  string
		want core.Primitive
	}{
		{"undefined", core.Primitive{Kind: core.KindUndefined}},
		{"null", core.Primitive{Kind: core.KindNull}},
		{"true", core.Primitive{Kind: core.KindBoolean, Bool: true}},
		{"1.5", core.Primitive{Kind: core.KindNumber, Number: 1.5}},
		{"42", core.Primitive{Kind: core.KindNumber, Number: 42}},
		{"'hi'", core.Primitive{Kind: core.KindString, String: "hi"}},
		{"10n ** 20n", core.Primitive{Kind: core.KindBigInt, String: "100000000000000000000"}},
		{"Symbol('s')", core.Primitive{Kind: core.KindSymbol}},
		{"({})", core.Primitive{Kind: core.KindObject}},
		{"(function () {})", core.Primitive{Kind: core.KindFunction}},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			assert.Equal(t, tc.want, ctx.Describe(eval(t, ctx, tc.src)))
		})
	}
}

func TestThrownCarriesFrames(t *testing.T) {
	_, ctx := newTestContext(t)
	s, thrown := ctx.Compile("boom.js", "function f() {\n  throw new Error('boom');\n}\nf();")
	require.Nil(t, thrown)

	_, thrown = ctx.Run(s)
	require.NotNil(t, thrown)
	assert.Equal(t, "Error: boom", thrown.Text)
	assert.Equal(t, "boom.js", thrown.ScriptName)
	assert.Equal(t, 2, thrown.Line)
	require.NotEmpty(t, thrown.Frames)
	assert.Equal(t, "f", thrown.Frames[0].FunctionName)
}

func TestSyntaxErrorPosition(t *testing.T) {
	_, ctx := newTestContext(t)
	_, thrown := ctx.Compile("bad.js", "var x = ;")
	require.NotNil(t, thrown)
	assert.Contains(t, thrown.Text, "SyntaxError: ")
	assert.Equal(t, "bad.js", thrown.ScriptName)
	assert.Equal(t, 1, thrown.Line)
	assert.Equal(t, core.KindObject, ctx.Describe(thrown.Exception).Kind)
}

func TestNativeFunctionThrowAndReturn(t *testing.T) {
	_, ctx := newTestContext(t)
	fn, err := ctx.NewFunction("twice", func(args []core.Value) (core.Value, core.Value) {
		p := ctx.Describe(args[0])
		if p.Kind != core.KindNumber {
			return nil, ctx.String("not a number")
		}
		return ctx.Number(p.Number * 2), nil
	})
	require.NoError(t, err)

	v, thrown := ctx.Call(fn, ctx.Undefined(), ctx.Number(21))
	require.Nil(t, thrown)
	assert.Equal(t, float64(42), ctx.Describe(v).Number)

	_, thrown = ctx.Call(fn, ctx.Undefined(), ctx.String("x"))
	require.NotNil(t, thrown)
	assert.Equal(t, "not a number", thrown.Text)
}

func TestCallNonFunction(t *testing.T) {
	_, ctx := newTestContext(t)
	_, thrown := ctx.Call(ctx.Number(1), ctx.Undefined())
	require.NotNil(t, thrown)
	assert.Contains(t, thrown.Text, "TypeError")
}

func TestArrayBufferSharesAndDetaches(t *testing.T) {
	_, ctx := newTestContext(t)
	data := []byte{1, 2, 3}
	buf, thrown := ctx.NewArrayBuffer(data)
	require.Nil(t, thrown)

	got, ok := ctx.ArrayBufferBytes(buf)
	require.True(t, ok)
	data[0] = 9
	assert.Equal(t, byte(9), got[0])

	d := ctx.(core.Detacher)
	assert.True(t, d.DetachArrayBuffer(buf))
	_, ok = ctx.ArrayBufferBytes(buf)
	assert.False(t, ok)
}

func TestPromiseState(t *testing.T) {
	_, ctx := newTestContext(t)
	pi := ctx.(core.PromiseInspector)

	state, res, ok := pi.PromiseState(eval(t, ctx, "Promise.resolve(7)"))
	require.True(t, ok)
	assert.Equal(t, core.PromiseFulfilled, state)
	assert.Equal(t, float64(7), ctx.Describe(res).Number)

	state, _, ok = pi.PromiseState(eval(t, ctx, "new Promise(function () {})"))
	require.True(t, ok)
	assert.Equal(t, core.PromisePending, state)

	_, _, ok = pi.PromiseState(eval(t, ctx, "({})"))
	assert.False(t, ok)
}

func TestPrecompileOffThread(t *testing.T) {
	_, ctx := newTestContext(t)
	pc := ctx.(core.Precompiler)

	type result struct {
		pre any
		err error
	}
	ch := make(chan result, 1)
	go func() {
		pre, err := pc.Precompile("bg.js", "6 * 7")
		ch <- result{pre, err}
	}()
	r := <-ch

	s, thrown := pc.Adopt("bg.js", r.pre, r.err)
	require.Nil(t, thrown)
	v, thrown := ctx.Run(s)
	require.Nil(t, thrown)
	assert.Equal(t, float64(42), ctx.Describe(v).Number)
}

func TestTerminateExecution(t *testing.T) {
	iso, ctx := newTestContext(t)
	s, thrown := ctx.Compile("loop.js", "for (;;) {}")
	require.Nil(t, thrown)

	timer := time.AfterFunc(50*time.Millisecond, iso.TerminateExecution)
	defer timer.Stop()

	_, thrown = ctx.Run(s)
	require.NotNil(t, thrown)
	assert.Equal(t, "Error: execution terminated", thrown.Text)

	v := eval(t, ctx, "1 + 1")
	assert.Equal(t, float64(2), ctx.Describe(v).Number)
}
