package jsbridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExceptionMessage(t *testing.T) {
	iso, ctx := newTestContext(t)

	var seen []*Message
	iso.AddMessageListener(func(m *Message) { seen = append(seen, m) })

	src := "function fail() {\n  throw new Error('boom');\n}\nfail();\n"
	var ec ExceptionContext
	script := ctx.Compile(&ec, "fail.js", src)
	require.NotEqual(t, NoHandle, script)
	assert.False(t, ec.Threw())

	res := ctx.Run(&ec, script)
	assert.Equal(t, NoHandle, res)
	require.True(t, ec.Threw())

	msg := iso.Message(ec.Message)
	assert.Equal(t, "Uncaught Error: boom", msg.Text)
	assert.Equal(t, "fail.js", msg.ScriptName)
	assert.Equal(t, 2, msg.Line)
	assert.Equal(t, "  throw new Error('boom');", msg.SourceLine)
	require.NotEmpty(t, msg.Frames)
	assert.Equal(t, "fail", msg.Frames[0].FunctionName)
	assert.Contains(t, msg.StackTrace(), "at fail (fail.js:2:")

	assert.Equal(t, KindError, ctx.TypeOf(ec.Exception))
	text, err := ctx.GetProperty(ec.Exception, "message")
	require.NoError(t, err)
	assert.Equal(t, "boom", mustString(t, ctx, text))

	require.Len(t, seen, 1)
	assert.Equal(t, msg.Text, seen[0].Text)

	ec.Reset(iso)
	assert.False(t, ec.Threw())
	assert.Equal(t, NoHandle, ec.Message)
}

func TestExceptionContextKeepsLastThrow(t *testing.T) {
	iso, ctx := newTestContext(t)
	base := iso.HandleCount()

	var ec ExceptionContext
	for _, src := range []string{"throw 1", "throw 2"} {
		s := ctx.Compile(&ec, "t.js", src)
		ctx.Run(&ec, s)
		iso.Release(s)
	}
	require.True(t, ec.Threw())
	assert.EqualValues(t, 2, mustInt(t, ctx, ec.Exception))
	assert.Equal(t, base+2, iso.HandleCount(), "only the last exception and message are held")
	ec.Reset(iso)
	assert.Equal(t, base, iso.HandleCount())
}

func TestSyntaxErrorAtCompile(t *testing.T) {
	iso, ctx := newTestContext(t)

	var ec ExceptionContext
	s := ctx.Compile(&ec, "bad.js", "let = = 1;")
	assert.Equal(t, NoHandle, s)
	require.True(t, ec.Threw())
	msg := iso.Message(ec.Message)
	assert.Contains(t, msg.Text, "SyntaxError")
	assert.Equal(t, "bad.js", msg.ScriptName)
	assert.Equal(t, 1, msg.Line)
	ec.Reset(iso)
}

func TestExceptionError(t *testing.T) {
	iso, ctx := newTestContext(t)

	_, err := ctx.Eval("e.js", "null.x")
	var ee *ExceptionError
	require.True(t, errors.As(err, &ee))
	assert.Contains(t, ee.Error(), "TypeError")
	assert.Equal(t, KindError, ctx.TypeOf(ee.Exception))
	iso.Release(ee.Exception)

	obj := ctx.NewObject()
	h, err := ctx.GetProperty(obj, "missing")
	require.NoError(t, err)
	assert.Equal(t, KindUndefined, ctx.TypeOf(h))
}

func TestThrowingConversion(t *testing.T) {
	iso, ctx := newTestContext(t)

	h := mustEval(t, ctx, "({ valueOf() { throw new RangeError('no number') } })")
	var ec ExceptionContext
	m := ctx.NumberValue(&ec, h)
	assert.False(t, m.Valid)
	require.True(t, ec.Threw())
	assert.Equal(t, "Uncaught RangeError: no number", iso.Message(ec.Message).Text)
	ec.Reset(iso)

	_, err := ctx.AsString(mustEval(t, ctx, "({ toString() { throw new Error('no string') } })"))
	var ee *ExceptionError
	assert.ErrorAs(t, err, &ee)
}

func TestStackTraceLimit(t *testing.T) {
	iso, ctx := newTestContext(t)
	iso.cfg.StackTraceLimit = 2

	var ec ExceptionContext
	s := ctx.Compile(&ec, "deep.js", "function f(n) { if (n === 0) throw new Error('x'); f(n - 1); }\nf(5);")
	ctx.Run(&ec, s)
	require.True(t, ec.Threw())
	assert.Len(t, iso.Message(ec.Message).Frames, 2)
	ec.Reset(iso)
}

func TestSuccessfulRunLeavesSlotsEmpty(t *testing.T) {
	_, ctx := newTestContext(t)

	var ec ExceptionContext
	s := ctx.Compile(&ec, "ok.js", "6 * 7")
	require.NotEqual(t, NoHandle, s)
	res := ctx.Run(&ec, s)
	require.NotEqual(t, NoHandle, res)
	assert.EqualValues(t, 42, mustInt(t, ctx, res))
	assert.Equal(t, NoHandle, ec.Exception)
	assert.Equal(t, NoHandle, ec.Message)
}

func TestExceptionContextClearedBySuccess(t *testing.T) {
	iso, ctx := newTestContext(t)
	base := iso.HandleCount()

	var ec ExceptionContext
	s := ctx.Compile(&ec, "throw.js", "throw 1")
	assert.Equal(t, NoHandle, ctx.Run(&ec, s))
	iso.Release(s)
	require.True(t, ec.Threw())

	s = ctx.Compile(&ec, "ok.js", "1 + 1")
	require.NotEqual(t, NoHandle, s)
	res := ctx.Run(&ec, s)
	iso.Release(s)
	assert.EqualValues(t, 2, mustInt(t, ctx, res))
	assert.False(t, ec.Threw())
	assert.Equal(t, NoHandle, ec.Exception)
	assert.Equal(t, NoHandle, ec.Message)

	iso.Release(res)
	assert.Equal(t, base, iso.HandleCount(), "the earlier exception was released")
}

func TestExceptionPassedBackWithSameContext(t *testing.T) {
	iso, ctx := newTestContext(t)

	var ec ExceptionContext
	s := ctx.Compile(&ec, "first.js", "throw new Error('first')")
	ctx.Run(&ec, s)
	iso.Release(s)
	require.True(t, ec.Threw())

	text := ctx.Get(&ec, ec.Exception, "message")
	require.NotEqual(t, NoHandle, text)
	assert.False(t, ec.Threw())
	assert.Equal(t, "first", mustString(t, ctx, text))
	iso.Release(text)
}
