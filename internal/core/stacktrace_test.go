package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStackTraceV8(t *testing.T) {
	stack := "Error: boom\n" +
		"    at inner (main.js:3:11)\n" +
		"    at new Widget (lib.js:10:5)\n" +
		"    at main.js:7:1"

	frames := ParseStackTrace(stack)
	require.Len(t, frames, 3)

	assert.Equal(t, Frame{FunctionName: "inner", ScriptName: "main.js", Line: 3, Column: 11}, frames[0])
	assert.Equal(t, Frame{FunctionName: "Widget", ScriptName: "lib.js", Line: 10, Column: 5, IsConstructor: true}, frames[1])
	assert.Equal(t, Frame{ScriptName: "main.js", Line: 7, Column: 1}, frames[2])
}

func TestParseStackTraceQuickJS(t *testing.T) {
	frames := ParseStackTrace("    at f (<input>:2:9)\n    at <eval> (<input>:4)\n")
	require.Len(t, frames, 2)
	assert.Equal(t, "f", frames[0].FunctionName)
	assert.Equal(t, 2, frames[0].Line)
	assert.True(t, frames[1].IsEval)
	assert.Equal(t, 4, frames[1].Line)
	assert.Equal(t, 0, frames[1].Column)
}

func TestParseLocation(t *testing.T) {
	script, line, col := ParseLocation("http://x/a.js:12:4")
	assert.Equal(t, "http://x/a.js", script)
	assert.Equal(t, 12, line)
	assert.Equal(t, 4, col)

	script, line, _ = ParseLocation("native")
	assert.Equal(t, "native", script)
	assert.Zero(t, line)
}

func TestSplitErrorText(t *testing.T) {
	name, msg := SplitErrorText("Uncaught TypeError: x is not a function")
	assert.Equal(t, "TypeError", name)
	assert.Equal(t, "x is not a function", msg)

	name, msg = SplitErrorText("just a string: with colon")
	assert.Empty(t, name)
	assert.Equal(t, "just a string: with colon", msg)

	name, msg = SplitErrorText("RangeError")
	assert.Equal(t, "RangeError", name)
	assert.Empty(t, msg)
}

func TestThrownSetOrigin(t *testing.T) {
	th := &Thrown{Frames: []Frame{{ScriptName: "a.js", Line: 2, Column: 3}}}
	th.SetOrigin()
	assert.Equal(t, "a.js", th.ScriptName)
	assert.Equal(t, 2, th.Line)

	th = &Thrown{ScriptName: "b.js", Line: 9, Frames: []Frame{{ScriptName: "a.js", Line: 2}}}
	th.SetOrigin()
	assert.Equal(t, "b.js", th.ScriptName)
	assert.Equal(t, 9, th.Line)
}

func TestStackFrameString(t *testing.T) {
	assert.Equal(t, "    at f (a.js:1:2)", StackFrame{FunctionName: "f", ScriptName: "a.js", Line: 1, Column: 2}.String())
	assert.Equal(t, "    at new W (a.js:3:4)", StackFrame{FunctionName: "W", ScriptName: "a.js", Line: 3, Column: 4, IsConstructor: true}.String())
	assert.Equal(t, "    at a.js:5:6", StackFrame{ScriptName: "a.js", Line: 5, Column: 6}.String())
}

func TestNewMessage(t *testing.T) {
	thrown := &Thrown{
		Text: "Error: boom",
		Frames: []Frame{
			{FunctionName: "f", ScriptName: "a.js", Line: 2, Column: 9},
			{ScriptName: "a.js", Line: 4, Column: 1},
		},
	}
	m := NewMessage(thrown, "function f() {\n  throw new Error('boom');\n}\nf();", 1)

	assert.Equal(t, "Uncaught Error: boom", m.Text)
	assert.Equal(t, "a.js", m.ScriptName)
	assert.Equal(t, 2, m.Line)
	assert.Equal(t, 9, m.Column)
	assert.Equal(t, "  throw new Error('boom');", m.SourceLine)
	require.Len(t, m.Frames, 1)
	assert.Equal(t, "    at f (a.js:2:9)", m.StackTrace())
}

func TestNewMessageDropsBridgeFrames(t *testing.T) {
	thrown := &Thrown{
		Text:       "Error: bad input",
		ScriptName: "jsbridge:prelude",
		Line:       180,
		Column:     29,
		Frames: []Frame{
			{FunctionName: "functionCall", ScriptName: "<native>"},
			{FunctionName: "apply", ScriptName: "<native>"},
			{FunctionName: "f", ScriptName: "jsbridge:prelude", Line: 180, Column: 29},
			{FunctionName: "run", ScriptName: "user.js", Line: 3, Column: 5},
			{ScriptName: "user.js", Line: 5, Column: 1},
		},
	}
	m := NewMessage(thrown, "", 0)

	assert.Equal(t, "user.js", m.ScriptName)
	assert.Equal(t, 3, m.Line)
	assert.Equal(t, 5, m.Column)
	require.Len(t, m.Frames, 2)
	assert.Equal(t, "    at run (user.js:3:5)\n    at user.js:5:1", m.StackTrace())
}
