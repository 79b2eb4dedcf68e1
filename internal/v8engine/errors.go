//go:build v8

package v8engine

import (
	"errors"
	"strings"

	"github.com/cryguy/jsbridge/internal/core"
	v8 "github.com/tommie/v8go"
)

// guarded builds the Thrown for an exception caught by the guard.
func (c *context) guarded(exc *v8.Value, text, stack string) *core.Thrown {
	t := &core.Thrown{Exception: exc, Text: text, Frames: c.frames(stack)}
	t.SetOrigin()
	return t
}

// thrown converts an error returned by v8go. Only the string form of the
// exception survives, so the value is rebuilt as an error of the same
// name. Termination arrives here too: it cannot be caught by the guard.
func (c *context) thrown(err error) *core.Thrown {
	var je *v8.JSError
	if !errors.As(err, &je) {
		return &core.Thrown{Exception: c.rebuild("Error", err.Error(), ""), Text: "Error: " + err.Error()}
	}
	text := strings.TrimPrefix(je.Message, "Uncaught ")
	if c.iso.v8.IsExecutionTerminating() || text == "" {
		text = "Error: execution terminated"
	}
	t := &core.Thrown{Text: text, Frames: c.frames(je.StackTrace)}
	t.ScriptName, t.Line, t.Column = core.ParseLocation(je.Location)
	if t.Line == 0 {
		t.ScriptName = ""
	}
	t.SetOrigin()

	name, msg := core.SplitErrorText(text)
	if name == "" {
		t.Exception = c.newValue(msg)
	} else {
		t.Exception = c.rebuild(name, msg, je.StackTrace)
	}
	return t
}

// rebuild creates an error object; while V8 is terminating no script can
// run, and the message string stands in.
func (c *context) rebuild(name, msg, stack string) *v8.Value {
	if !c.iso.v8.IsExecutionTerminating() {
		v, err := c.support[supportError].Call(v8.Undefined(c.iso.v8), c.newValue(name), c.newValue(msg), c.newValue(stack))
		if err == nil {
			return v
		}
	}
	return c.newValue(name + ": " + msg)
}

func (c *context) frames(stack string) []core.Frame {
	frames := core.ParseStackTrace(stack)
	if c.stackLimit > 0 && len(frames) > c.stackLimit {
		frames = frames[:c.stackLimit]
	}
	return frames
}
