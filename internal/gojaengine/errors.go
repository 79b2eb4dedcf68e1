//go:build !v8 && !quickjs

package gojaengine

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/dop251/goja"
)

// parseErrRe matches goja parser errors: "name: Line 3:7 Unexpected token".
var parseErrRe = regexp.MustCompile(`^(.*?): Line (\d+):(\d+) (.*?)(?: \(and \d+ more errors\))?$`)

func (c *context) thrown(err error) *core.Thrown {
	var (
		ex  *goja.Exception
		ie  *goja.InterruptedError
		se  *goja.CompilerSyntaxError
		rfe *goja.CompilerReferenceError
	)
	switch {
	case errors.As(err, &ie):
		c.vm.ClearInterrupt()
		return c.thrownValue(c.newError("Error", errTerminated.Error()))
	case errors.As(err, &ex):
		t := &core.Thrown{
			Exception: ex.Value(),
			Text:      display(ex.Value()),
			Frames:    c.frames(ex.Stack()),
		}
		t.SetOrigin()
		return t
	case errors.As(err, &se):
		return c.compilerError("SyntaxError", &se.CompilerError)
	case errors.As(err, &rfe):
		return c.compilerError("ReferenceError", &rfe.CompilerError)
	}
	return c.thrownValue(c.newError("Error", err.Error()))
}

func (c *context) thrownValue(v goja.Value) *core.Thrown {
	return &core.Thrown{Exception: v, Text: display(v)}
}

// compilerError rebuilds a compile failure as a thrown error object. Parser
// errors carry their position in the message only.
func (c *context) compilerError(name string, ce *goja.CompilerError) *core.Thrown {
	t := &core.Thrown{}
	msg := ce.Message
	if ce.File != nil {
		p := ce.File.Position(ce.Offset)
		t.ScriptName, t.Line, t.Column = p.Filename, p.Line, p.Column
	} else if m := parseErrRe.FindStringSubmatch(msg); m != nil {
		t.ScriptName = m[1]
		t.Line, _ = strconv.Atoi(m[2])
		t.Column, _ = strconv.Atoi(m[3])
		msg = m[4]
	}
	t.Exception = c.newError(name, msg)
	t.Text = name + ": " + msg
	return t
}

func (c *context) newError(name, msg string) goja.Value {
	if obj, err := c.vm.New(c.vm.Get(name), c.vm.ToValue(msg)); err == nil {
		return obj
	}
	return c.vm.NewGoError(errors.New(msg))
}

func (c *context) frames(stack []goja.StackFrame) []core.Frame {
	out := make([]core.Frame, 0, len(stack))
	for _, f := range stack {
		if c.stackLimit > 0 && len(out) == c.stackLimit {
			break
		}
		p := f.Position()
		out = append(out, core.Frame{
			FunctionName: f.FuncName(),
			ScriptName:   f.SrcName(),
			Line:         p.Line,
			Column:       p.Column,
			IsEval:       f.SrcName() == "<eval>",
		})
	}
	return out
}

// display is String() that survives a throwing toString.
func display(v goja.Value) (s string) {
	if v == nil {
		return "undefined"
	}
	defer func() {
		if recover() != nil {
			s = "[object]"
		}
	}()
	return v.String()
}
