//go:build quickjs

package quickjs

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cryguy/jsbridge/internal/core"
)

// evalFile is the file name QuickJS gives to eval'd code.
const evalFile = "<input>"

// oomText is the exception QuickJS raises itself when an allocation
// exceeds the runtime's memory limit.
const oomText = "InternalError: out of memory"

// thrownRef builds the Thrown for an exception held in slot id. name, when
// set, is the script the exception came from.
func (c *context) thrownRef(id ref, name string) *core.Thrown {
	t := &core.Thrown{Exception: id}
	raw, err := c.evalString("__jsq.info(" + strconv.Itoa(int(id)) + ")")
	var parts [2]string
	if err == nil {
		err = json.Unmarshal([]byte(raw), &parts)
	}
	if err != nil {
		t.Text = "Error: exception details unavailable"
		return t
	}
	t.Text = parts[0]
	t.OutOfMemory = t.Text == oomText && c.builtinError(id)
	t.Frames = c.frames(parts[1], name)
	t.SetOrigin()
	return t
}

// goError converts a failure of the VM call itself. An interrupted VM is
// reported as termination.
func (c *context) goError(err error) *core.Thrown {
	msg := err.Error()
	name := "Error"
	if c.iso.terminating.Swap(false) || strings.Contains(strings.ToLower(msg), "interrupted") {
		msg = errTerminated.Error()
	} else if n, m := core.SplitErrorText(msg); n != "" {
		name, msg = n, m
	}
	t := &core.Thrown{Text: name + ": " + msg}
	// Every script exception is caught by the support code, so a failed
	// VM call mentioning memory is the engine's own.
	t.OutOfMemory = strings.Contains(msg, "out of memory")
	id, ierr := c.evalInt("__jsq.put(new " + name + "(" + quote(msg) + "))")
	if ierr != nil || id <= 0 {
		t.Exception = refUndefined
		return t
	}
	t.Exception = ref(id)
	return t
}

// builtinError reports whether slot id holds a plain InternalError, the
// class QuickJS uses for its own out-of-memory exception.
func (c *context) builtinError(id ref) bool {
	n, err := c.evalInt("(function (e) { return Object.getPrototypeOf(e) === InternalError.prototype ? 1 : 0; })(__jsq.get(" + strconv.Itoa(int(id)) + "))")
	return err == nil && n == 1
}

// frames parses a QuickJS stack, dropping the support code and naming
// eval'd frames after the script that was running.
func (c *context) frames(stack, name string) []core.Frame {
	if name == "" {
		name = c.last
		if n := len(c.running); n > 0 {
			name = c.running[n-1]
		}
	}
	var out []core.Frame
	for _, f := range core.ParseStackTrace(stack) {
		if strings.HasPrefix(f.FunctionName, "__jsq_") {
			continue
		}
		if f.ScriptName == evalFile {
			f.ScriptName = name
			if f.FunctionName == "<eval>" {
				f.FunctionName = ""
				f.IsEval = false
			}
		}
		out = append(out, f)
		if c.stackLimit > 0 && len(out) == c.stackLimit {
			break
		}
	}
	return out
}
