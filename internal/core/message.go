package core

import (
	"fmt"
	"strings"
)

// StackFrame is one frame of a Message's stack trace.
type StackFrame struct {
	Line          int    `json:"line"`
	Column        int    `json:"column"`
	ScriptName    string `json:"scriptName"`
	FunctionName  string `json:"functionName"`
	IsEval        bool   `json:"isEval"`
	IsConstructor bool   `json:"isConstructor"`
}

// String renders the frame the way V8 prints it in Error.stack.
func (f StackFrame) String() string {
	var b strings.Builder
	b.WriteString("    at ")
	loc := fmt.Sprintf("%s:%d:%d", f.ScriptName, f.Line, f.Column)
	if f.FunctionName == "" && !f.IsConstructor {
		b.WriteString(loc)
		return b.String()
	}
	if f.IsConstructor {
		b.WriteString("new ")
	}
	name := f.FunctionName
	if name == "" {
		name = "<anonymous>"
	}
	b.WriteString(name)
	b.WriteString(" (")
	b.WriteString(loc)
	b.WriteString(")")
	return b.String()
}

// Message is the diagnostic record captured alongside an exception.
type Message struct {
	Text       string       `json:"text"` // "Uncaught " + exception string
	ScriptName string       `json:"scriptName,omitempty"`
	Line       int          `json:"line"`
	Column     int          `json:"column"`
	SourceLine string       `json:"sourceLine,omitempty"`
	Frames     []StackFrame `json:"frames,omitempty"`
}

// StackTrace joins the frames, one per line.
func (m *Message) StackTrace() string {
	lines := make([]string, len(m.Frames))
	for i, f := range m.Frames {
		lines[i] = f.String()
	}
	return strings.Join(lines, "\n")
}

// bridgeScriptPrefix names the scripts the bridge installs in every
// context.
const bridgeScriptPrefix = "jsbridge:"

func isBridgeFrame(f Frame) bool { return strings.HasPrefix(f.ScriptName, bridgeScriptPrefix) }

// scriptFrames drops the bridge's own frames and the native frames it
// called into.
func scriptFrames(frames []Frame) []Frame {
	out := make([]Frame, 0, len(frames))
	for i, f := range frames {
		if isBridgeFrame(f) || f.Line == 0 && calledByBridge(frames[i+1:]) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// calledByBridge reports whether the first frame with a position in
// callers belongs to the bridge.
func calledByBridge(callers []Frame) bool {
	for _, f := range callers {
		if isBridgeFrame(f) {
			return true
		}
		if f.Line != 0 {
			return false
		}
	}
	return false
}

// NewMessage builds the Message for t. source, when non-empty, is the text
// of t.ScriptName and supplies SourceLine. Frames of the bridge's own
// scripts are dropped, and at most limit frames are kept (limit <= 0 keeps
// all).
func NewMessage(t *Thrown, source string, limit int) *Message {
	t.Frames = scriptFrames(t.Frames)
	if strings.HasPrefix(t.ScriptName, bridgeScriptPrefix) {
		t.ScriptName, t.Line, t.Column, t.SourceLine = "", 0, 0, ""
	}
	t.SetOrigin()
	m := &Message{
		Text:       "Uncaught " + t.Text,
		ScriptName: t.ScriptName,
		Line:       t.Line,
		Column:     t.Column,
		SourceLine: t.SourceLine,
	}
	if m.SourceLine == "" && source != "" && m.Line > 0 {
		lines := strings.Split(source, "\n")
		if m.Line <= len(lines) {
			m.SourceLine = strings.TrimRight(lines[m.Line-1], "\r")
		}
	}
	frames := t.Frames
	if limit > 0 && len(frames) > limit {
		frames = frames[:limit]
	}
	m.Frames = make([]StackFrame, len(frames))
	for i, f := range frames {
		m.Frames[i] = StackFrame{
			Line:          f.Line,
			Column:        f.Column,
			ScriptName:    f.ScriptName,
			FunctionName:  f.FunctionName,
			IsEval:        f.IsEval,
			IsConstructor: f.IsConstructor,
		}
	}
	return m
}
