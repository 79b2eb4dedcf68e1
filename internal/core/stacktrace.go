package core

import (
	"regexp"
	"strconv"
	"strings"
)

// frameRe matches "at fn (script:line:col)", "at new Fn (script:line:col)",
// "at script:line:col" and the line-only form QuickJS prints for natives.
var frameRe = regexp.MustCompile(`^\s*at\s+(?:(new\s+)?(.*?)\s+\()?(.*?):(\d+)(?::(\d+))?\)?\s*$`)

// ParseStackTrace extracts frames from a V8- or QuickJS-style stack string.
// Lines that are not frames (the leading "Error: msg" line) are skipped.
func ParseStackTrace(stack string) []Frame {
	var frames []Frame
	for _, line := range strings.Split(stack, "\n") {
		m := frameRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		f := Frame{
			IsConstructor: m[1] != "",
			FunctionName:  m[2],
			ScriptName:    m[3],
		}
		f.Line, _ = strconv.Atoi(m[4])
		if m[5] != "" {
			f.Column, _ = strconv.Atoi(m[5])
		}
		if f.FunctionName == "eval" || f.FunctionName == "<eval>" || strings.HasPrefix(f.ScriptName, "eval at ") {
			f.IsEval = true
		}
		if f.FunctionName == "<anonymous>" {
			f.FunctionName = ""
		}
		frames = append(frames, f)
	}
	return frames
}

// ParseLocation splits "script:line:col" as reported by V8 error locations.
func ParseLocation(loc string) (script string, line, col int) {
	parts := strings.Split(loc, ":")
	if len(parts) < 3 {
		return loc, 0, 0
	}
	n := len(parts)
	line, err1 := strconv.Atoi(parts[n-2])
	col, err2 := strconv.Atoi(parts[n-1])
	if err1 != nil || err2 != nil {
		return loc, 0, 0
	}
	return strings.Join(parts[:n-2], ":"), line, col
}

// SplitErrorText splits "Name: message" into its parts. Text without a
// recognizable error name yields ("", text).
func SplitErrorText(text string) (name, message string) {
	text = strings.TrimPrefix(text, "Uncaught ")
	i := strings.Index(text, ": ")
	if i <= 0 {
		if strings.HasSuffix(text, "Error") && !strings.ContainsAny(text, " \n") {
			return text, ""
		}
		return "", text
	}
	name = text[:i]
	if !strings.HasSuffix(name, "Error") || strings.ContainsAny(name, " \n") {
		return "", text
	}
	return name, text[i+2:]
}
