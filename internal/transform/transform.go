// Package transform rewrites TypeScript and ES module sources into classic
// scripts an engine can compile directly.
package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

type Loader string

const (
	LoaderJS Loader = "js"
	LoaderTS Loader = "ts"
)

type Format string

const (
	// FormatScript keeps the source a classic script.
	FormatScript Format = "script"
	// FormatModule treats the source as an ES module. The transformed
	// script completes with the module's exports object.
	FormatModule Format = "module"
)

type Target string

const (
	TargetES2017 Target = "es2017"
	TargetES2022 Target = "es2022"
)

// Options selects the input language and shape, and the syntax level of
// the output.
type Options struct {
	Loader Loader
	Format Format
	Target Target
}

const exportsGlobal = "__jsbridge_exports__"

// Error is a transform failure located in the input.
type Error struct {
	File     string
	Text     string
	Line     int // 1-based
	Column   int // 1-based
	LineText string
	More     int // further errors not described
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Text)
	if e.More > 0 {
		s += fmt.Sprintf(" (and %d more errors)", e.More)
	}
	return s
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

func (o Options) esbuild(name string) api.TransformOptions {
	opts := api.TransformOptions{
		Sourcefile: name,
		Loader:     api.LoaderJS,
		Target:     api.ES2022,
	}
	if o.Loader == LoaderTS {
		opts.Loader = api.LoaderTS
	}
	if o.Target == TargetES2017 {
		opts.Target = api.ES2017
	}
	if o.Format == FormatModule {
		opts.Format = api.FormatIIFE
		opts.GlobalName = "globalThis." + exportsGlobal
	}
	return opts
}

// Transform rewrites source according to opts. Unknown loaders and formats
// are rejected.
func Transform(name, source string, opts Options) (string, error) {
	switch opts.Loader {
	case "", LoaderJS, LoaderTS:
	default:
		return "", fmt.Errorf("transform: unknown loader %q", opts.Loader)
	}
	switch opts.Format {
	case "", FormatScript, FormatModule:
	default:
		return "", fmt.Errorf("transform: unknown format %q", opts.Format)
	}

	result := api.Transform(source, opts.esbuild(name))
	if len(result.Errors) > 0 {
		return "", toError(name, result.Errors)
	}
	code := string(result.Code)
	if opts.Format == FormatModule {
		var b strings.Builder
		b.WriteString(code)
		b.WriteString("(function (g) { var e = g." + exportsGlobal + "; delete g." + exportsGlobal + "; return e; })(globalThis);\n")
		code = b.String()
	}
	return code, nil
}

func toError(name string, msgs []api.Message) error {
	m := msgs[0]
	e := &Error{File: name, Text: m.Text, More: len(msgs) - 1}
	if loc := m.Location; loc != nil {
		if loc.File != "" {
			e.File = loc.File
		}
		e.Line = loc.Line
		e.Column = loc.Column + 1
		e.LineText = loc.LineText
	}
	return e
}
