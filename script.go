package jsbridge

import (
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/platform"
	"github.com/cryguy/jsbridge/internal/trampoline"
	"github.com/cryguy/jsbridge/internal/transform"
	"go.uber.org/zap"
)

// Compile parses source into a script handle without running it. Syntax
// errors are captured like any other exception.
func (c *Context) Compile(ec *ExceptionContext, name, source string) Handle {
	defer c.begin(ec)()
	c.iso.sources[name] = source
	s, thrown := c.eng.Compile(name, source)
	if thrown != nil {
		c.capture(ec, thrown)
		return NoHandle
	}
	return c.persistScript(name, s)
}

func (c *Context) persistScript(name string, s core.Script) Handle {
	c.refs++
	return c.iso.handles.add(&handleEntry{kind: handleScript, ctx: c, script: s, name: name})
}

// Run executes a compiled script and returns its completion value.
func (c *Context) Run(ec *ExceptionContext, script Handle) Handle {
	defer c.begin(ec)()
	e := c.iso.handles.get(script, handleScript)
	if e.ctx != c {
		violation("script %d was compiled in another context", script)
	}
	defer c.iso.watch()()
	v, thrown := c.eng.Run(e.script)
	if thrown != nil {
		c.capture(ec, thrown)
		return NoHandle
	}
	return c.persist(v)
}

// CompileAsync compiles source off the isolate goroutine when the engine
// allows it. done runs from PumpMessageLoop with the script handle, or with
// NoHandle and an *ExceptionError for a syntax error. If the isolate or the
// platform goes away first, done receives ErrDisposed, possibly on another
// goroutine.
func (c *Context) CompileAsync(name, source string, done func(script Handle, err error)) {
	c.checkOpen()
	iso := c.iso
	iso.sources[name] = source
	c.refs++ // held until done runs

	finish := func(s core.Script, thrown *core.Thrown) {
		defer c.unref()
		if thrown != nil {
			var ec ExceptionContext
			c.capture(&ec, thrown)
			done(NoHandle, c.exceptionError(&ec))
			return
		}
		done(c.persistScript(name, s), nil)
	}
	cancel := func() { done(NoHandle, ErrDisposed) }

	pc, ok := c.eng.(core.Precompiler)
	if !ok {
		iso.post(func() { finish(c.eng.Compile(name, source)) }, cancel)
		return
	}
	iso.plat.CallOnBackgroundThread(platform.NewTask(func() {
		pre, err := pc.Precompile(name, source)
		iso.post(func() { finish(pc.Adopt(name, pre, err)) }, cancel)
	}, cancel), platform.ShortRunning)
}

// TransformOptions selects how CompileModule rewrites its source.
type TransformOptions = transform.Options

// CompileModule rewrites an ES module or TypeScript source into a classic
// script (exports become the completion value) and compiles it. Transform
// failures are thrown as SyntaxError. Transformed sources are kept in the
// code cache when one is configured.
func (c *Context) CompileModule(ec *ExceptionContext, name, source string, opts TransformOptions) Handle {
	defer c.begin(ec)()
	if opts.Target == "" {
		opts.Target = transformTarget
	}
	key := codeCacheKey("transform:"+string(opts.Loader)+":"+string(opts.Format)+":"+string(opts.Target), name, source)
	if c.iso.cache != nil {
		if out, ok := c.iso.cache.Get(key); ok {
			return c.Compile(ec, name, string(out))
		}
	}
	out, err := transform.Transform(name, source, opts)
	if err != nil {
		core.Logger().Debug("transform failed", zap.String("script", name), zap.Error(err))
		return c.throwSyntaxError(ec, name, err)
	}
	if c.iso.cache != nil {
		c.iso.cache.Put(key, []byte(out))
	}
	return c.Compile(ec, name, out)
}

// throwSyntaxError captures a SyntaxError built from a Go-side failure.
func (c *Context) throwSyntaxError(ec *ExceptionContext, name string, err error) Handle {
	msg := c.eng.String(err.Error())
	errName := c.eng.String("SyntaxError")
	exc := c.helper(nil, trampoline.HelperError, errName, msg)
	c.eng.Release(msg)
	c.eng.Release(errName)
	thrown := &core.Thrown{
		Exception:  exc,
		Text:       fmt.Sprintf("SyntaxError: %v", err),
		ScriptName: name,
	}
	if te, ok := transform.AsError(err); ok {
		thrown.Line, thrown.Column, thrown.SourceLine = te.Line, te.Column, te.LineText
		thrown.Text = "SyntaxError: " + te.Text
	}
	c.capture(ec, thrown)
	return NoHandle
}
