package jsbridge

import (
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/trampoline"
)

// Context is a global scope bound to one isolate. It stays alive while the
// host holds it (until Dispose), while it is entered, and while any durable
// handle created in it is live.
type Context struct {
	iso     *Isolate
	eng     core.Context
	refs    int
	dropped bool // host reference released
	closed  bool
	helpers []core.Value
}

// NewContext creates a context in the isolate and installs the bridge's
// JavaScript helpers into it.
func (iso *Isolate) NewContext() (*Context, error) {
	iso.checkAlive()
	eng, err := iso.engine.NewContext()
	if err != nil {
		return nil, fmt.Errorf("jsbridge: creating context: %w", err)
	}
	c := &Context{iso: iso, eng: eng, refs: 1}
	if err := c.installPrelude(); err != nil {
		eng.Close()
		return nil, err
	}
	iso.contexts[c] = struct{}{}
	return c, nil
}

func (c *Context) installPrelude() error {
	run := func(name, src string) (core.Value, error) {
		s, thrown := c.eng.Compile(name, src)
		if thrown != nil {
			return nil, fmt.Errorf("jsbridge: compiling %s: %s", name, thrown.Text)
		}
		v, thrown := c.eng.Run(s)
		if thrown != nil {
			return nil, fmt.Errorf("jsbridge: running %s: %s", name, thrown.Text)
		}
		return v, nil
	}

	getter, err := run("jsbridge:get", trampoline.ElementGetter)
	if err != nil {
		return err
	}
	defer c.eng.Release(getter)
	factory, err := run("jsbridge:prelude", trampoline.Prelude())
	if err != nil {
		return err
	}
	defer c.eng.Release(factory)

	natives := make([]core.Value, len(trampoline.Natives))
	for i, name := range trampoline.Natives {
		fn, err := c.eng.NewFunction(name, c.native(name))
		if err != nil {
			return fmt.Errorf("jsbridge: creating native %s: %w", name, err)
		}
		natives[i] = fn
	}
	undef := c.eng.Undefined()
	defer c.eng.Release(undef)
	helpers, thrown := c.eng.Call(factory, undef, natives...)
	for _, fn := range natives {
		c.eng.Release(fn)
	}
	if thrown != nil {
		return fmt.Errorf("jsbridge: installing helpers: %s", thrown.Text)
	}
	defer c.eng.Release(helpers)

	c.helpers = make([]core.Value, len(trampoline.Helpers))
	for i := range trampoline.Helpers {
		idx := c.eng.Number(float64(i))
		v, thrown := c.eng.Call(getter, undef, helpers, idx)
		c.eng.Release(idx)
		if thrown != nil {
			return fmt.Errorf("jsbridge: reading helper %s: %s", trampoline.Helpers[i], thrown.Text)
		}
		c.helpers[i] = v
	}
	return nil
}

// Isolate returns the context's isolate.
func (c *Context) Isolate() *Isolate { return c.iso }

func (c *Context) checkOpen() {
	c.iso.checkAlive()
	if c.closed {
		violation("context used after it was closed")
	}
}

// begin starts a call that reports through ec. The slots are cleared so
// they describe only this call; handles left from an earlier call are
// released by the returned func, so they may still be passed as arguments.
func (c *Context) begin(ec *ExceptionContext) func() {
	c.checkOpen()
	if ec == nil || (ec.Exception == NoHandle && ec.Message == NoHandle) {
		return func() {}
	}
	stale := *ec
	ec.Exception, ec.Message = NoHandle, NoHandle
	return func() { stale.Reset(c.iso) }
}

// Enter makes c the isolate's current context. Enters nest and must be
// balanced by Exit in reverse order.
func (c *Context) Enter() {
	c.checkOpen()
	c.refs++
	c.iso.entered = append(c.iso.entered, c)
}

// Exit leaves c, which must be the innermost entered context.
func (c *Context) Exit() {
	n := len(c.iso.entered)
	if n == 0 || c.iso.entered[n-1] != c {
		c.iso.fatal("Context.Exit", "context is not the innermost entered context")
	}
	c.iso.entered = c.iso.entered[:n-1]
	c.unref()
}

// Dispose drops the host's reference. The engine context closes once no
// handle or entry keeps it alive.
func (c *Context) Dispose() {
	if c.dropped {
		violation("context disposed twice")
	}
	c.dropped = true
	c.unref()
}

func (c *Context) unref() {
	c.refs--
	if c.refs <= 0 {
		c.close()
	}
}

func (c *Context) close() {
	if c.closed {
		return
	}
	c.closed = true
	for _, h := range c.helpers {
		c.eng.Release(h)
	}
	c.helpers = nil
	c.eng.Close()
	delete(c.iso.contexts, c)
}

// persist turns an owned engine value into a durable handle.
func (c *Context) persist(v core.Value) Handle {
	c.refs++
	return c.iso.handles.add(&handleEntry{kind: handleValue, ctx: c, value: v})
}

// value returns the engine value behind h, borrowed.
func (c *Context) value(h Handle) core.Value {
	if h == NoHandle {
		violation("NoHandle used as a value")
	}
	e := c.iso.handles.get(h, handleValue)
	if e.ctx != c {
		violation("handle %d belongs to another context", h)
	}
	return e.value
}

func (c *Context) values(hs []Handle) []core.Value {
	out := make([]core.Value, len(hs))
	for i, h := range hs {
		out[i] = c.value(h)
	}
	return out
}

// call runs an engine call with exception capture. It returns the owned
// result, or nil after recording the exception in ec.
func (c *Context) call(ec *ExceptionContext, fn, recv core.Value, args ...core.Value) core.Value {
	defer c.iso.watch()()
	v, thrown := c.eng.Call(fn, recv, args...)
	if thrown != nil {
		c.capture(ec, thrown)
		return nil
	}
	return v
}

// helper invokes a prelude helper with an undefined receiver.
func (c *Context) helper(ec *ExceptionContext, idx int, args ...core.Value) core.Value {
	undef := c.eng.Undefined()
	defer c.eng.Release(undef)
	return c.call(ec, c.helpers[idx], undef, args...)
}

// persistResult persists v, or returns NoHandle for nil.
func (c *Context) persistResult(v core.Value) Handle {
	if v == nil {
		return NoHandle
	}
	return c.persist(v)
}

// Global returns the global object.
func (c *Context) Global(ec *ExceptionContext) Handle {
	defer c.begin(ec)()
	return c.persist(c.eng.Global())
}

// RunMicrotasks drains the microtask queue.
func (c *Context) RunMicrotasks() {
	c.checkOpen()
	defer c.iso.watch()()
	c.eng.RunMicrotasks()
}
