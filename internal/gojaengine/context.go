//go:build !v8 && !quickjs

package gojaengine

import (
	"math/big"
	"runtime"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/dop251/goja"
)

// context implements core.Context over one goja.Runtime. goja values are
// ordinary Go values, so Retain and Release have nothing to do.
type context struct {
	iso        *isolate
	vm         *goja.Runtime
	stackLimit int
}

var (
	_ core.Context          = (*context)(nil)
	_ core.Collector        = (*context)(nil)
	_ core.Detacher         = (*context)(nil)
	_ core.Precompiler      = (*context)(nil)
	_ core.PromiseInspector = (*context)(nil)
	_ core.ExternalBuffers  = (*context)(nil)
)

func (c *context) val(v core.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	return v.(goja.Value)
}

func (c *context) Global() core.Value { return c.vm.GlobalObject() }
func (c *context) Undefined() core.Value { return goja.Undefined() }
func (c *context) Null() core.Value { return goja.Null() }

func (c *context) Bool(b bool) core.Value { return c.vm.ToValue(b) }
func (c *context) Number(f float64) core.Value { return c.vm.ToValue(f) }
func (c *context) String(s string) core.Value { return c.vm.ToValue(s) }
func (c *context) Retain(v core.Value) core.Value { return v }
func (c *context) Release(core.Value) {}

func (c *context) Describe(v core.Value) core.Primitive {
	gv := c.val(v)
	switch {
	case goja.IsUndefined(gv):
		return core.Primitive{Kind: core.KindUndefined}
	case goja.IsNull(gv):
		return core.Primitive{Kind: core.KindNull}
	}
	switch x := gv.(type) {
	case *goja.Symbol:
		return core.Primitive{Kind: core.KindSymbol}
	case *goja.Object:
		if _, ok := goja.AssertFunction(x); ok {
			return core.Primitive{Kind: core.KindFunction}
		}
		return core.Primitive{Kind: core.KindObject}
	}
	switch e := gv.Export().(type) {
	case bool:
		return core.Primitive{Kind: core.KindBoolean, Bool: e}
	case int64:
		return core.Primitive{Kind: core.KindNumber, Number: float64(e)}
	case float64:
		return core.Primitive{Kind: core.KindNumber, Number: e}
	case string:
		return core.Primitive{Kind: core.KindString, String: e}
	case *big.Int:
		return core.Primitive{Kind: core.KindBigInt, String: e.String()}
	}
	return core.Primitive{Kind: core.KindObject}
}

func (c *context) Compile(name, source string) (core.Script, *core.Thrown) {
	prg, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, c.thrown(err)
	}
	return prg, nil
}

// Precompile runs goja's compiler, which needs no Runtime.
func (c *context) Precompile(name, source string) (any, error) {
	return goja.Compile(name, source, false)
}

func (c *context) Adopt(name string, pre any, err error) (core.Script, *core.Thrown) {
	if err != nil {
		return nil, c.thrown(err)
	}
	return pre.(*goja.Program), nil
}

func (c *context) Run(s core.Script) (core.Value, *core.Thrown) {
	res, err := c.vm.RunProgram(s.(*goja.Program))
	if err != nil {
		return nil, c.thrown(err)
	}
	return res, nil
}

func (c *context) Call(fn, recv core.Value, args ...core.Value) (core.Value, *core.Thrown) {
	f, ok := goja.AssertFunction(c.val(fn))
	if !ok {
		return nil, c.thrownValue(c.vm.NewTypeError("value is not a function"))
	}
	gargs := make([]goja.Value, len(args))
	for i, a := range args {
		gargs[i] = c.val(a)
	}
	res, err := f(c.val(recv), gargs...)
	if err != nil {
		return nil, c.thrown(err)
	}
	return res, nil
}

func (c *context) NewFunction(name string, fn core.NativeFunc) (core.Value, error) {
	return c.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		args := make([]core.Value, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a
		}
		res, throw := fn(args)
		if throw != nil {
			panic(c.val(throw))
		}
		return c.val(res)
	}), nil
}

// NewArrayBuffer wraps data without copying.
func (c *context) NewArrayBuffer(data []byte) (core.Value, *core.Thrown) {
	return c.vm.ToValue(c.vm.NewArrayBuffer(data)), nil
}

func (c *context) ExternalArrayBuffers() bool { return true }

func (c *context) arrayBuffer(v core.Value) (goja.ArrayBuffer, bool) {
	obj, ok := c.val(v).(*goja.Object)
	if !ok {
		return goja.ArrayBuffer{}, false
	}
	ab, ok := obj.Export().(goja.ArrayBuffer)
	return ab, ok
}

func (c *context) ArrayBufferBytes(buf core.Value) ([]byte, bool) {
	ab, ok := c.arrayBuffer(buf)
	if !ok || ab.Detached() {
		return nil, false
	}
	return ab.Bytes(), true
}

func (c *context) DetachArrayBuffer(buf core.Value) bool {
	ab, ok := c.arrayBuffer(buf)
	if !ok {
		return false
	}
	return ab.Detach()
}

func (c *context) PromiseState(v core.Value) (core.PromiseState, core.Value, bool) {
	obj, ok := c.val(v).(*goja.Object)
	if !ok {
		return 0, nil, false
	}
	p, ok := obj.Export().(*goja.Promise)
	if !ok {
		return 0, nil, false
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return core.PromiseFulfilled, p.Result(), true
	case goja.PromiseStateRejected:
		return core.PromiseRejected, p.Result(), true
	}
	return core.PromisePending, goja.Undefined(), true
}

// token is the Go object behind a collectable value. goja has no
// FinalizationRegistry, so collection is observed through the Go GC.
type token struct {
	id uint64
}

func (c *context) NewCollectable(onCollect func()) core.Value {
	tok := &token{}
	runtime.AddCleanup(tok, func(fn func()) { fn() }, onCollect)
	return c.vm.ToValue(tok)
}

// RunMicrotasks is a no-op: goja drains its job queue when the outermost
// call returns.
func (c *context) RunMicrotasks() {}

func (c *context) Close() {
	c.vm.ClearInterrupt()
	c.iso.forget(c.vm)
}
