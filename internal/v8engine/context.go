//go:build v8

package v8engine

import (
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
	v8 "github.com/tommie/v8go"
)

// supportJS builds the functions the context needs from JavaScript: a
// guarded call that keeps the thrown value (v8go reports only its string
// form), and the SharedArrayBuffer shuttles used to move bytes in and out.
const supportJS = `(function () {
	function describe(e) {
		var text, stack = '';
		try { text = String(e); } catch (_) { text = Object.prototype.toString.call(e); }
		try {
			if (e !== null && typeof e === 'object' && typeof e.stack === 'string') stack = e.stack;
		} catch (_) {}
		return [false, e, text, stack];
	}
	function isDetached(b) {
		if (typeof b.detached === 'boolean') return b.detached;
		try { new Uint8Array(b); return false; } catch (_) { return true; }
	}
	return [
		function (f, r) {
			var args = Array.prototype.slice.call(arguments, 2);
			try { return [true, Reflect.apply(f, r, args)]; } catch (e) { return describe(e); }
		},
		function (n) { return new SharedArrayBuffer(n); },
		function (sab) {
			var b = new ArrayBuffer(sab.byteLength);
			new Uint8Array(b).set(new Uint8Array(sab));
			return b;
		},
		function (b) {
			if (!(b instanceof ArrayBuffer) || isDetached(b)) return undefined;
			var s = new SharedArrayBuffer(b.byteLength);
			new Uint8Array(s).set(new Uint8Array(b));
			return s;
		},
		function (name, msg, stack) {
			var E = globalThis[name];
			if (typeof E !== 'function') E = Error;
			var e = new E(msg);
			if (stack) {
				try { Object.defineProperty(e, 'stack', { value: stack, configurable: true, writable: true }); } catch (_) {}
			}
			return e;
		}
	];
})()`

const (
	supportGuard = iota
	supportNewShared
	supportFromShared
	supportToShared
	supportError
	supportCount
)

// context implements core.Context over one v8.Context.
type context struct {
	iso        *isolate
	ctx        *v8.Context
	support    [supportCount]*v8.Function
	stackLimit int
}

var (
	_ core.Context          = (*context)(nil)
	_ core.PromiseInspector = (*context)(nil)
	_ core.ExternalBuffers  = (*context)(nil)
)

func (c *context) installSupport() error {
	v, err := c.ctx.RunScript(supportJS, "jsbridge:support")
	if err != nil {
		return fmt.Errorf("v8: installing support functions: %w", err)
	}
	arr, err := v.AsObject()
	if err != nil {
		return fmt.Errorf("v8: support functions: %w", err)
	}
	for i := range c.support {
		fv, err := arr.GetIdx(uint32(i))
		if err != nil {
			return fmt.Errorf("v8: support function %d: %w", i, err)
		}
		if c.support[i], err = fv.AsFunction(); err != nil {
			return fmt.Errorf("v8: support function %d: %w", i, err)
		}
	}
	return nil
}

func (c *context) val(v core.Value) *v8.Value {
	if v == nil {
		return v8.Undefined(c.iso.v8)
	}
	return v.(*v8.Value)
}

func (c *context) newValue(x any) *v8.Value {
	v, err := v8.NewValue(c.iso.v8, x)
	if err != nil {
		return v8.Undefined(c.iso.v8)
	}
	return v
}

func (c *context) Global() core.Value { return c.ctx.Global().Value }
func (c *context) Undefined() core.Value { return v8.Undefined(c.iso.v8) }
func (c *context) Null() core.Value { return v8.Null(c.iso.v8) }

func (c *context) Bool(b bool) core.Value { return c.newValue(b) }
func (c *context) Number(f float64) core.Value { return c.newValue(f) }
func (c *context) String(s string) core.Value { return c.newValue(s) }
func (c *context) Retain(v core.Value) core.Value { return v }
func (c *context) Release(core.Value) {}

func (c *context) Describe(v core.Value) core.Primitive {
	x := c.val(v)
	switch {
	case x.IsUndefined():
		return core.Primitive{Kind: core.KindUndefined}
	case x.IsNull():
		return core.Primitive{Kind: core.KindNull}
	case x.IsBoolean():
		return core.Primitive{Kind: core.KindBoolean, Bool: x.Boolean()}
	case x.IsNumber():
		return core.Primitive{Kind: core.KindNumber, Number: x.Number()}
	case x.IsString():
		return core.Primitive{Kind: core.KindString, String: x.String()}
	case x.IsBigInt():
		return core.Primitive{Kind: core.KindBigInt, String: x.BigInt().String()}
	case x.IsSymbol():
		return core.Primitive{Kind: core.KindSymbol}
	case x.IsFunction():
		return core.Primitive{Kind: core.KindFunction}
	}
	return core.Primitive{Kind: core.KindObject}
}

// Compile consults the isolate's code cache and refreshes it when V8
// rejects or lacks the cached data.
func (c *context) Compile(name, source string) (core.Script, *core.Thrown) {
	var opts v8.CompileOptions
	cache := c.iso.cfg.CodeCache
	key := "script\x00" + name + "\x00" + source
	if cache != nil {
		if data, ok := cache.Get(key); ok {
			opts.CachedData = &v8.CompilerCachedData{Bytes: data}
		}
	}
	s, err := c.iso.v8.CompileUnboundScript(source, name, opts)
	if err != nil {
		return nil, c.thrown(err)
	}
	if cache != nil && (opts.CachedData == nil || opts.CachedData.Rejected) {
		if cd := s.CreateCodeCache(); cd != nil {
			cache.Put(key, cd.Bytes)
		}
	}
	return s, nil
}

func (c *context) Run(s core.Script) (core.Value, *core.Thrown) {
	v, err := s.(*v8.UnboundScript).Run(c.ctx)
	if err != nil {
		return nil, c.thrown(err)
	}
	return v, nil
}

// Call goes through the guard so a catchable exception keeps its value.
func (c *context) Call(fn, recv core.Value, args ...core.Value) (core.Value, *core.Thrown) {
	gargs := make([]v8.Valuer, 0, len(args)+2)
	gargs = append(gargs, c.val(fn), c.val(recv))
	for _, a := range args {
		gargs = append(gargs, c.val(a))
	}
	res, err := c.support[supportGuard].Call(v8.Undefined(c.iso.v8), gargs...)
	if err != nil {
		return nil, c.thrown(err)
	}
	out, err := res.AsObject()
	if err != nil {
		return nil, c.thrown(err)
	}
	ok, _ := out.GetIdx(0)
	v, _ := out.GetIdx(1)
	if ok.Boolean() {
		return v, nil
	}
	text, _ := out.GetIdx(2)
	stack, _ := out.GetIdx(3)
	return c.guarded(v, text.String(), stack.String()), nil
}

// NewFunction wraps fn in a FunctionTemplate. The prelude passes the
// receiver explicitly, so info.This is not forwarded.
func (c *context) NewFunction(name string, fn core.NativeFunc) (core.Value, error) {
	iso := c.iso.v8
	tmpl := v8.NewFunctionTemplate(iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		in := info.Args()
		args := make([]core.Value, len(in))
		for i, a := range in {
			args[i] = a
		}
		res, throw := fn(args)
		if throw != nil {
			return iso.ThrowException(c.val(throw))
		}
		return c.val(res)
	})
	return tmpl.GetFunction(c.ctx).Value, nil
}

// NewArrayBuffer copies data into a new buffer through a SharedArrayBuffer,
// whose contents v8go exposes to Go.
func (c *context) NewArrayBuffer(data []byte) (core.Value, *core.Thrown) {
	sab, thrown := c.Call(c.support[supportNewShared].Value, c.Undefined(), c.Number(float64(len(data))))
	if thrown != nil {
		return nil, thrown
	}
	if len(data) > 0 {
		b, release, err := c.val(sab).SharedArrayBufferGetContents()
		if err != nil {
			return nil, c.thrown(err)
		}
		copy(b, data)
		release()
	}
	return c.Call(c.support[supportFromShared].Value, c.Undefined(), sab)
}

// ExternalArrayBuffers is false: V8 owns the backing store.
func (c *context) ExternalArrayBuffers() bool { return false }

// ArrayBufferBytes returns a copy of the buffer's contents.
func (c *context) ArrayBufferBytes(buf core.Value) ([]byte, bool) {
	sab, thrown := c.Call(c.support[supportToShared].Value, c.Undefined(), buf)
	if thrown != nil || c.val(sab).IsUndefined() {
		return nil, false
	}
	b, release, err := c.val(sab).SharedArrayBufferGetContents()
	if err != nil {
		return nil, false
	}
	defer release()
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

func (c *context) PromiseState(v core.Value) (core.PromiseState, core.Value, bool) {
	x := c.val(v)
	if !x.IsPromise() {
		return 0, nil, false
	}
	p, err := x.AsPromise()
	if err != nil {
		return 0, nil, false
	}
	switch p.State() {
	case v8.Fulfilled:
		return core.PromiseFulfilled, p.Result(), true
	case v8.Rejected:
		return core.PromiseRejected, p.Result(), true
	}
	return core.PromisePending, c.Undefined(), true
}

func (c *context) RunMicrotasks() { c.ctx.PerformMicrotaskCheckpoint() }

func (c *context) Close() { c.ctx.Close() }
