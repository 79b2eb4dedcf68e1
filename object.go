package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/trampoline"
)

// PromiseState is the settlement state of a promise.
type PromiseState uint8

const (
	PromisePending PromiseState = iota
	PromiseFulfilled
	PromiseRejected
)

func (s PromiseState) String() string {
	switch s {
	case PromiseFulfilled:
		return "fulfilled"
	case PromiseRejected:
		return "rejected"
	}
	return "pending"
}

// withKey runs fn with a temporary engine string for key.
func (c *Context) withKey(key string, fn func(k core.Value) core.Value) core.Value {
	k := c.eng.String(key)
	defer c.eng.Release(k)
	return fn(k)
}

func (c *Context) withIndex(idx uint32, fn func(k core.Value) core.Value) core.Value {
	k := c.eng.Number(float64(idx))
	defer c.eng.Release(k)
	return fn(k)
}

func (c *Context) boolResult(v core.Value) Maybe[bool] {
	if v == nil {
		return Nothing[bool]()
	}
	defer c.eng.Release(v)
	return Just(c.eng.Describe(v).Bool)
}

// Get reads obj[key]. Getters and proxies may throw.
func (c *Context) Get(ec *ExceptionContext, obj Handle, key string) Handle {
	defer c.begin(ec)()
	o := c.value(obj)
	return c.persistResult(c.withKey(key, func(k core.Value) core.Value {
		return c.helper(ec, trampoline.HelperGet, o, k)
	}))
}

// GetByKey reads obj[key] for a key held in a handle, such as a Symbol.
func (c *Context) GetByKey(ec *ExceptionContext, obj, key Handle) Handle {
	defer c.begin(ec)()
	return c.persistResult(c.helper(ec, trampoline.HelperGet, c.value(obj), c.value(key)))
}

// GetIndex reads obj[idx].
func (c *Context) GetIndex(ec *ExceptionContext, obj Handle, idx uint32) Handle {
	defer c.begin(ec)()
	o := c.value(obj)
	return c.persistResult(c.withIndex(idx, func(k core.Value) core.Value {
		return c.helper(ec, trampoline.HelperGet, o, k)
	}))
}

// Set assigns obj[key] = val and reports whether the assignment succeeded.
func (c *Context) Set(ec *ExceptionContext, obj Handle, key string, val Handle) Maybe[bool] {
	defer c.begin(ec)()
	o, v := c.value(obj), c.value(val)
	return c.boolResult(c.withKey(key, func(k core.Value) core.Value {
		return c.helper(ec, trampoline.HelperSet, o, k, v)
	}))
}

// SetIndex assigns obj[idx] = val.
func (c *Context) SetIndex(ec *ExceptionContext, obj Handle, idx uint32, val Handle) Maybe[bool] {
	defer c.begin(ec)()
	o, v := c.value(obj), c.value(val)
	return c.boolResult(c.withIndex(idx, func(k core.Value) core.Value {
		return c.helper(ec, trampoline.HelperSet, o, k, v)
	}))
}

// Has evaluates `key in obj`.
func (c *Context) Has(ec *ExceptionContext, obj Handle, key string) Maybe[bool] {
	defer c.begin(ec)()
	o := c.value(obj)
	return c.boolResult(c.withKey(key, func(k core.Value) core.Value {
		return c.helper(ec, trampoline.HelperHas, o, k)
	}))
}

// Delete removes obj[key] and reports whether the property is gone.
func (c *Context) Delete(ec *ExceptionContext, obj Handle, key string) Maybe[bool] {
	defer c.begin(ec)()
	o := c.value(obj)
	return c.boolResult(c.withKey(key, func(k core.Value) core.Value {
		return c.helper(ec, trampoline.HelperDel, o, k)
	}))
}

// OwnKeys returns an array of obj's own keys, strings and symbols.
func (c *Context) OwnKeys(ec *ExceptionContext, obj Handle) Handle {
	defer c.begin(ec)()
	return c.persistResult(c.helper(ec, trampoline.HelperKeys, c.value(obj)))
}

// GetPrototype returns the prototype of obj, null at the end of the chain.
// Proxies may throw.
func (c *Context) GetPrototype(ec *ExceptionContext, obj Handle) Handle {
	defer c.begin(ec)()
	return c.persistResult(c.helper(ec, trampoline.HelperGetProto, c.value(obj)))
}

// SetPrototype replaces the prototype of obj with proto, an object or null.
// It reports false when obj is not extensible or the change would form a
// cycle.
func (c *Context) SetPrototype(ec *ExceptionContext, obj, proto Handle) Maybe[bool] {
	defer c.begin(ec)()
	return c.boolResult(c.helper(ec, trampoline.HelperSetProto, c.value(obj), c.value(proto)))
}

// Call invokes fn with an undefined receiver.
func (c *Context) Call(ec *ExceptionContext, fn Handle, args ...Handle) Handle {
	defer c.begin(ec)()
	undef := c.eng.Undefined()
	defer c.eng.Release(undef)
	return c.persistResult(c.call(ec, c.value(fn), undef, c.values(args)...))
}

// CallWithThis invokes fn with recv as this.
func (c *Context) CallWithThis(ec *ExceptionContext, fn, recv Handle, args ...Handle) Handle {
	defer c.begin(ec)()
	return c.persistResult(c.call(ec, c.value(fn), c.value(recv), c.values(args)...))
}

// Construct evaluates `new fn(...args)`.
func (c *Context) Construct(ec *ExceptionContext, fn Handle, args ...Handle) Handle {
	defer c.begin(ec)()
	vals := append([]core.Value{c.value(fn)}, c.values(args)...)
	return c.persistResult(c.helper(ec, trampoline.HelperConstruct, vals...))
}

func (c *Context) promise(h Handle) (core.PromiseState, core.Value) {
	pi, ok := c.eng.(core.PromiseInspector)
	if !ok {
		violation("engine cannot inspect promises")
	}
	state, result, ok := pi.PromiseState(c.value(h))
	if !ok {
		violation("handle %d is not a promise", h)
	}
	return state, result
}

// PromiseState reports whether the promise behind h has settled.
func (c *Context) PromiseState(h Handle) PromiseState {
	c.checkOpen()
	state, result := c.promise(h)
	if result != nil {
		c.eng.Release(result)
	}
	return PromiseState(state)
}

// PromiseResult returns the fulfillment value or rejection reason of a
// settled promise, and undefined while it is pending.
func (c *Context) PromiseResult(h Handle) Handle {
	c.checkOpen()
	_, result := c.promise(h)
	if result == nil {
		result = c.eng.Undefined()
	}
	return c.persist(result)
}
