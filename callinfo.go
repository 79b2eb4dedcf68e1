package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/trampoline"
)

// CallInfo is what a host callback sees. Its Locals live in a scope opened
// for the call and closed when the callback returns.
type CallInfo struct {
	Isolate *Isolate
	Context *Context
	Role    Role

	// This is the receiver. For property callbacks Holder is the
	// intercepted target and This the receiver of the access.
	This   Local
	Holder Local

	// NewTarget is set for construct calls.
	NewTarget       Local
	IsConstructCall bool
	Args            []Local

	// Property is the key for named callbacks. Indexed callbacks get the
	// key in Index as well.
	Property Local
	Index    uint32
	Indexed  bool

	// Value is the assigned value for setters and the descriptor for
	// definers.
	Value Local

	Data any

	// ShouldThrowOnError is always false: interceptors run from proxy
	// traps, which report failure by return value.
	ShouldThrowOnError bool

	scope  *Scope
	ret    core.Value
	hasRet bool
	exc    core.Value
}

// Scope returns the scope owning the call's Locals. Values created through
// it are released when the callback returns.
func (info *CallInfo) Scope() *Scope { return info.scope }

// Arg returns argument i, or undefined past the end.
func (info *CallInfo) Arg(i int) Local {
	if i < len(info.Args) {
		return info.Args[i]
	}
	return info.Undefined()
}

// PropertyName returns the key as a string, or "" for symbol keys.
func (info *CallInfo) PropertyName() string {
	if info.Property.IsEmpty() {
		return ""
	}
	p := info.Context.eng.Describe(info.Property.value())
	return p.String
}

// SetReturnValue sets the callback result. For property callbacks a set
// return value means the operation was handled.
func (info *CallInfo) SetReturnValue(v Local) {
	eng := info.Context.eng
	if info.hasRet {
		eng.Release(info.ret)
	}
	info.ret = eng.Retain(v.value())
	info.hasRet = true
}

// ThrowException makes the call throw v once the callback returns. It
// overrides any return value.
func (info *CallInfo) ThrowException(v Local) {
	eng := info.Context.eng
	if info.exc != nil {
		eng.Release(info.exc)
	}
	info.exc = eng.Retain(v.value())
}

// ThrowError throws a new Error with msg.
func (info *CallInfo) ThrowError(msg string) {
	info.throwNamed("Error", msg)
}

// ThrowTypeError throws a new TypeError with msg.
func (info *CallInfo) ThrowTypeError(msg string) {
	info.throwNamed("TypeError", msg)
}

func (info *CallInfo) throwNamed(name, msg string) {
	c := info.Context
	e := c.newError(name, msg)
	if info.exc != nil {
		c.eng.Release(info.exc)
	}
	info.exc = e
}

func (info *CallInfo) local(v core.Value) Local {
	return info.scope.adopt(info.Context, v)
}

func (info *CallInfo) Undefined() Local { return info.local(info.Context.eng.Undefined()) }
func (info *CallInfo) Null() Local      { return info.local(info.Context.eng.Null()) }
func (info *CallInfo) Bool(b bool) Local {
	return info.local(info.Context.eng.Bool(b))
}

func (info *CallInfo) Number(f float64) Local {
	return info.local(info.Context.eng.Number(f))
}

func (info *CallInfo) Int32(i int32) Local { return info.Number(float64(i)) }

func (info *CallInfo) String(s string) Local {
	return info.local(info.Context.eng.String(s))
}

// Array creates an array of the given Locals.
func (info *CallInfo) Array(items ...Local) Local {
	c := info.Context
	vals := make([]core.Value, len(items))
	for i, l := range items {
		vals[i] = l.value()
	}
	v := c.helper(nil, trampoline.HelperArray, vals...)
	if v == nil {
		return info.Undefined()
	}
	return info.local(v)
}

// Object creates an empty object.
func (info *CallInfo) Object() Local {
	v := info.Context.helper(nil, trampoline.HelperObject)
	if v == nil {
		return info.Undefined()
	}
	return info.local(v)
}

// Local opens a durable handle in the call's scope.
func (info *CallInfo) Local(h Handle) Local { return info.scope.Local(h) }

// Persist keeps l beyond the callback.
func (info *CallInfo) Persist(l Local) Handle { return info.scope.Persist(l) }

// newError builds an Error of the named constructor; owned by the caller.
func (c *Context) newError(name, msg string) core.Value {
	n, m := c.eng.String(name), c.eng.String(msg)
	defer c.eng.Release(n)
	defer c.eng.Release(m)
	v := c.helper(nil, trampoline.HelperError, n, m)
	if v == nil {
		return c.eng.String(name + ": " + msg)
	}
	return v
}
