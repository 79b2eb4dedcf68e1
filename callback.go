package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/trampoline"
)

// Callback signatures, one per role. Property callbacks that leave the
// return value unset do not intercept: the operation falls through to the
// target object.
type (
	GetterCallback      func(info *CallInfo)
	SetterCallback      func(info *CallInfo)
	QueryCallback       func(info *CallInfo) // return value: PropertyAttribute as Int32, or false
	DeleterCallback     func(info *CallInfo) // return value: Bool
	EnumeratorCallback  func(info *CallInfo) // return value: array of keys
	DefinerCallback     func(info *CallInfo) // info.Value holds the descriptor
	DescriptorCallback  func(info *CallInfo) // return value: descriptor object
	FunctionCallback    func(info *CallInfo)
	AccessCheckCallback func(info *CallInfo) bool
)

// PropertyAttribute flags returned by query callbacks.
type PropertyAttribute int32

const (
	AttributeNone       PropertyAttribute = 0
	AttributeReadOnly   PropertyAttribute = 1
	AttributeDontEnum   PropertyAttribute = 2
	AttributeDontDelete PropertyAttribute = 4
)

// PropertyHandlers configures a named or indexed interceptor. Nil members
// do not intercept.
type PropertyHandlers struct {
	Getter     GetterCallback
	Setter     SetterCallback
	Query      QueryCallback
	Deleter    DeleterCallback
	Enumerator EnumeratorCallback
	Definer    DefinerCallback
	Descriptor DescriptorCallback
}

func (h PropertyHandlers) roles() map[trampoline.Role]any {
	m := make(map[trampoline.Role]any, 7)
	add := func(r trampoline.Role, fn func(*CallInfo)) {
		if fn != nil {
			m[r] = fn
		}
	}
	add(trampoline.RoleGetter, h.Getter)
	add(trampoline.RoleSetter, h.Setter)
	add(trampoline.RoleQuery, h.Query)
	add(trampoline.RoleDeleter, h.Deleter)
	add(trampoline.RoleEnumerator, h.Enumerator)
	add(trampoline.RoleDefiner, h.Definer)
	add(trampoline.RoleDescriptor, h.Descriptor)
	return m
}

// FunctionHandlers configures a host function. Call handles plain calls;
// Construct handles `new`, falling back to Call when nil.
type FunctionHandlers struct {
	Call      FunctionCallback
	Construct FunctionCallback
	Length    int
}

// registration records what a carrier owns in the isolate registries.
type registration struct {
	callbacks []uint64
	data      uint64
}

func (iso *Isolate) dropRegistration(r *registration) {
	for _, id := range r.callbacks {
		iso.callbacks.Delete(id)
	}
	iso.data.Delete(r.data)
}

// releaseRegistration drops a registration once; later calls are no-ops.
// Safe from any goroutine.
func (iso *Isolate) releaseRegistration(id uint64) {
	v, ok := iso.registrations.Load(id)
	if ok && iso.registrations.Delete(id) {
		iso.dropRegistration(v.(*registration))
	}
}

// RegistrationCount returns the number of live callback registrations.
func (iso *Isolate) RegistrationCount() int { return iso.registrations.Len() }

// newCarrier stores fns and data and builds the frozen carrier array whose
// slots hold their ids. The registration is released when the engine
// collects the carrier, or at isolate teardown.
func (c *Context) newCarrier(kind trampoline.Kind, fns map[trampoline.Role]any, data any) (core.Value, uint64, *core.Thrown) {
	iso := c.iso
	ids := make(map[trampoline.Role]uint64, len(fns))
	reg := &registration{data: iso.data.Store(data)}
	for role, fn := range fns {
		id := iso.callbacks.Store(fn)
		ids[role] = id
		reg.callbacks = append(reg.callbacks, id)
	}
	regID := iso.registrations.Store(reg)

	var token core.Value
	if col, ok := c.eng.(core.Collector); ok {
		token = col.NewCollectable(func() {
			iso.post(func() { iso.releaseRegistration(regID) }, func() { iso.releaseRegistration(regID) })
		})
	} else {
		token = c.eng.Undefined()
	}

	layout := trampoline.LayoutFor(kind)
	args := []core.Value{c.eng.String(kind.String()), c.eng.Number(float64(regID)), token}
	for _, s := range layout.Slots(ids, reg.data) {
		args = append(args, c.eng.Number(float64(s)))
	}
	undef := c.eng.Undefined()
	carrier, thrown := c.eng.Call(c.helpers[trampoline.HelperCarrier], undef, args...)
	c.eng.Release(undef)
	for _, a := range args {
		c.eng.Release(a)
	}
	if thrown != nil {
		iso.releaseRegistration(regID)
		return nil, 0, thrown
	}
	return carrier, regID, nil
}

// install builds a carrier and passes it to a prelude builder together with
// extra arguments. The builder's result is persisted.
func (c *Context) install(ec *ExceptionContext, kind trampoline.Kind, fns map[trampoline.Role]any, data any, builder int, args func(carrier core.Value) []core.Value) Handle {
	return c.persistResult(c.build(ec, kind, fns, data, builder, args))
}

// build is install without the persist: the result is owned by the caller,
// or nil after recording the exception in ec.
func (c *Context) build(ec *ExceptionContext, kind trampoline.Kind, fns map[trampoline.Role]any, data any, builder int, args func(carrier core.Value) []core.Value) core.Value {
	carrier, regID, thrown := c.newCarrier(kind, fns, data)
	if thrown != nil {
		c.capture(ec, thrown)
		return nil
	}
	defer c.eng.Release(carrier)
	vals := args(carrier)
	v := c.helper(ec, builder, vals...)
	for _, a := range vals {
		if a != carrier {
			c.eng.Release(a)
		}
	}
	if v == nil {
		c.iso.releaseRegistration(regID)
	}
	return v
}

func (c *Context) newInterceptor(ec *ExceptionContext, kind trampoline.Kind, target Handle, h PropertyHandlers, data any) Handle {
	defer c.begin(ec)()
	t := c.value(target)
	return c.install(ec, kind, h.roles(), data, trampoline.HelperInterceptor, func(carrier core.Value) []core.Value {
		return []core.Value{c.eng.String(kind.String()), c.eng.Retain(t), carrier}
	})
}

// NewNamedInterceptor returns a proxy of target whose string- and
// symbol-keyed property operations are routed to h first.
func (c *Context) NewNamedInterceptor(ec *ExceptionContext, target Handle, h PropertyHandlers, data any) Handle {
	return c.newInterceptor(ec, trampoline.KindNamed, target, h, data)
}

// NewIndexedInterceptor returns a proxy of target whose array-index
// property operations are routed to h first, with the key in info.Index.
func (c *Context) NewIndexedInterceptor(ec *ExceptionContext, target Handle, h PropertyHandlers, data any) Handle {
	return c.newInterceptor(ec, trampoline.KindIndexed, target, h, data)
}

// NewFunction creates a JavaScript function backed by h.
func (c *Context) NewFunction(ec *ExceptionContext, name string, h FunctionHandlers, data any) Handle {
	defer c.begin(ec)()
	return c.persistResult(c.function(ec, name, h, data))
}

func (c *Context) function(ec *ExceptionContext, name string, h FunctionHandlers, data any) core.Value {
	if h.Call == nil {
		violation("NewFunction %q without a Call handler", name)
	}
	construct := h.Construct
	if construct == nil {
		construct = h.Call
	}
	fns := map[trampoline.Role]any{
		trampoline.RoleFunctionCall:  (func(*CallInfo))(h.Call),
		trampoline.RoleConstructCall: (func(*CallInfo))(construct),
	}
	return c.build(ec, trampoline.KindFunction, fns, data, trampoline.HelperFn, func(carrier core.Value) []core.Value {
		return []core.Value{carrier, c.eng.String(name), c.eng.Number(float64(h.Length))}
	})
}

// SetAccessCheck returns a proxy of target that asks check before every
// property access and throws TypeError when it refuses.
func (c *Context) SetAccessCheck(ec *ExceptionContext, target Handle, check AccessCheckCallback, data any) Handle {
	defer c.begin(ec)()
	if check == nil {
		violation("SetAccessCheck without a callback")
	}
	t := c.value(target)
	fns := map[trampoline.Role]any{trampoline.RoleAccessCheck: (func(*CallInfo) bool)(check)}
	return c.install(ec, trampoline.KindAccessCheck, fns, data, trampoline.HelperAccessCheck, func(carrier core.Value) []core.Value {
		return []core.Value{c.eng.Retain(t), carrier}
	})
}
