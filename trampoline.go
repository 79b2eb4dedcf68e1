package jsbridge

import (
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/trampoline"
	"go.uber.org/zap"
)

var rolesByName = func() map[string]trampoline.Role {
	m := make(map[string]trampoline.Role)
	for r := trampoline.RoleGetter; r <= trampoline.RoleAccessCheck; r++ {
		m[r.String()] = r
	}
	return m
}()

// native returns the engine function behind one prelude native.
func (c *Context) native(name string) core.NativeFunc {
	if name == "release" {
		return func(args []core.Value) (core.Value, core.Value) {
			if len(args) > 0 {
				c.iso.releaseRegistration(uint64(c.eng.Describe(args[0]).Number))
			}
			return nil, nil
		}
	}
	role, ok := rolesByName[name]
	if !ok {
		panic(fmt.Sprintf("jsbridge: unknown native %q", name))
	}
	return func(args []core.Value) (core.Value, core.Value) {
		return c.dispatch(role, args)
	}
}

func layoutForRole(role trampoline.Role) trampoline.Layout {
	switch role {
	case trampoline.RoleFunctionCall, trampoline.RoleConstructCall:
		return trampoline.LayoutFor(trampoline.KindFunction)
	case trampoline.RoleAccessCheck:
		return trampoline.LayoutFor(trampoline.KindAccessCheck)
	}
	return trampoline.LayoutFor(trampoline.KindNamed)
}

// slot reads carrier[i] as a registry id.
func (c *Context) slot(carrier core.Value, i int) uint64 {
	idx := c.eng.Number(float64(i))
	undef := c.eng.Undefined()
	v, thrown := c.eng.Call(c.helpers[trampoline.HelperGet], undef, carrier, idx)
	c.eng.Release(idx)
	c.eng.Release(undef)
	if thrown != nil {
		if thrown.Exception != nil {
			c.eng.Release(thrown.Exception)
		}
		return 0
	}
	defer c.eng.Release(v)
	return uint64(c.eng.Describe(v).Number)
}

// notHandled is what a property trampoline returns to fall through.
func (c *Context) notHandled(role trampoline.Role) core.Value {
	switch role {
	case trampoline.RoleFunctionCall, trampoline.RoleConstructCall:
		return nil
	case trampoline.RoleAccessCheck:
		return c.eng.Bool(false)
	}
	return c.eng.Retain(c.helpers[trampoline.HelperNotHandled])
}

// dispatch is the common trampoline: it finds the callback in the carrier
// (args[0]), builds a CallInfo in a fresh scope and converts the outcome
// back into engine values.
func (c *Context) dispatch(role trampoline.Role, args []core.Value) (ret, throw core.Value) {
	iso := c.iso
	if len(args) == 0 || c.closed {
		return c.notHandled(role), nil
	}
	arg := func(i int) core.Value {
		if i < len(args) {
			return args[i]
		}
		return nil
	}
	carrier := args[0]
	layout := layoutForRole(role)
	i, _ := layout.Slot(role)
	cb, ok := iso.callbacks.Load(c.slot(carrier, i))
	if !ok {
		return c.notHandled(role), nil
	}
	data, _ := iso.data.Load(c.slot(carrier, layout.Data))

	scope := iso.OpenScope()
	defer scope.Close()
	info := &CallInfo{Isolate: iso, Context: c, Role: role, Data: data, scope: scope}
	in := func(v core.Value) Local {
		if v == nil {
			return info.Undefined()
		}
		return info.local(c.eng.Retain(v))
	}

	switch role {
	case trampoline.RoleFunctionCall, trampoline.RoleConstructCall:
		info.This = in(arg(1))
		info.Holder = info.This
		info.NewTarget = in(arg(2))
		info.IsConstructCall = role == trampoline.RoleConstructCall
		if len(args) > 3 {
			info.Args = make([]Local, 0, len(args)-3)
			for _, a := range args[3:] {
				info.Args = append(info.Args, in(a))
			}
		}
	default:
		info.Holder = in(arg(1))
		info.This = info.Holder
		if role != trampoline.RoleEnumerator {
			key := arg(2)
			if key != nil {
				if p := c.eng.Describe(key); p.Kind == core.KindNumber {
					info.Index = uint32(p.Number)
					info.Indexed = true
				}
			}
			info.Property = in(key)
		}
		switch role {
		case trampoline.RoleGetter:
			info.This = in(arg(3))
		case trampoline.RoleSetter:
			info.Value = in(arg(3))
			info.This = in(arg(4))
		case trampoline.RoleDefiner:
			info.Value = in(arg(3))
		}
	}

	allowed := c.invoke(info, cb)
	switch {
	case info.exc != nil:
		if info.hasRet {
			c.eng.Release(info.ret)
		}
		return nil, info.exc
	case role == trampoline.RoleAccessCheck:
		return c.eng.Bool(allowed), nil
	case info.hasRet:
		return info.ret, nil
	}
	return c.notHandled(role), nil
}

// invoke runs the host callback. A panic becomes a thrown Error so it
// never unwinds through the engine.
func (c *Context) invoke(info *CallInfo, cb any) (allowed bool) {
	defer func() {
		if r := recover(); r != nil {
			core.Logger().Warn("host callback panicked",
				zap.String("role", info.Role.String()),
				zap.String("isolate", c.iso.id.String()),
				zap.Any("panic", r))
			if info.exc != nil {
				c.eng.Release(info.exc)
			}
			info.exc = c.newError("Error", fmt.Sprintf("host panic: %v", r))
			allowed = false
		}
	}()
	switch fn := cb.(type) {
	case func(*CallInfo):
		fn(info)
	case func(*CallInfo) bool:
		allowed = fn(info)
	default:
		violation("registry entry %T is not a callback", cb)
	}
	return allowed
}
