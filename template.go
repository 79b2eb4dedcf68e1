package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/trampoline"
)

// ObjectTemplate describes objects created on demand: a list of properties
// copied onto every instance and a number of internal fields, slots that
// hold Go values and are invisible to scripts. A template belongs to one
// isolate and can make instances in any of its contexts.
type ObjectTemplate struct {
	iso    *Isolate
	props  []templateProp
	fields int
}

type templateProp struct {
	name  string
	value Handle
	fn    *FunctionHandlers
	get   FunctionCallback
	set   FunctionCallback
	data  any
}

// instanceFields is the registration data of an instance's carrier.
type instanceFields struct {
	values []any
}

// NewObjectTemplate creates an empty template.
func (iso *Isolate) NewObjectTemplate() *ObjectTemplate {
	iso.checkAlive()
	return &ObjectTemplate{iso: iso}
}

// Set adds a data property. value must stay live and belong to the context
// instances are created in.
func (t *ObjectTemplate) Set(name string, value Handle) {
	t.props = append(t.props, templateProp{name: name, value: value})
}

// SetFunction adds a method backed by h. Every instance gets its own
// function object; all of them share data.
func (t *ObjectTemplate) SetFunction(name string, h FunctionHandlers, data any) {
	if h.Call == nil {
		violation("template function %q without a Call handler", name)
	}
	t.props = append(t.props, templateProp{name: name, fn: &h, data: data})
}

// SetAccessor adds an accessor property. Either callback may be nil; the
// instance is the receiver in info.This.
func (t *ObjectTemplate) SetAccessor(name string, get, set FunctionCallback, data any) {
	if get == nil && set == nil {
		violation("accessor %q without callbacks", name)
	}
	t.props = append(t.props, templateProp{name: name, get: get, set: set, data: data})
}

// SetInternalFieldCount sets how many internal fields new instances have.
func (t *ObjectTemplate) SetInternalFieldCount(n int) {
	if n < 0 {
		violation("negative internal field count %d", n)
	}
	t.fields = n
}

// InternalFieldCount returns the number of internal fields of new instances.
func (t *ObjectTemplate) InternalFieldCount() int { return t.fields }

// NewInstance creates an object from t. Its internal fields start out nil.
func (c *Context) NewInstance(ec *ExceptionContext, t *ObjectTemplate) Handle {
	defer c.begin(ec)()
	return c.newInstance(ec, t, make([]any, t.fields))
}

// NewInstanceWithInternal creates an object from t with internal in field
// 0. A template without internal fields is given one first.
func (c *Context) NewInstanceWithInternal(ec *ExceptionContext, t *ObjectTemplate, internal any) Handle {
	defer c.begin(ec)()
	if t.fields < 1 {
		t.fields = 1
	}
	fields := make([]any, t.fields)
	fields[0] = internal
	return c.newInstance(ec, t, fields)
}

func (c *Context) newInstance(ec *ExceptionContext, t *ObjectTemplate, fields []any) Handle {
	if t.iso != c.iso {
		violation("object template belongs to another isolate")
	}
	var owned []core.Value
	defer func() {
		for _, v := range owned {
			c.eng.Release(v)
		}
	}()
	own := func(v core.Value) core.Value {
		owned = append(owned, v)
		return v
	}
	undef := own(c.eng.Undefined())

	props := make([]core.Value, 0, 4*len(t.props))
	for _, p := range t.props {
		entry := [4]core.Value{own(c.eng.String(p.name)), undef, undef, undef}
		switch {
		case p.fn != nil:
			f := c.function(ec, p.name, *p.fn, p.data)
			if f == nil {
				return NoHandle
			}
			entry[1] = own(f)
		case p.get != nil || p.set != nil:
			for i, cb := range [2]FunctionCallback{p.get, p.set} {
				if cb == nil {
					continue
				}
				f := c.function(ec, p.name, FunctionHandlers{Call: cb}, p.data)
				if f == nil {
					return NoHandle
				}
				entry[2+i] = own(f)
			}
		default:
			entry[1] = c.value(p.value)
		}
		props = append(props, entry[:]...)
	}

	return c.install(ec, trampoline.KindInstance, nil, &instanceFields{values: fields}, trampoline.HelperInstance, func(carrier core.Value) []core.Value {
		args := []core.Value{carrier}
		for _, p := range props {
			args = append(args, c.eng.Retain(p))
		}
		return args
	})
}

// fieldsOf returns the internal fields of obj, or nil when obj was not
// made from a template.
func (c *Context) fieldsOf(obj Handle) *instanceFields {
	carrier := c.helper(nil, trampoline.HelperFields, c.value(obj))
	if carrier == nil {
		return nil
	}
	defer c.eng.Release(carrier)
	if !c.eng.Describe(carrier).IsObject() {
		return nil
	}
	v, ok := c.iso.data.Load(c.slot(carrier, trampoline.LayoutFor(trampoline.KindInstance).Data))
	if !ok {
		return nil
	}
	f, _ := v.(*instanceFields)
	return f
}

// InternalFieldCount returns the number of internal fields of obj, 0 for
// objects not created from a template.
func (c *Context) InternalFieldCount(obj Handle) int {
	c.checkOpen()
	if f := c.fieldsOf(obj); f != nil {
		return len(f.values)
	}
	return 0
}

func (c *Context) field(obj Handle, i int) *instanceFields {
	f := c.fieldsOf(obj)
	if f == nil || i < 0 || i >= len(f.values) {
		violation("internal field %d out of range on handle %d", i, obj)
	}
	return f
}

// InternalField returns the Go value in internal field i of obj.
func (c *Context) InternalField(obj Handle, i int) any {
	c.checkOpen()
	return c.field(obj, i).values[i]
}

// SetInternalField stores v in internal field i of obj.
func (c *Context) SetInternalField(obj Handle, i int, v any) {
	c.checkOpen()
	c.field(obj, i).values[i] = v
}
