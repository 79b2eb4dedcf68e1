package jsbridge

import "github.com/cryguy/jsbridge/internal/core"

// Scope bounds the lifetime of Locals. Scopes nest and must be closed
// innermost first.
type Scope struct {
	iso    *Isolate
	closed bool
	owned  []local
}

type local struct {
	ctx *Context
	v   core.Value
}

// Local is a transient value reference, valid until its scope closes.
type Local struct {
	scope *Scope
	ctx   *Context
	v     core.Value
}

// IsEmpty reports whether l refers to nothing.
func (l Local) IsEmpty() bool { return l.scope == nil }

// Context returns the context the value belongs to.
func (l Local) Context() *Context { return l.ctx }

func (l Local) value() core.Value {
	if l.scope == nil {
		violation("empty Local read")
	}
	if l.scope.closed {
		violation("Local read after its scope closed")
	}
	return l.v
}

// OpenScope opens a scope nested inside the current one.
func (iso *Isolate) OpenScope() *Scope {
	iso.checkAlive()
	s := &Scope{iso: iso}
	iso.scopes = append(iso.scopes, s)
	return s
}

// Close releases every Local created in the scope.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	iso := s.iso
	n := len(iso.scopes)
	if n == 0 || iso.scopes[n-1] != s {
		iso.fatal("Scope.Close", "scope is not the innermost open scope")
	}
	iso.scopes = iso.scopes[:n-1]
	for _, l := range s.owned {
		if !l.ctx.closed {
			l.ctx.eng.Release(l.v)
		}
	}
	s.owned = nil
	s.closed = true
}

// adopt makes v, an owned engine value, a Local of the scope.
func (s *Scope) adopt(c *Context, v core.Value) Local {
	if s.closed {
		violation("Local created in a closed scope")
	}
	s.owned = append(s.owned, local{ctx: c, v: v})
	return Local{scope: s, ctx: c, v: v}
}

// Persist turns a Local into a durable handle.
func (s *Scope) Persist(l Local) Handle {
	v := l.value()
	return l.ctx.persist(l.ctx.eng.Retain(v))
}

// PersistMaybe is Persist for fallible results: it returns NoHandle when ok
// is false or l is empty.
func (s *Scope) PersistMaybe(l Local, ok bool) Handle {
	if !ok || l.IsEmpty() {
		return NoHandle
	}
	return s.Persist(l)
}

// Local opens a transient view of a durable handle in s.
func (s *Scope) Local(h Handle) Local {
	s.iso.checkAlive()
	e := s.iso.handles.get(h, handleValue)
	return s.adopt(e.ctx, e.ctx.eng.Retain(e.value))
}
