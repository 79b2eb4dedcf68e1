package jsbridge

import (
	"fmt"
	"math"

	"github.com/cryguy/jsbridge/internal/allocator"
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/trampoline"
)

// Kind classifies a JavaScript value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindBigInt
	KindString
	KindSymbol
	KindObject
	KindFunction
	KindArray
	KindArrayBuffer
	KindPromise
	KindDate
	KindRegExp
	KindMap
	KindSet
	KindError
	KindProxy
)

var kindNames = [...]string{
	"undefined", "null", "boolean", "number", "bigint", "string", "symbol",
	"object", "function", "array", "arraybuffer", "promise", "date", "regexp",
	"map", "set", "error", "proxy",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

var primitiveKinds = map[core.Kind]Kind{
	core.KindUndefined: KindUndefined,
	core.KindNull:      KindNull,
	core.KindBoolean:   KindBoolean,
	core.KindNumber:    KindNumber,
	core.KindBigInt:    KindBigInt,
	core.KindString:    KindString,
	core.KindSymbol:    KindSymbol,
	core.KindObject:    KindObject,
	core.KindFunction:  KindFunction,
}

var classKinds = map[trampoline.Class]Kind{
	trampoline.ClassFunction:    KindFunction,
	trampoline.ClassArray:       KindArray,
	trampoline.ClassArrayBuffer: KindArrayBuffer,
	trampoline.ClassPromise:     KindPromise,
	trampoline.ClassDate:        KindDate,
	trampoline.ClassRegExp:      KindRegExp,
	trampoline.ClassMap:         KindMap,
	trampoline.ClassSet:         KindSet,
	trampoline.ClassError:       KindError,
	trampoline.ClassProxy:       KindProxy,
}

// Undefined returns a handle to undefined.
func (c *Context) Undefined() Handle {
	c.checkOpen()
	return c.persist(c.eng.Undefined())
}

// Null returns a handle to null.
func (c *Context) Null() Handle {
	c.checkOpen()
	return c.persist(c.eng.Null())
}

// Bool creates a boolean.
func (c *Context) Bool(b bool) Handle {
	c.checkOpen()
	return c.persist(c.eng.Bool(b))
}

// Number creates a Number.
func (c *Context) Number(f float64) Handle {
	c.checkOpen()
	return c.persist(c.eng.Number(f))
}

// String creates a string.
func (c *Context) String(s string) Handle {
	c.checkOpen()
	return c.persist(c.eng.String(s))
}

// Int32 creates a Number from i.
func (c *Context) Int32(i int32) Handle { return c.Number(float64(i)) }

// Uint32 creates a Number from u.
func (c *Context) Uint32(u uint32) Handle { return c.Number(float64(u)) }

// Int64 creates a Number; values beyond 2^53 lose precision.
func (c *Context) Int64(i int64) Handle { return c.Number(float64(i)) }

// NewObject creates an empty plain object.
func (c *Context) NewObject() Handle {
	c.checkOpen()
	return c.persistResult(c.helper(nil, trampoline.HelperObject))
}

// NewArray creates an array holding elems.
func (c *Context) NewArray(elems ...Handle) Handle {
	c.checkOpen()
	return c.persistResult(c.helper(nil, trampoline.HelperArray, c.values(elems)...))
}

// NewArrayBuffer creates a zeroed ArrayBuffer of n bytes from the isolate's
// allocator. A failed allocation invokes the OOM handler and returns
// ErrAllocationFailed; no substitute buffer is created. If the engine
// throws instead, the exception goes to ec and the error is nil.
func (c *Context) NewArrayBuffer(ec *ExceptionContext, n int) (Handle, error) {
	defer c.begin(ec)()
	b := c.iso.alloc.Allocate(n)
	if b == nil {
		c.iso.outOfMemory("NewArrayBuffer", false)
		return NoHandle, ErrAllocationFailed
	}
	return c.adoptBuffer(ec, b)
}

// NewArrayBufferFrom creates an ArrayBuffer holding a copy of data.
func (c *Context) NewArrayBufferFrom(ec *ExceptionContext, data []byte) (Handle, error) {
	defer c.begin(ec)()
	b := c.iso.alloc.AllocateUninitialized(len(data))
	if b == nil {
		c.iso.outOfMemory("NewArrayBufferFrom", false)
		return NoHandle, ErrAllocationFailed
	}
	copy(b, data)
	return c.adoptBuffer(ec, b)
}

func (c *Context) adoptBuffer(ec *ExceptionContext, b []byte) (Handle, error) {
	v, thrown := c.eng.NewArrayBuffer(b)
	external := false
	if eb, ok := c.eng.(core.ExternalBuffers); ok {
		external = eb.ExternalArrayBuffers()
	}
	if external && thrown == nil {
		allocator.ReleaseOnCollect(c.iso.alloc, b, allocator.FreeModeFree)
	} else {
		c.iso.alloc.Free(allocator.Addr(b), cap(b), allocator.FreeModeFree)
	}
	if thrown != nil {
		c.capture(ec, thrown)
		return NoHandle, nil
	}
	return c.persist(v), nil
}

// TypeOf classifies the value behind h.
func (c *Context) TypeOf(h Handle) Kind {
	c.checkOpen()
	v := c.value(h)
	p := c.eng.Describe(v)
	if !p.IsObject() {
		return primitiveKinds[p.Kind]
	}
	code := c.helper(nil, trampoline.HelperClassOf, v)
	if code == nil {
		return primitiveKinds[p.Kind]
	}
	defer c.eng.Release(code)
	if k, ok := classKinds[trampoline.Class(c.eng.Describe(code).Number)]; ok {
		return k
	}
	return primitiveKinds[p.Kind]
}

// StringValue converts h with String(). The conversion can throw (Symbol
// values, a throwing toString).
func (c *Context) StringValue(ec *ExceptionContext, h Handle) (string, bool) {
	defer c.begin(ec)()
	v := c.value(h)
	if p := c.eng.Describe(v); p.Kind == core.KindString {
		return p.String, true
	}
	s := c.helper(ec, trampoline.HelperToString, v)
	if s == nil {
		return "", false
	}
	defer c.eng.Release(s)
	return c.eng.Describe(s).String, true
}

// StrictEquals compares with ===.
func (c *Context) StrictEquals(a, b Handle) bool {
	c.checkOpen()
	r := c.helper(nil, trampoline.HelperStrictEquals, c.value(a), c.value(b))
	if r == nil {
		return false
	}
	defer c.eng.Release(r)
	return c.eng.Describe(r).Bool
}

// Equals compares with ==, which may run valueOf or toString and throw.
func (c *Context) Equals(ec *ExceptionContext, a, b Handle) Maybe[bool] {
	defer c.begin(ec)()
	return c.boolResult(c.helper(ec, trampoline.HelperLooseEquals, c.value(a), c.value(b)))
}

// SameValue compares with Object.is: NaN equals itself and +0 differs
// from -0.
func (c *Context) SameValue(a, b Handle) bool {
	c.checkOpen()
	r := c.helper(nil, trampoline.HelperSameValue, c.value(a), c.value(b))
	if r == nil {
		return false
	}
	defer c.eng.Release(r)
	return c.eng.Describe(r).Bool
}

// WellKnownSymbol names a symbol stored on the Symbol constructor.
type WellKnownSymbol string

const (
	SymbolIterator           WellKnownSymbol = "iterator"
	SymbolAsyncIterator      WellKnownSymbol = "asyncIterator"
	SymbolHasInstance        WellKnownSymbol = "hasInstance"
	SymbolIsConcatSpreadable WellKnownSymbol = "isConcatSpreadable"
	SymbolToPrimitive        WellKnownSymbol = "toPrimitive"
	SymbolToStringTag        WellKnownSymbol = "toStringTag"
	SymbolUnscopables        WellKnownSymbol = "unscopables"
)

func (c *Context) symbol(ec *ExceptionContext, kind int, s string) Handle {
	k, str := c.eng.Number(float64(kind)), c.eng.String(s)
	defer c.eng.Release(k)
	defer c.eng.Release(str)
	return c.persistResult(c.helper(ec, trampoline.HelperSymbol, k, str))
}

// NewSymbol creates a unique symbol with the given description.
func (c *Context) NewSymbol(description string) Handle {
	c.checkOpen()
	return c.symbol(nil, trampoline.SymbolUnique, description)
}

// SymbolFor returns the symbol registered under key, as Symbol.for does.
func (c *Context) SymbolFor(key string) Handle {
	c.checkOpen()
	return c.symbol(nil, trampoline.SymbolRegistered, key)
}

// WellKnown returns a well-known symbol. Engines lacking it throw a
// TypeError.
func (c *Context) WellKnown(ec *ExceptionContext, name WellKnownSymbol) Handle {
	defer c.begin(ec)()
	return c.symbol(ec, trampoline.SymbolWellKnown, string(name))
}

// BooleanValue applies ToBoolean, which cannot fail.
func (c *Context) BooleanValue(h Handle) Maybe[bool] {
	c.checkOpen()
	p := c.eng.Describe(c.value(h))
	switch p.Kind {
	case core.KindUndefined, core.KindNull:
		return Just(false)
	case core.KindBoolean:
		return Just(p.Bool)
	case core.KindNumber:
		return Just(p.Number != 0 && !math.IsNaN(p.Number))
	case core.KindString:
		return Just(p.String != "")
	case core.KindBigInt:
		return Just(p.String != "0")
	}
	return Just(true)
}

// NumberValue applies ToNumber. Objects may run valueOf, which can throw.
func (c *Context) NumberValue(ec *ExceptionContext, h Handle) Maybe[float64] {
	defer c.begin(ec)()
	v := c.value(h)
	if p := c.eng.Describe(v); p.Kind == core.KindNumber {
		return Just(p.Number)
	}
	n := c.helper(ec, trampoline.HelperToNumber, v)
	if n == nil {
		return Nothing[float64]()
	}
	defer c.eng.Release(n)
	return Just(c.eng.Describe(n).Number)
}

// integral truncates f toward zero when the result fits in [lo, hi].
func integral(f, lo, hi float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t < lo || t > hi {
		return 0, false
	}
	return t, true
}

// Int32Value converts to int32. Non-finite and out-of-range numbers are
// absent without an exception; fractions truncate toward zero.
func (c *Context) Int32Value(ec *ExceptionContext, h Handle) Maybe[int32] {
	f := c.NumberValue(ec, h)
	if !f.Valid {
		return Nothing[int32]()
	}
	t, ok := integral(f.Value, math.MinInt32, math.MaxInt32)
	if !ok {
		return Nothing[int32]()
	}
	return Just(int32(t))
}

// Uint32Value converts to uint32 under the same rules as Int32Value.
func (c *Context) Uint32Value(ec *ExceptionContext, h Handle) Maybe[uint32] {
	f := c.NumberValue(ec, h)
	if !f.Valid {
		return Nothing[uint32]()
	}
	t, ok := integral(f.Value, 0, math.MaxUint32)
	if !ok {
		return Nothing[uint32]()
	}
	return Just(uint32(t))
}

// IntegerValue converts to int64 under the same rules as Int32Value.
func (c *Context) IntegerValue(ec *ExceptionContext, h Handle) Maybe[int64] {
	f := c.NumberValue(ec, h)
	if !f.Valid {
		return Nothing[int64]()
	}
	// 2^63 is exactly representable; the largest double below it is in range.
	t, ok := integral(f.Value, -(1 << 63), math.Nextafter(1<<63, 0))
	if !ok {
		return Nothing[int64]()
	}
	return Just(int64(t))
}

// Uint64Value converts to uint64 under the same rules as Int32Value.
func (c *Context) Uint64Value(ec *ExceptionContext, h Handle) Maybe[uint64] {
	f := c.NumberValue(ec, h)
	if !f.Valid {
		return Nothing[uint64]()
	}
	t, ok := integral(f.Value, 0, math.Nextafter(1<<64, 0))
	if !ok {
		return Nothing[uint64]()
	}
	return Just(uint64(t))
}

// ByteLength returns an ArrayBuffer's length. It is absent for detached
// buffers and non-buffers.
func (c *Context) ByteLength(h Handle) Maybe[int] {
	c.checkOpen()
	b, ok := c.eng.ArrayBufferBytes(c.value(h))
	if !ok {
		return Nothing[int]()
	}
	return Just(len(b))
}

// Detach detaches an ArrayBuffer. It reports false if h is not an attached
// buffer or the engine cannot detach it.
func (c *Context) Detach(h Handle) bool {
	c.checkOpen()
	v := c.value(h)
	if d, ok := c.eng.(core.Detacher); ok {
		return d.DetachArrayBuffer(v)
	}
	r := c.helper(nil, trampoline.HelperDetach, v)
	if r == nil {
		return false
	}
	defer c.eng.Release(r)
	return c.eng.Describe(r).Bool
}

// Bytes copies an ArrayBuffer's contents.
func (c *Context) Bytes(ec *ExceptionContext, h Handle) ([]byte, bool) {
	defer c.begin(ec)()
	b, ok := c.eng.ArrayBufferBytes(c.value(h))
	if !ok {
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}
