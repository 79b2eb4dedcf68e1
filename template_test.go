package jsbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct{ x, y int }

func TestObjectTemplateInstances(t *testing.T) {
	iso, ctx := newTestContext(t)

	tmpl := iso.NewObjectTemplate()
	tmpl.Set("kind", ctx.String("point"))
	tmpl.SetFunction("norm", FunctionHandlers{Call: func(info *CallInfo) {
		p := ctx.InternalField(info.Persist(info.This), 0).(*point)
		info.SetReturnValue(info.Int32(int32(p.x*p.x + p.y*p.y)))
	}}, nil)
	tmpl.SetAccessor("x", func(info *CallInfo) {
		p := ctx.InternalField(info.Persist(info.This), 0).(*point)
		info.SetReturnValue(info.Int32(int32(p.x)))
	}, func(info *CallInfo) {
		n, err := ctx.AsInt32(info.Persist(info.Arg(0)))
		require.NoError(t, err)
		ctx.InternalField(info.Persist(info.This), 0).(*point).x = int(n)
	}, nil)
	assert.Zero(t, tmpl.InternalFieldCount())

	a := ctx.NewInstanceWithInternal(nil, tmpl, &point{3, 4})
	b := ctx.NewInstanceWithInternal(nil, tmpl, &point{1, 1})
	require.NotEqual(t, NoHandle, a)
	require.NotEqual(t, NoHandle, b)
	assert.Equal(t, 1, tmpl.InternalFieldCount())
	setGlobal(t, ctx, "a", a)
	setGlobal(t, ctx, "b", b)

	assert.Equal(t, "point", mustString(t, ctx, mustEval(t, ctx, "a.kind")))
	assert.EqualValues(t, 25, mustInt(t, ctx, mustEval(t, ctx, "a.norm()")))
	assert.EqualValues(t, 2, mustInt(t, ctx, mustEval(t, ctx, "b.norm()")))
	assert.EqualValues(t, 6, mustInt(t, ctx, mustEval(t, ctx, "a.x = 6; a.x")))
	assert.Equal(t, 6, ctx.InternalField(a, 0).(*point).x)
	assert.Equal(t, "kind,norm,x", mustString(t, ctx, mustEval(t, ctx, "Object.keys(b).join()")))
	assert.Equal(t, "false", mustString(t, ctx, mustEval(t, ctx, "String(a.norm === b.norm)")))
}

func TestInternalFields(t *testing.T) {
	iso, ctx := newTestContext(t)

	tmpl := iso.NewObjectTemplate()
	tmpl.SetInternalFieldCount(2)
	obj := ctx.NewInstance(nil, tmpl)
	require.NotEqual(t, NoHandle, obj)
	assert.Equal(t, 2, ctx.InternalFieldCount(obj))
	assert.Nil(t, ctx.InternalField(obj, 1))

	ctx.SetInternalField(obj, 1, "second")
	assert.Equal(t, "second", ctx.InternalField(obj, 1))
	assert.Nil(t, ctx.InternalField(obj, 0))

	// Fields are not reachable from scripts.
	setGlobal(t, ctx, "obj", obj)
	assert.EqualValues(t, 0, mustInt(t, ctx, mustEval(t, ctx, "Reflect.ownKeys(obj).length")))

	plain := ctx.NewObject()
	assert.Zero(t, ctx.InternalFieldCount(plain))
	assert.Panics(t, func() { ctx.InternalField(plain, 0) })
	assert.Panics(t, func() { ctx.SetInternalField(obj, 2, nil) })
	assert.Panics(t, func() { tmpl.SetInternalFieldCount(-1) })
	assert.Panics(t, func() { tmpl.SetFunction("f", FunctionHandlers{}, nil) })
}

func TestTemplateFromAnotherIsolate(t *testing.T) {
	_, ctx := newTestContext(t)
	other, _ := newTestContext(t)
	tmpl := other.NewObjectTemplate()
	assert.Panics(t, func() { ctx.NewInstance(nil, tmpl) })
}

func TestPrototypes(t *testing.T) {
	_, ctx := newTestContext(t)

	proto := mustEval(t, ctx, "({ greet() { return 'hi ' + this.name; } })")
	obj := mustEval(t, ctx, "({ name: 'ann' })")
	assert.Equal(t, Just(true), ctx.SetPrototype(nil, obj, proto))
	setGlobal(t, ctx, "obj", obj)
	assert.Equal(t, "hi ann", mustString(t, ctx, mustEval(t, ctx, "obj.greet()")))

	got := ctx.GetPrototype(nil, obj)
	assert.True(t, ctx.StrictEquals(proto, got))

	// A cycle is refused without throwing.
	var ec ExceptionContext
	assert.Equal(t, Just(false), ctx.SetPrototype(&ec, proto, obj))
	assert.False(t, ec.Threw())

	// A primitive prototype throws.
	assert.False(t, ctx.SetPrototype(&ec, obj, ctx.Int32(1)).Valid)
	assert.True(t, ec.Threw())
	ec.Reset(ctx.Isolate())

	null := ctx.GetPrototype(nil, mustEval(t, ctx, "Object.create(null)"))
	assert.Equal(t, KindNull, ctx.TypeOf(null))
}

func TestEqualityFlavors(t *testing.T) {
	_, ctx := newTestContext(t)

	one, str := ctx.Int32(1), ctx.String("1")
	assert.Equal(t, Just(true), ctx.Equals(nil, one, str))
	assert.False(t, ctx.StrictEquals(one, str))
	assert.False(t, ctx.SameValue(one, str))

	nan := mustEval(t, ctx, "NaN")
	assert.True(t, ctx.SameValue(nan, mustEval(t, ctx, "NaN")))
	assert.False(t, ctx.StrictEquals(nan, nan))
	assert.False(t, ctx.SameValue(ctx.Number(0), mustEval(t, ctx, "-0")))

	var ec ExceptionContext
	bad := mustEval(t, ctx, "({ valueOf() { throw new Error('no') } })")
	assert.False(t, ctx.Equals(&ec, bad, one).Valid)
	assert.True(t, ec.Threw())
	ec.Reset(ctx.Isolate())
}

func TestSymbols(t *testing.T) {
	_, ctx := newTestContext(t)

	a, b := ctx.NewSymbol("tag"), ctx.NewSymbol("tag")
	assert.Equal(t, KindSymbol, ctx.TypeOf(a))
	assert.False(t, ctx.StrictEquals(a, b))
	setGlobal(t, ctx, "a", a)
	assert.Equal(t, "Symbol(tag)", mustString(t, ctx, mustEval(t, ctx, "String(a)")))

	reg := ctx.SymbolFor("app.key")
	assert.True(t, ctx.StrictEquals(reg, ctx.SymbolFor("app.key")))
	assert.True(t, ctx.StrictEquals(reg, mustEval(t, ctx, "Symbol.for('app.key')")))

	iter := ctx.WellKnown(nil, SymbolIterator)
	assert.True(t, ctx.StrictEquals(iter, mustEval(t, ctx, "Symbol.iterator")))

	var ec ExceptionContext
	assert.Equal(t, NoHandle, ctx.WellKnown(&ec, WellKnownSymbol("noSuchSymbol")))
	require.True(t, ec.Threw())
	assert.Contains(t, ctx.Isolate().Message(ec.Message).Text, "no well-known symbol noSuchSymbol")
	ec.Reset(ctx.Isolate())
}
