//go:build quickjs

package quickjs

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cryguy/jsbridge/internal/core"
	"go.uber.org/zap"
	"modernc.org/quickjs"
)

// ref is a slot id in the VM's value table. Ids below firstRef are pinned
// and never released.
type ref int

const (
	refUndefined ref = 1
	refNull      ref = 2
	refTrue      ref = 3
	refFalse     ref = 4
	firstRef     ref = 8
)

// bufferGlobal and promiseGlobal are the scratch globals used to move
// values through the C API.
const (
	bufferGlobal  = "__jsq_ab"
	promiseGlobal = "__jsq_p"
)

// syntaxPrefix wraps sources for a parse-only check.
const syntaxPrefix = "(function () {"

// supportJS installs the slot table and the entry points the Go side
// evaluates. Every entry point returns a slot id, negated when the
// operation threw.
const supportJS = `(function (g) {
	var slots = new Map(), next = 8;
	var host = g.__jsbridge_native;
	delete g.__jsbridge_native;
	slots.set(1, undefined);
	slots.set(2, null);
	slots.set(3, true);
	slots.set(4, false);
	function __jsq_put(v) {
		if (v === undefined) return 1;
		if (v === null) return 2;
		if (v === true) return 3;
		if (v === false) return 4;
		var id = next++;
		slots.set(id, v);
		return id;
	}
	function take(id) {
		var v = slots.get(id);
		if (id >= 8) slots.delete(id);
		return v;
	}
	function drop(ids) {
		for (var i = 0; i < ids.length; i++) if (ids[i] >= 8) slots.delete(ids[i]);
	}
	function describe(id) {
		var v = slots.get(id);
		switch (typeof v) {
		case 'undefined': return 'u';
		case 'boolean': return v ? 'b1' : 'b0';
		case 'number': return (v === 0 && 1 / v < 0) ? 'n-0' : 'n' + String(v);
		case 'string': return 's' + v;
		case 'bigint': return 'i' + v.toString();
		case 'symbol': return 'y';
		case 'function': return 'f';
		}
		return v === null ? 'l' : 'o';
	}
	function info(id) {
		var e = slots.get(id), text = '', stack = '';
		try { text = String(e); } catch (_) { text = '[object]'; }
		try { if (e !== null && typeof e === 'object' && typeof e.stack === 'string') stack = e.stack; } catch (_) {}
		return JSON.stringify([text, stack]);
	}
	function __jsq_call(f, r, ids) {
		try {
			var a = new Array(ids.length);
			for (var i = 0; i < ids.length; i++) a[i] = slots.get(ids[i]);
			return __jsq_put(Reflect.apply(slots.get(f), slots.get(r), a));
		} catch (e) {
			return -__jsq_put(e);
		}
	}
	function __jsq_run(src) {
		try { return __jsq_put((0, eval)(src)); } catch (e) { return -__jsq_put(e); }
	}
	function __jsq_check(src) {
		try { (0, eval)('` + syntaxPrefix + `' + src + '\n})'); return 1; } catch (e) { return -__jsq_put(e); }
	}
	function native(id, name) {
		var f = function __jsq_native() {
			var ids = new Array(arguments.length);
			for (var i = 0; i < arguments.length; i++) ids[i] = __jsq_put(arguments[i]);
			var r;
			try { r = host(id, ids.join(',')); } finally { drop(ids); }
			var v = take(r < 0 ? -r : r);
			if (r < 0) throw v;
			return v;
		};
		Object.defineProperty(f, 'name', { value: name });
		return __jsq_put(f);
	}
	function adopt(name) {
		var v = g[name];
		delete g[name];
		return __jsq_put(v);
	}
	function expose(id, name) {
		var v = slots.get(id);
		if (!(v instanceof ArrayBuffer)) return 0;
		try { new Uint8Array(v); } catch (_) { return 0; }
		g[name] = v;
		return 1;
	}
	function stage(id, name) {
		var v = slots.get(id);
		if (!(v instanceof Promise)) return 0;
		g[name] = v;
		return 1;
	}
	function bytes(id) {
		var v = slots.get(id);
		if (!(v instanceof ArrayBuffer)) return '!';
		try { return Array.prototype.join.call(new Uint8Array(v), ','); } catch (_) { return '!'; }
	}
	function buffer(list) {
		var u = new Uint8Array(list.length);
		for (var i = 0; i < list.length; i++) u[i] = list[i];
		return __jsq_put(u.buffer);
	}
	Object.defineProperty(g, '__jsq', { value: {
		put: __jsq_put, get: function (id) { return slots.get(id); }, drop: drop,
		describe: describe, info: info, call: __jsq_call, run: __jsq_run,
		check: __jsq_check, native: native, adopt: adopt, expose: expose,
		stage: stage, bytes: bytes, buffer: buffer
	} });
})(globalThis);`

// context implements core.Context over one QuickJS VM.
type context struct {
	iso        *isolate
	vm         *quickjs.VM
	capi       *cAPI
	stackLimit int

	natives    map[int]core.NativeFunc
	nextNative int

	// pending holds released ids, dropped before the next evaluation.
	pending []ref
	// running names the scripts on the stack; eval'd code has no file name
	// of its own.
	running []string
	last    string
}

var (
	_ core.Context          = (*context)(nil)
	_ core.ExternalBuffers  = (*context)(nil)
	_ core.PromiseInspector = (*context)(nil)
)

func (c *context) install() error {
	if err := c.vm.RegisterFunc("__jsbridge_native", c.callNative, false); err != nil {
		return fmt.Errorf("quickjs: registering native entry: %w", err)
	}
	if _, err := c.vm.Eval(supportJS, quickjs.EvalGlobal); err != nil {
		return fmt.Errorf("quickjs: installing support code: %w", err)
	}
	capi, err := extractCAPI(c.vm)
	if err != nil {
		core.Logger().Debug("quickjs C API unavailable, using script fallbacks", zap.Error(err))
		return nil
	}
	c.capi = &capi
	return nil
}

func (c *context) flush() {
	if len(c.pending) == 0 {
		return
	}
	ids := make([]string, len(c.pending))
	for i, id := range c.pending {
		ids[i] = strconv.Itoa(int(id))
	}
	c.pending = c.pending[:0]
	if _, err := c.vm.Eval("__jsq.drop(["+strings.Join(ids, ",")+"])", quickjs.EvalGlobal); err != nil {
		core.Logger().Debug("quickjs slot release failed", zap.Error(err))
	}
}

func (c *context) eval(js string) (any, error) {
	c.flush()
	return c.vm.Eval(js, quickjs.EvalGlobal)
}

func (c *context) evalInt(js string) (int, error) {
	res, err := c.eval(js)
	if err != nil {
		return 0, err
	}
	switch n := res.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("quickjs: expected a slot id, got %T", res)
}

func (c *context) evalString(js string) (string, error) {
	res, err := c.eval(js)
	if err != nil {
		return "", err
	}
	s, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("quickjs: expected a string, got %T", res)
	}
	return s, nil
}

// put evaluates expr into a new slot. Failures leave undefined; they only
// happen once the VM is interrupted or out of memory.
func (c *context) put(expr string) core.Value {
	id, err := c.evalInt("__jsq.put(" + expr + ")")
	if err != nil {
		core.Logger().Debug("quickjs value creation failed", zap.Error(err))
		return refUndefined
	}
	return ref(id)
}

func (c *context) id(v core.Value) ref {
	if v == nil {
		return refUndefined
	}
	return v.(ref)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func numberLiteral(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0 && math.Signbit(f):
		return "-0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (c *context) Global() core.Value    { return c.put("globalThis") }
func (c *context) Undefined() core.Value { return refUndefined }
func (c *context) Null() core.Value      { return refNull }

func (c *context) Bool(b bool) core.Value {
	if b {
		return refTrue
	}
	return refFalse
}

func (c *context) Number(f float64) core.Value { return c.put(numberLiteral(f)) }
func (c *context) String(s string) core.Value  { return c.put(quote(s)) }

func (c *context) Retain(v core.Value) core.Value {
	id := c.id(v)
	if id < firstRef {
		return id
	}
	return c.put(fmt.Sprintf("__jsq.get(%d)", id))
}

func (c *context) Release(v core.Value) {
	if id := c.id(v); id >= firstRef {
		c.pending = append(c.pending, id)
	}
}

func (c *context) Describe(v core.Value) core.Primitive {
	switch id := c.id(v); id {
	case refUndefined:
		return core.Primitive{Kind: core.KindUndefined}
	case refNull:
		return core.Primitive{Kind: core.KindNull}
	case refTrue:
		return core.Primitive{Kind: core.KindBoolean, Bool: true}
	case refFalse:
		return core.Primitive{Kind: core.KindBoolean}
	}
	tag, err := c.evalString(fmt.Sprintf("__jsq.describe(%d)", c.id(v)))
	if err != nil || tag == "" {
		return core.Primitive{Kind: core.KindUndefined}
	}
	rest := tag[1:]
	switch tag[0] {
	case 'l':
		return core.Primitive{Kind: core.KindNull}
	case 'b':
		return core.Primitive{Kind: core.KindBoolean, Bool: rest == "1"}
	case 'n':
		if rest == "-0" {
			return core.Primitive{Kind: core.KindNumber, Number: math.Copysign(0, -1)}
		}
		f, _ := strconv.ParseFloat(rest, 64)
		return core.Primitive{Kind: core.KindNumber, Number: f}
	case 's':
		return core.Primitive{Kind: core.KindString, String: rest}
	case 'i':
		return core.Primitive{Kind: core.KindBigInt, String: rest}
	case 'y':
		return core.Primitive{Kind: core.KindSymbol}
	case 'f':
		return core.Primitive{Kind: core.KindFunction}
	case 'o':
		return core.Primitive{Kind: core.KindObject}
	}
	return core.Primitive{Kind: core.KindUndefined}
}

// script is a syntax-checked source. QuickJS has no detached compiled
// form reachable from Go, so Run evaluates the text.
type script struct {
	name   string
	source string
}

func (c *context) Compile(name, source string) (core.Script, *core.Thrown) {
	c.running = append(c.running, name)
	id, err := c.evalInt("__jsq.check(" + quote(source) + ")")
	c.running = c.running[:len(c.running)-1]
	if err != nil {
		return nil, c.goError(err)
	}
	if id < 0 {
		t := c.thrownRef(ref(-id), name)
		if t.Line == 1 && t.Column > len(syntaxPrefix) {
			t.Column -= len(syntaxPrefix)
		}
		return nil, t
	}
	return &script{name: name, source: source}, nil
}

func (c *context) Run(s core.Script) (core.Value, *core.Thrown) {
	sc := s.(*script)
	c.running = append(c.running, sc.name)
	c.last = sc.name
	defer func() { c.running = c.running[:len(c.running)-1] }()
	return c.result(c.evalInt("__jsq.run(" + quote(sc.source) + ")"))
}

func (c *context) Call(fn, recv core.Value, args ...core.Value) (core.Value, *core.Thrown) {
	var b strings.Builder
	fmt.Fprintf(&b, "__jsq.call(%d,%d,[", c.id(fn), c.id(recv))
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(c.id(a))))
	}
	b.WriteString("])")
	return c.result(c.evalInt(b.String()))
}

func (c *context) result(id int, err error) (core.Value, *core.Thrown) {
	if err != nil {
		return nil, c.goError(err)
	}
	if id < 0 {
		return nil, c.thrownRef(ref(-id), "")
	}
	return ref(id), nil
}

func (c *context) NewFunction(name string, fn core.NativeFunc) (core.Value, error) {
	c.nextNative++
	id := c.nextNative
	c.natives[id] = fn
	n, err := c.evalInt(fmt.Sprintf("__jsq.native(%d,%s)", id, quote(name)))
	if err != nil {
		delete(c.natives, id)
		return nil, fmt.Errorf("quickjs: creating function %q: %w", name, err)
	}
	return ref(n), nil
}

// callNative is the single Go entry registered with the VM. args is the
// comma-separated slot ids of the call arguments.
func (c *context) callNative(id int, args string) int {
	fn := c.natives[id]
	if fn == nil {
		return -int(c.put(`new Error("native function is gone")`).(ref))
	}
	var vals []core.Value
	if args != "" {
		parts := strings.Split(args, ",")
		vals = make([]core.Value, len(parts))
		for i, p := range parts {
			n, _ := strconv.Atoi(p)
			vals[i] = ref(n)
		}
	}
	res, throw := fn(vals)
	if throw != nil {
		return -int(c.id(throw))
	}
	return int(c.id(res))
}

func (c *context) NewArrayBuffer(data []byte) (core.Value, *core.Thrown) {
	if c.capi != nil {
		c.flush()
		if err := c.capi.setGlobalBuffer(bufferGlobal, data); err != nil {
			return nil, c.goError(err)
		}
		return c.result(c.evalInt("__jsq.adopt(" + quote(bufferGlobal) + ")"))
	}
	var b strings.Builder
	b.WriteString("__jsq.buffer([")
	for i, x := range data {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(x)))
	}
	b.WriteString("])")
	return c.result(c.evalInt(b.String()))
}

// ExternalArrayBuffers is false: buffers always hold a copy.
func (c *context) ExternalArrayBuffers() bool { return false }

func (c *context) ArrayBufferBytes(buf core.Value) ([]byte, bool) {
	id := c.id(buf)
	if c.capi != nil {
		ok, err := c.evalInt(fmt.Sprintf("__jsq.expose(%d,%s)", id, quote(bufferGlobal)))
		if err != nil || ok == 0 {
			return nil, false
		}
		data, err := c.capi.globalBufferBytes(bufferGlobal)
		if _, derr := c.eval("delete globalThis." + bufferGlobal); derr != nil && err == nil {
			err = derr
		}
		if err != nil {
			core.Logger().Debug("quickjs buffer read failed", zap.Error(err))
			return nil, false
		}
		return data, true
	}
	s, err := c.evalString(fmt.Sprintf("__jsq.bytes(%d)", id))
	if err != nil || s == "!" {
		return nil, false
	}
	if s == "" {
		return []byte{}, true
	}
	parts := strings.Split(s, ",")
	out := make([]byte, len(parts))
	for i, p := range parts {
		n, _ := strconv.Atoi(p)
		out[i] = byte(n)
	}
	return out, true
}

// PromiseState reads promise state through the C API; without it no value
// counts as a promise.
func (c *context) PromiseState(v core.Value) (core.PromiseState, core.Value, bool) {
	if c.capi == nil {
		return core.PromisePending, nil, false
	}
	staged, err := c.evalInt(fmt.Sprintf("__jsq.stage(%d,%s)", c.id(v), quote(promiseGlobal)))
	if err != nil || staged == 0 {
		return core.PromisePending, nil, false
	}
	state, err := c.capi.promiseState(promiseGlobal)
	if err != nil || state == core.PromisePending {
		if _, derr := c.eval("delete globalThis." + promiseGlobal); derr != nil {
			core.Logger().Debug("quickjs scratch cleanup failed", zap.Error(derr))
		}
		return core.PromisePending, nil, err == nil
	}
	id, err := c.evalInt("__jsq.adopt(" + quote(promiseGlobal) + ")")
	if err != nil {
		return state, nil, true
	}
	return state, ref(id), true
}

// RunMicrotasks drains the job queue through the C API. Without it the
// queue only moves when QuickJS runs jobs on its own.
func (c *context) RunMicrotasks() {
	c.flush()
	if c.capi != nil {
		c.capi.executePendingJobs()
	}
}

func (c *context) Close() {
	c.iso.forget(c.vm)
	c.natives = nil
	c.pending = nil
	c.vm.Close()
}
