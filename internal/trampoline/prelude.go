package trampoline

import (
	"encoding/json"
	"strings"
)

// Class is the fine-grained classification of an object value.
type Class uint8

const (
	ClassOther Class = iota
	ClassFunction
	ClassArray
	ClassArrayBuffer
	ClassPromise
	ClassDate
	ClassRegExp
	ClassMap
	ClassSet
	ClassError
	ClassProxy
)

var classNames = map[string]Class{
	"other":       ClassOther,
	"function":    ClassFunction,
	"array":       ClassArray,
	"arraybuffer": ClassArrayBuffer,
	"promise":     ClassPromise,
	"date":        ClassDate,
	"regexp":      ClassRegExp,
	"map":         ClassMap,
	"set":         ClassSet,
	"error":       ClassError,
	"proxy":       ClassProxy,
}

// Natives lists the native trampolines in the order the prelude factory
// takes them: one per interceptor role, then "release".
var Natives = []string{
	RoleGetter.String(),
	RoleSetter.String(),
	RoleQuery.String(),
	RoleDeleter.String(),
	RoleEnumerator.String(),
	RoleDefiner.String(),
	RoleDescriptor.String(),
	RoleFunctionCall.String(),
	RoleConstructCall.String(),
	RoleAccessCheck.String(),
	"release",
}

// Helpers lists the prelude's exported helper functions in the order the
// returned array holds them.
var Helpers = []string{
	"notHandled", "get", "set", "has", "del", "keys", "construct", "object",
	"array", "error", "classOf", "toNumber", "toString", "display", "stackOf",
	"strictEquals", "detach", "carrier", "interceptor",
	"accessCheck", "fn", "getProto", "setProto", "looseEquals", "sameValue",
	"symbol", "instance", "fields",
}

// Helper indexes into the array returned by the prelude factory.
const (
	HelperNotHandled = iota
	HelperGet
	HelperSet
	HelperHas
	HelperDel
	HelperKeys
	HelperConstruct
	HelperObject
	HelperArray
	HelperError
	HelperClassOf
	HelperToNumber
	HelperToString
	HelperDisplay
	HelperStackOf
	HelperStrictEquals
	HelperDetach
	HelperCarrier
	HelperInterceptor
	HelperAccessCheck
	HelperFn
	HelperGetProto
	HelperSetProto
	HelperLooseEquals
	HelperSameValue
	HelperSymbol
	HelperInstance
	HelperFields
)

// Symbol kinds taken by the symbol helper.
const (
	SymbolUnique = iota
	SymbolRegistered
	SymbolWellKnown
)

// layoutJSON renders every layout as {"named": {"getter": 0, ..., "data": 7,
// "count": 8}, ...}. The prelude reads slot numbers only from here.
func layoutJSON() string {
	out := make(map[string]map[string]int, len(layouts))
	for _, l := range layouts {
		m := make(map[string]int, l.Count+1)
		for i, r := range l.Roles {
			m[r.String()] = i
		}
		m["data"] = l.Data
		m["count"] = l.Count
		out[l.Kind.String()] = m
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Prelude returns the factory script. Evaluating it yields a function that
// takes the natives (in Natives order) and returns the helpers (in Helpers
// order) as an array.
func Prelude() string {
	return strings.NewReplacer(
		"__LAYOUT__", layoutJSON(),
		"__CLASSES__", mustJSON(classNames),
		"__NATIVES__", mustJSON(Natives),
	).Replace(preludeJS)
}

// ElementGetter is the bootstrap script used to read the helpers array
// before the helpers themselves are available.
const ElementGetter = `(function (o, k) { return o[k]; })`

const preludeJS = `(function () {
'use strict';
var L = __LAYOUT__;
var C = __CLASSES__;
var NAMES = __NATIVES__;

return function () {
	var natives = {};
	for (var i = 0; i < NAMES.length; i++) natives[NAMES[i]] = arguments[i];

	var NOT_HANDLED = Object.freeze(Object.create(null));
	var slice = Array.prototype.slice;
	var proxies = new WeakSet();
	var fields = new WeakMap();
	var finalizer = typeof FinalizationRegistry === 'function'
		? new FinalizationRegistry(function (id) { natives.release(id); })
		: null;

	function isDetached(b) {
		if (typeof b.detached === 'boolean') return b.detached;
		try { new Uint8Array(b); return false; } catch (e) { return true; }
	}

	function classOf(v) {
		if (proxies.has(v)) return C.proxy;
		if (typeof v === 'function') return C['function'];
		if (Array.isArray(v)) return C.array;
		if (v instanceof ArrayBuffer) return C.arraybuffer;
		if (typeof Promise === 'function' && v instanceof Promise) return C.promise;
		if (v instanceof Date) return C.date;
		if (v instanceof RegExp) return C.regexp;
		if (typeof Map === 'function' && v instanceof Map) return C.map;
		if (typeof Set === 'function' && v instanceof Set) return C.set;
		if (v instanceof Error) return C.error;
		return C.other;
	}

	function display(v) {
		try { return String(v); } catch (e) { return Object.prototype.toString.call(v); }
	}

	// carrier(kind, registration, token, slot0, slot1, ...)
	function carrier(kind, reg, token) {
		var l = L[kind];
		var c = new Array(l.count);
		for (var i = 0; i < l.count; i++) c[i] = arguments[3 + i] || 0;
		if (token !== undefined) Object.defineProperty(c, 'token', { value: token });
		Object.freeze(c);
		if (token === undefined && finalizer) finalizer.register(c, reg);
		return c;
	}

	function toIndex(p) {
		if (typeof p !== 'string') return -1;
		var n = Number(p);
		if (n >>> 0 === n && n !== 4294967295 && String(n) === p) return n;
		return -1;
	}

	function descriptorOf(t, p, d) {
		if (d === undefined || d === null) return undefined;
		var out = {};
		var fields = ['value', 'writable', 'get', 'set', 'enumerable', 'configurable'];
		for (var i = 0; i < fields.length; i++) {
			if (fields[i] in d) out[fields[i]] = d[fields[i]];
		}
		var own = Reflect.getOwnPropertyDescriptor(t, p);
		if (!own || own.configurable) out.configurable = true;
		return out;
	}

	function interceptor(kind, target, c) {
		var l = L[kind];
		var indexed = kind === 'indexed';
		function applies(p) { return indexed ? toIndex(p) >= 0 : true; }
		function key(p) { return indexed ? toIndex(p) : p; }

		var handler = {
			get: function (t, p, r) {
				if (c[l.getter] && applies(p)) {
					var v = natives.getter(c, t, key(p), r);
					if (v !== NOT_HANDLED) return v;
				}
				return Reflect.get(t, p, r);
			},
			set: function (t, p, v, r) {
				if (c[l.setter] && applies(p)) {
					if (natives.setter(c, t, key(p), v, r) !== NOT_HANDLED) return true;
				}
				return Reflect.set(t, p, v, r);
			},
			has: function (t, p) {
				if (c[l.query] && applies(p)) {
					var q = natives.query(c, t, key(p));
					if (q !== NOT_HANDLED) return q !== false;
				}
				return Reflect.has(t, p);
			},
			deleteProperty: function (t, p) {
				if (c[l.deleter] && applies(p)) {
					var d = natives.deleter(c, t, key(p));
					if (d !== NOT_HANDLED) return !!d;
				}
				return Reflect.deleteProperty(t, p);
			},
			ownKeys: function (t) {
				var own = Reflect.ownKeys(t);
				if (!c[l.enumerator]) return own;
				var extra = natives.enumerator(c, t);
				if (extra === NOT_HANDLED || extra === undefined || extra === null) return own;
				var seen = new Set();
				var out = [];
				function add(k) {
					if (typeof k === 'number') k = String(k);
					if (!seen.has(k)) { seen.add(k); out.push(k); }
				}
				for (var i = 0; i < extra.length; i++) add(extra[i]);
				for (var j = 0; j < own.length; j++) add(own[j]);
				return out;
			},
			defineProperty: function (t, p, d) {
				if (c[l.definer] && applies(p)) {
					var r = natives.definer(c, t, key(p), d);
					if (r !== NOT_HANDLED) return r !== false;
				}
				return Reflect.defineProperty(t, p, d);
			},
			getOwnPropertyDescriptor: function (t, p) {
				if (!applies(p)) return Reflect.getOwnPropertyDescriptor(t, p);
				if (c[l.descriptor]) {
					var d = natives.descriptor(c, t, key(p));
					if (d !== NOT_HANDLED) return descriptorOf(t, p, d);
				}
				var own = Reflect.getOwnPropertyDescriptor(t, p);
				if (own) return own;
				var found = false, attrs = 0, value;
				if (c[l.query]) {
					var q = natives.query(c, t, key(p));
					if (q !== NOT_HANDLED && q !== false) {
						found = true;
						attrs = typeof q === 'number' ? q : 0;
					}
				}
				if (c[l.getter] && (found || !c[l.query])) {
					var v = natives.getter(c, t, key(p), t);
					if (v !== NOT_HANDLED) { found = true; value = v; }
				}
				if (!found) return undefined;
				return { value: value, writable: (attrs & 1) === 0, enumerable: (attrs & 2) === 0, configurable: true };
			}
		};
		var proxy = new Proxy(target, handler);
		proxies.add(proxy);
		return proxy;
	}

	function accessCheck(target, c) {
		function check(t, p) {
			if (!natives.access(c, t, p)) throw new TypeError('access denied: ' + display(p));
		}
		var proxy = new Proxy(target, {
			get: function (t, p, r) { check(t, p); return Reflect.get(t, p, r); },
			set: function (t, p, v, r) { check(t, p); return Reflect.set(t, p, v, r); },
			has: function (t, p) { check(t, p); return Reflect.has(t, p); },
			deleteProperty: function (t, p) { check(t, p); return Reflect.deleteProperty(t, p); },
			ownKeys: function (t) { check(t, undefined); return Reflect.ownKeys(t); },
			defineProperty: function (t, p, d) { check(t, p); return Reflect.defineProperty(t, p, d); },
			getOwnPropertyDescriptor: function (t, p) { check(t, p); return Reflect.getOwnPropertyDescriptor(t, p); }
		});
		proxies.add(proxy);
		return proxy;
	}

	function fn(c, name, length) {
		var f = function () {
			var args = slice.call(arguments);
			if (new.target !== undefined) {
				var r = natives.construct.apply(undefined, [c, this, new.target].concat(args));
				return (r !== null && (typeof r === 'object' || typeof r === 'function')) ? r : this;
			}
			return natives.call.apply(undefined, [c, this, undefined].concat(args));
		};
		Object.defineProperty(f, 'name', { value: name, configurable: true });
		Object.defineProperty(f, 'length', { value: length, configurable: true });
		return f;
	}

	function symbol(kind, s) {
		if (kind === 1) return Symbol.for(s);
		if (kind === 2) {
			var w = Symbol[s];
			if (typeof w !== 'symbol') throw new TypeError('no well-known symbol ' + s);
			return w;
		}
		return s === undefined ? Symbol() : Symbol(s);
	}

	// instance(carrier, name, value, get, set, name, value, get, set, ...)
	function instance(c) {
		var o = {};
		if (c) fields.set(o, c);
		for (var i = 1; i + 4 <= arguments.length; i += 4) {
			var k = arguments[i], g = arguments[i + 2], s = arguments[i + 3];
			if (typeof g === 'function' || typeof s === 'function') {
				Object.defineProperty(o, k, { get: g, set: s, enumerable: true, configurable: true });
			} else {
				Object.defineProperty(o, k, { value: arguments[i + 1], writable: true, enumerable: true, configurable: true });
			}
		}
		return o;
	}

	return [
		NOT_HANDLED,
		function (o, k) { return o[k]; },
		function (o, k, v) { return Reflect.set(o, k, v); },
		function (o, k) { return k in o; },
		function (o, k) { return Reflect.deleteProperty(o, k); },
		function (o) { return Reflect.ownKeys(o); },
		function (f) { return Reflect.construct(f, slice.call(arguments, 1)); },
		function () { return {}; },
		function () { return slice.call(arguments); },
		function (name, msg) {
			var E = globalThis[name];
			if (typeof E !== 'function') E = Error;
			return new E(msg);
		},
		classOf,
		function (v) { return Number(v); },
		function (v) { return String(v); },
		display,
		function (e) { return (e !== null && typeof e === 'object' && typeof e.stack === 'string') ? e.stack : ''; },
		function (a, b) { return a === b; },
		function (b) {
			if (!(b instanceof ArrayBuffer) || isDetached(b)) return false;
			if (typeof b.transfer !== 'function') return false;
			b.transfer();
			return true;
		},
		carrier,
		interceptor,
		accessCheck,
		fn,
		function (o) { return Object.getPrototypeOf(o); },
		function (o, p) { return Reflect.setPrototypeOf(o, p); },
		function (a, b) { return a == b; },
		function (a, b) { return Object.is(a, b); },
		symbol,
		instance,
		function (o) { return fields.get(o); }
	];
};
})()`

// ClassByName is exposed for tests that check the JSON table.
func ClassByName(name string) (Class, bool) {
	c, ok := classNames[name]
	return c, ok
}
