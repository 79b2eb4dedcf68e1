package core

// Value is an engine-native value reference (goja.Value, *v8.Value, or a
// QuickJS slot id). The bridge never inspects it directly.
type Value any

// Script is an engine-native compiled script.
type Script any

// NativeFunc is a Go function callable from JavaScript. It returns either a
// result or a value to throw; a nil result means undefined. args belong to
// the backend and are valid only during the call. result and throw are
// handed over: the backend releases them once it has copied them into the
// engine.
type NativeFunc func(args []Value) (result Value, throw Value)

// Context abstracts one global scope of an engine isolate. All methods must
// be called on the goroutine that owns the isolate.
//
// Every Value a method returns is owned by the caller and must eventually be
// passed to Release. Values passed as arguments are borrowed.
type Context interface {
	Global() Value
	Undefined() Value
	Null() Value
	Bool(b bool) Value
	Number(f float64) Value
	String(s string) Value

	// Describe reports the primitive view of v. Objects report only their
	// kind; finer classification is done in JavaScript.
	Describe(v Value) Primitive

	// Compile parses source without running it.
	Compile(name, source string) (Script, *Thrown)

	// Run executes a compiled script in this context.
	Run(s Script) (Value, *Thrown)

	// Call invokes fn with the given receiver.
	Call(fn, recv Value, args ...Value) (Value, *Thrown)

	// NewFunction exposes fn to JavaScript as a plain function.
	NewFunction(name string, fn NativeFunc) (Value, error)

	// NewArrayBuffer creates an ArrayBuffer over (or copied from) data.
	NewArrayBuffer(data []byte) (Value, *Thrown)

	// ArrayBufferBytes returns the contents of an ArrayBuffer. ok is false
	// for non-buffers and detached buffers.
	ArrayBufferBytes(buf Value) (data []byte, ok bool)

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.).
	// V8: PerformMicrotaskCheckpoint, QuickJS: ExecutePendingJob loop,
	// goja: no-op, jobs run when the outermost call returns.
	RunMicrotasks()

	// Retain returns an independently owned reference to v. Release drops
	// one. Engines with GC-managed Go references implement both as no-ops.
	Retain(v Value) Value
	Release(v Value)

	Close()
}

// Collector is implemented by contexts that can report when the engine
// garbage-collects an object without help from FinalizationRegistry.
type Collector interface {
	// NewCollectable returns an object; onCollect runs (on an arbitrary
	// goroutine) some time after the engine stops referencing it.
	NewCollectable(onCollect func()) Value
}

// ExternalBuffers is implemented by contexts whose ArrayBuffers keep using
// the slice given to NewArrayBuffer as their backing store. Other engines
// copy it.
type ExternalBuffers interface {
	ExternalArrayBuffers() bool
}

// Detacher is implemented by contexts that detach buffers natively.
type Detacher interface {
	DetachArrayBuffer(buf Value) bool
}

// Precompiler is implemented by engines whose compiler does not need the
// isolate, so compilation can run on a background goroutine.
type Precompiler interface {
	// Precompile must not touch the context.
	Precompile(name, source string) (any, error)

	// Adopt turns a Precompile result into a Script on the owning goroutine.
	Adopt(name string, pre any, err error) (Script, *Thrown)
}

// PromiseState mirrors the engine's promise states.
type PromiseState uint8

const (
	PromisePending PromiseState = iota
	PromiseFulfilled
	PromiseRejected
)

// PromiseInspector is implemented by contexts that can read promise state
// synchronously.
type PromiseInspector interface {
	PromiseState(v Value) (state PromiseState, result Value, ok bool)
}
