package jsbridge

import (
	"fmt"
	"time"

	"github.com/cryguy/jsbridge/internal/allocator"
	"github.com/cryguy/jsbridge/internal/codecache"
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/diag"
	"github.com/cryguy/jsbridge/internal/platform"
	"github.com/cryguy/jsbridge/internal/trampoline"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IsolateState is the lifecycle state of an Isolate.
type IsolateState uint8

const (
	IsolateCreated IsolateState = iota
	IsolateActive               // at least one context entered
	IsolateDisposed
)

func (s IsolateState) String() string {
	switch s {
	case IsolateCreated:
		return "created"
	case IsolateActive:
		return "active"
	case IsolateDisposed:
		return "disposed"
	}
	return fmt.Sprintf("IsolateState(%d)", uint8(s))
}

// FatalErrorCallback is invoked before the bridge panics on a contract
// violation.
type FatalErrorCallback func(location, message string)

// OOMErrorCallback is invoked when an allocation for the isolate fails.
type OOMErrorCallback func(location string, isHeapOOM bool)

// Isolate is an independent engine heap. It must be used from one goroutine
// at a time; only TerminateExecution may be called concurrently.
type Isolate struct {
	id      uuid.UUID
	name    string
	engine  core.Isolate
	alloc   allocator.Allocator
	plat    platform.Platform
	cache   core.CodeCache
	cfg     Config
	handles *handleTable

	callbacks     trampoline.Registry // role callbacks
	data          trampoline.Registry // registration data
	registrations trampoline.Registry // *registration

	contexts  map[*Context]struct{}
	entered   []*Context
	scopes    []*Scope
	listeners []func(*Message)
	sources   map[string]string // script name -> source, for SourceLine

	fatalID, oomID uint64
	depth          int // nested engine calls
	disposed       bool
}

// IsolateOption customizes NewIsolate.
type IsolateOption func(*isolateOptions)

type isolateOptions struct {
	alloc       allocator.Allocator
	memoryLimit uint64
	cache       core.CodeCache
	name        string
}

// WithIsolateAllocator backs the isolate's ArrayBuffers with a instead of
// the default allocator.
func WithIsolateAllocator(a Allocator) IsolateOption {
	return func(o *isolateOptions) { o.alloc = a }
}

// WithMemoryLimit caps the isolate heap in bytes where the engine supports
// it.
func WithMemoryLimit(bytes uint64) IsolateOption {
	return func(o *isolateOptions) { o.memoryLimit = bytes }
}

// WithCodeCache replaces the engine-wide compiled-script cache.
func WithCodeCache(c CodeCache) IsolateOption {
	return func(o *isolateOptions) { o.cache = c }
}

// WithName labels the isolate in logs.
func WithName(name string) IsolateOption {
	return func(o *isolateOptions) { o.name = name }
}

// NewIsolate creates an isolate. Initialize must have been called.
func NewIsolate(opts ...IsolateOption) (*Isolate, error) {
	cfg, backend, plat, alloc, store, err := snapshot()
	if err != nil {
		return nil, err
	}
	o := isolateOptions{alloc: alloc, memoryLimit: cfg.MemoryLimitBytes()}
	if store != nil {
		o.cache = store.Bind(backend.Name())
	}
	for _, opt := range opts {
		opt(&o)
	}

	eng, err := backend.NewIsolate(core.IsolateConfig{
		MemoryLimit:     o.memoryLimit,
		StackTraceLimit: cfg.StackTraceLimit,
		CodeCache:       o.cache,
	})
	if err != nil {
		return nil, fmt.Errorf("jsbridge: creating isolate: %w", err)
	}

	iso := &Isolate{
		id:       uuid.New(),
		name:     o.name,
		engine:   eng,
		alloc:    o.alloc,
		plat:     plat,
		cache:    o.cache,
		cfg:      cfg,
		handles:  newHandleTable(),
		contexts: make(map[*Context]struct{}),
		sources:  make(map[string]string),
	}
	if err := registerIsolate(iso); err != nil {
		eng.Dispose()
		return nil, err
	}
	plat.RegisterIsolate(iso.id)
	iso.AddMessageListener(diag.NewLogSink(core.Logger().With(iso.logFields()...)))
	core.Logger().Debug("isolate created", iso.logFields()...)
	return iso, nil
}

func (iso *Isolate) logFields() []zap.Field {
	fields := []zap.Field{zap.String("isolate", iso.id.String())}
	if iso.name != "" {
		fields = append(fields, zap.String("name", iso.name))
	}
	return fields
}

// ID returns the isolate's identifier, also used for its platform queues.
func (iso *Isolate) ID() uuid.UUID { return iso.id }

// Name returns the label given with WithName.
func (iso *Isolate) Name() string { return iso.name }

// State reports the isolate's lifecycle state.
func (iso *Isolate) State() IsolateState {
	switch {
	case iso.disposed:
		return IsolateDisposed
	case len(iso.entered) > 0:
		return IsolateActive
	}
	return IsolateCreated
}

func (iso *Isolate) checkAlive() {
	if iso.disposed {
		violation("isolate %s used after Dispose", iso.id)
	}
}

// fatal reports a contract violation to the fatal error handler and panics.
func (iso *Isolate) fatal(location, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if cb, ok := iso.callbacks.Load(iso.fatalID); ok {
		cb.(FatalErrorCallback)(location, msg)
	}
	violation("%s: %s", location, msg)
}

func (iso *Isolate) outOfMemory(location string, heap bool) {
	core.Logger().Warn("out of memory", append(iso.logFields(), zap.String("location", location), zap.Bool("heap", heap))...)
	if cb, ok := iso.callbacks.Load(iso.oomID); ok {
		cb.(OOMErrorCallback)(location, heap)
	}
}

// SetFatalErrorHandler installs the handler run before contract-violation
// panics. A nil fn removes it.
func (iso *Isolate) SetFatalErrorHandler(fn FatalErrorCallback) {
	iso.checkAlive()
	iso.callbacks.Delete(iso.fatalID)
	iso.fatalID = 0
	if fn != nil {
		iso.fatalID = iso.callbacks.Store(fn)
	}
}

// SetOOMErrorHandler installs the handler run when an allocation fails. A
// nil fn removes it.
func (iso *Isolate) SetOOMErrorHandler(fn OOMErrorCallback) {
	iso.checkAlive()
	iso.callbacks.Delete(iso.oomID)
	iso.oomID = 0
	if fn != nil {
		iso.oomID = iso.callbacks.Store(fn)
	}
}

// AddMessageListener registers fn to observe every captured message.
func (iso *Isolate) AddMessageListener(fn func(*Message)) {
	iso.checkAlive()
	iso.listeners = append(iso.listeners, fn)
}

func (iso *Isolate) notify(m *Message) {
	for _, fn := range iso.listeners {
		fn(m)
	}
}

// TerminateExecution stops the JavaScript currently running in the
// isolate. It may be called from any goroutine.
func (iso *Isolate) TerminateExecution() {
	iso.engine.TerminateExecution()
}

// PumpMessageLoop runs the isolate's due foreground tasks and returns how
// many ran.
func (iso *Isolate) PumpMessageLoop() int {
	iso.checkAlive()
	return iso.plat.RunForegroundTasks(iso.id)
}

// RunIdleTasks runs idle tasks for at most seconds.
func (iso *Isolate) RunIdleTasks(seconds float64) int {
	iso.checkAlive()
	return iso.plat.RunIdleTasks(iso.id, seconds)
}

// EnteredContext returns the innermost entered context, or nil.
func (iso *Isolate) EnteredContext() *Context {
	if len(iso.entered) == 0 {
		return nil
	}
	return iso.entered[len(iso.entered)-1]
}

// ContextDepth returns how many contexts are entered.
func (iso *Isolate) ContextDepth() int { return len(iso.entered) }

// HandleCount returns the number of live durable handles.
func (iso *Isolate) HandleCount() int { return iso.handles.len() }

// Release drops a durable handle. Every handle must be released exactly
// once; releasing NoHandle is a no-op.
func (iso *Isolate) Release(h Handle) {
	if h == NoHandle {
		return
	}
	iso.checkAlive()
	iso.releaseEntry(iso.handles.remove(h))
}

func (iso *Isolate) releaseEntry(e *handleEntry) {
	if e.ctx == nil {
		return
	}
	if e.value != nil {
		e.ctx.eng.Release(e.value)
	}
	e.ctx.unref()
}

// Message returns the message behind a message handle.
func (iso *Isolate) Message(h Handle) *Message {
	iso.checkAlive()
	return iso.handles.get(h, handleMessage).msg
}

// watch arms the execution watchdog around an outermost engine call.
func (iso *Isolate) watch() func() {
	iso.depth++
	if iso.depth > 1 || iso.cfg.ExecutionTimeout <= 0 {
		return func() { iso.depth-- }
	}
	t := time.AfterFunc(iso.cfg.ExecutionTimeout, iso.engine.TerminateExecution)
	return func() {
		t.Stop()
		iso.depth--
	}
}

// post queues fn on the isolate's foreground queue. fn runs from
// PumpMessageLoop; if the isolate or platform goes away first, destroy
// runs instead.
func (iso *Isolate) post(run, destroy func()) {
	iso.plat.CallOnForegroundThread(iso.id, platform.NewTask(run, destroy))
}

// Dispose releases every registration, handle and context, drops the
// isolate's queued tasks and disposes the engine heap. Calling it again is
// a no-op.
func (iso *Isolate) Dispose() {
	if iso.disposed {
		return
	}
	for len(iso.scopes) > 0 {
		iso.scopes[len(iso.scopes)-1].Close()
	}
	iso.entered = nil

	released := iso.registrations.Len()
	iso.registrations.Drain(func(_ uint64, v any) {
		iso.dropRegistration(v.(*registration))
	})
	for _, e := range iso.handles.drain() {
		iso.releaseEntry(e)
	}
	for c := range iso.contexts {
		c.close()
	}
	iso.callbacks.Drain(nil)
	iso.data.Drain(nil)

	iso.plat.UnregisterIsolate(iso.id)
	iso.engine.Dispose()
	iso.disposed = true
	unregisterIsolate(iso)
	core.Logger().Debug("isolate disposed", append(iso.logFields(), zap.Int("registrations", released))...)
}

// codeCacheKey namespaces cache entries for transformed sources.
func codeCacheKey(kind, name, source string) string {
	return codecache.Key(kind, name, source)
}
