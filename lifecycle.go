// Package jsbridge embeds a JavaScript engine behind a flat, handle-based
// API. Host code never touches engine objects: values cross as scope-bound
// Locals or durable Handles, and failures come back as captured exceptions
// or absent Maybe results.
//
// The engine is chosen at build time: goja by default, V8 with the "v8"
// tag, QuickJS with the "quickjs" tag.
package jsbridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/cryguy/jsbridge/internal/allocator"
	"github.com/cryguy/jsbridge/internal/codecache"
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/platform"
	"go.uber.org/zap"
)

type lifecycleState uint8

const (
	stateUninitialized lifecycleState = iota
	stateInitialized
	stateDisposed
)

// engine is the process-wide state. Initialize and Dispose are expected to
// be called once each, from one goroutine.
var engine struct {
	mu        sync.Mutex
	state     lifecycleState
	cfg       Config
	backend   core.Backend
	platform  platform.Platform
	allocator allocator.Allocator
	cache     *codecache.Store
	isolates  map[*Isolate]struct{}
}

// InitOption customizes Initialize.
type InitOption func(*initOptions)

type initOptions struct {
	cfg       Config
	platform  platform.Platform
	allocator allocator.Allocator
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) InitOption {
	return func(o *initOptions) { o.cfg = cfg }
}

// WithPlatform binds p instead of the default platform.
func WithPlatform(p Platform) InitOption {
	return func(o *initOptions) { o.platform = p }
}

// WithAllocator binds a as the default ArrayBuffer allocator.
func WithAllocator(a Allocator) InitOption {
	return func(o *initOptions) { o.allocator = a }
}

// WithExecutionTimeout arms a watchdog for every top-level script run and
// call.
func WithExecutionTimeout(d time.Duration) InitOption {
	return func(o *initOptions) { o.cfg.ExecutionTimeout = d }
}

// Initialize brings the engine up: data tables, then the platform, then the
// default allocator, then the engine itself. It can succeed only once per
// process.
func Initialize(opts ...InitOption) error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	switch engine.state {
	case stateInitialized:
		return fmt.Errorf("%w: already initialized", ErrLifecycle)
	case stateDisposed:
		return fmt.Errorf("%w: engine cannot be re-initialized after Dispose", ErrLifecycle)
	}

	o := initOptions{cfg: core.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg.StackTraceLimit <= 0 {
		o.cfg.StackTraceLimit = core.DefaultStackTraceLimit
	}

	backend := newBackend()
	core.Logger().Debug("loading engine data", zap.String("engine", backend.Name()))

	if o.platform == nil {
		o.platform = platform.NewDefault(platform.Options{
			BackgroundThreads: o.cfg.BackgroundThreads,
			IdleTasks:         o.cfg.IdleTasks,
		})
	}
	if o.allocator == nil {
		o.allocator = allocator.NewDefault(0)
	}

	var cache *codecache.Store
	if o.cfg.CodeCachePath != "" {
		var err error
		cache, err = codecache.Open(o.cfg.CodeCachePath)
		if err != nil {
			o.platform.Shutdown()
			return fmt.Errorf("jsbridge: opening code cache: %w", err)
		}
	}

	if err := backend.Initialize(o.cfg); err != nil {
		if cache != nil {
			cache.Close()
		}
		o.platform.Shutdown()
		return fmt.Errorf("jsbridge: initializing %s: %w", backend.Name(), err)
	}

	engine.cfg = o.cfg
	engine.backend = backend
	engine.platform = o.platform
	engine.allocator = o.allocator
	engine.cache = cache
	engine.isolates = make(map[*Isolate]struct{})
	engine.state = stateInitialized

	core.Logger().Debug("engine initialized",
		zap.String("engine", backend.Name()),
		zap.Int("backgroundThreads", o.platform.NumberOfAvailableBackgroundThreads()),
		zap.Bool("codeCache", cache != nil),
	)
	return nil
}

// Dispose tears the engine down in reverse order: live isolates, the
// engine, the platform (destroying every queued task), the code cache and
// finally the default allocator's Destroy hook.
func Dispose() {
	engine.mu.Lock()
	if engine.state != stateInitialized {
		engine.mu.Unlock()
		core.Logger().Warn("Dispose called on an engine that is not initialized")
		return
	}
	isolates := make([]*Isolate, 0, len(engine.isolates))
	for iso := range engine.isolates {
		isolates = append(isolates, iso)
	}
	engine.mu.Unlock()

	for _, iso := range isolates {
		iso.Dispose()
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	engine.backend.Dispose()
	engine.platform.Shutdown()
	if engine.cache != nil {
		if err := engine.cache.Close(); err != nil {
			core.Logger().Error("closing code cache", zap.Error(err))
		}
	}
	if c, ok := engine.allocator.(interface{ Close() }); ok {
		c.Close()
	}
	name := engine.backend.Name()
	engine.backend = nil
	engine.platform = nil
	engine.allocator = nil
	engine.cache = nil
	engine.isolates = nil
	engine.state = stateDisposed
	core.Logger().Debug("engine disposed", zap.String("engine", name))
}

// resetEngine returns the lifecycle to its initial state. Only tests use
// it; V8 itself cannot be re-initialized within a process.
func resetEngine() {
	engine.mu.Lock()
	initialized := engine.state == stateInitialized
	engine.mu.Unlock()
	if initialized {
		Dispose()
	}
	engine.mu.Lock()
	engine.state = stateUninitialized
	engine.mu.Unlock()
}

// EngineName reports the compiled-in engine: "goja", "v8" or "quickjs".
func EngineName() string { return newBackend().Name() }

// CurrentPlatform returns the bound platform, or nil outside
// Initialize/Dispose.
func CurrentPlatform() Platform {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.platform
}

// DefaultAllocator returns the bound default allocator, or nil outside
// Initialize/Dispose.
func DefaultAllocator() Allocator {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.allocator
}

// CurrentConfig returns the configuration Initialize was called with.
func CurrentConfig() Config {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.cfg
}

func registerIsolate(iso *Isolate) error {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.state != stateInitialized {
		return ErrNotInitialized
	}
	engine.isolates[iso] = struct{}{}
	return nil
}

func unregisterIsolate(iso *Isolate) {
	engine.mu.Lock()
	delete(engine.isolates, iso)
	engine.mu.Unlock()
}

// snapshot returns what a new isolate needs, or ErrNotInitialized.
func snapshot() (Config, core.Backend, platform.Platform, allocator.Allocator, *codecache.Store, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.state != stateInitialized {
		return Config{}, nil, nil, nil, nil, ErrNotInitialized
	}
	return engine.cfg, engine.backend, engine.platform, engine.allocator, engine.cache, nil
}
