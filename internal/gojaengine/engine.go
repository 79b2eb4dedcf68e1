//go:build !v8 && !quickjs

// Package gojaengine runs the bridge on github.com/dop251/goja. An isolate
// is a group of goja runtimes, one per context; goja has no shared heap, so
// values never cross contexts.
package gojaengine

import (
	"errors"
	"sync"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// errTerminated is the interrupt value TerminateExecution hands to goja.
var errTerminated = errors.New("execution terminated")

// Backend implements core.Backend for goja.
type Backend struct {
	cfg core.Config
}

var _ core.Backend = (*Backend)(nil)

// New returns the goja backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "goja" }

// Initialize has nothing to load: goja carries its own Unicode tables.
func (b *Backend) Initialize(cfg core.Config) error {
	b.cfg = cfg
	core.Logger().Debug("goja backend initialized", zap.Int("stackTraceLimit", cfg.StackTraceLimit))
	return nil
}

func (b *Backend) Dispose() {}

func (b *Backend) NewIsolate(cfg core.IsolateConfig) (core.Isolate, error) {
	if cfg.MemoryLimit > 0 {
		core.Logger().Debug("goja ignores per-isolate memory limits", zap.Uint64("limit", cfg.MemoryLimit))
	}
	return &isolate{cfg: cfg}, nil
}

type isolate struct {
	cfg core.IsolateConfig

	mu       sync.Mutex
	runtimes map[*goja.Runtime]struct{}
}

func (i *isolate) NewContext() (core.Context, error) {
	vm := goja.New()
	i.mu.Lock()
	if i.runtimes == nil {
		i.runtimes = make(map[*goja.Runtime]struct{})
	}
	i.runtimes[vm] = struct{}{}
	i.mu.Unlock()
	return &context{iso: i, vm: vm, stackLimit: i.cfg.StackTraceLimit}, nil
}

// TerminateExecution interrupts every runtime of the isolate. goja's
// Interrupt is safe to call from any goroutine.
func (i *isolate) TerminateExecution() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for vm := range i.runtimes {
		vm.Interrupt(errTerminated)
	}
}

func (i *isolate) forget(vm *goja.Runtime) {
	i.mu.Lock()
	delete(i.runtimes, vm)
	i.mu.Unlock()
}

func (i *isolate) Dispose() {
	i.mu.Lock()
	i.runtimes = nil
	i.mu.Unlock()
}
