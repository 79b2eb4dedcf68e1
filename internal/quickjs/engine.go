//go:build quickjs

// Package quickjs runs the bridge on modernc.org/quickjs. An isolate is a
// group of VMs, one per context. The Go wrapper converts values to Go
// types at its boundary, so object identity is kept on the JavaScript side:
// every core.Value is an id into a per-VM slot table.
package quickjs

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cryguy/jsbridge/internal/core"
	"go.uber.org/zap"
	"modernc.org/quickjs"
)

// errTerminated is what a context reports after TerminateExecution.
var errTerminated = errors.New("execution terminated")

// Backend implements core.Backend for QuickJS.
type Backend struct {
	cfg core.Config
}

var _ core.Backend = (*Backend)(nil)

// New returns the QuickJS backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "quickjs" }

func (b *Backend) Initialize(cfg core.Config) error {
	b.cfg = cfg
	core.Logger().Debug("quickjs backend initialized", zap.Int("stackTraceLimit", cfg.StackTraceLimit))
	return nil
}

func (b *Backend) Dispose() {}

func (b *Backend) NewIsolate(cfg core.IsolateConfig) (core.Isolate, error) {
	return &isolate{cfg: cfg, vms: make(map[*quickjs.VM]struct{})}, nil
}

type isolate struct {
	cfg core.IsolateConfig

	mu  sync.Mutex
	vms map[*quickjs.VM]struct{}

	// terminating is set by TerminateExecution until a context reports
	// the interruption.
	terminating atomic.Bool
}

func (i *isolate) NewContext() (core.Context, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("quickjs: creating VM: %w", err)
	}
	if i.cfg.MemoryLimit > 0 {
		vm.SetMemoryLimit(uintptr(i.cfg.MemoryLimit))
	}
	c := &context{iso: i, vm: vm, natives: make(map[int]core.NativeFunc), stackLimit: i.cfg.StackTraceLimit}
	if err := c.install(); err != nil {
		vm.Close()
		return nil, err
	}
	i.mu.Lock()
	i.vms[vm] = struct{}{}
	i.mu.Unlock()
	return c, nil
}

// TerminateExecution interrupts every VM of the isolate.
func (i *isolate) TerminateExecution() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.terminating.Store(true)
	for vm := range i.vms {
		vm.Interrupt()
	}
}

func (i *isolate) forget(vm *quickjs.VM) {
	i.mu.Lock()
	delete(i.vms, vm)
	i.mu.Unlock()
}

func (i *isolate) Dispose() {
	i.mu.Lock()
	i.vms = nil
	i.mu.Unlock()
}
