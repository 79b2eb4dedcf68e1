//go:build v8

// Package v8engine runs the bridge on V8 through github.com/tommie/v8go.
// Values are *v8.Value. v8go ties their lifetime to the context that
// created them, so Retain and Release are no-ops and the memory returns
// when the context closes.
package v8engine

import (
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
	v8 "github.com/tommie/v8go"
	"go.uber.org/zap"
)

// Backend implements core.Backend for V8.
type Backend struct {
	cfg core.Config
}

var _ core.Backend = (*Backend)(nil)

// New returns the V8 backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "v8" }

// Initialize passes process-wide flags to V8. v8go initializes V8 itself
// on first use, so this must run before the first isolate.
func (b *Backend) Initialize(cfg core.Config) error {
	b.cfg = cfg
	if cfg.StackTraceLimit > 0 {
		v8.SetFlags(fmt.Sprintf("--stack-trace-limit=%d", cfg.StackTraceLimit))
	}
	core.Logger().Debug("v8 backend initialized", zap.String("version", v8.Version()))
	return nil
}

// Dispose is a no-op: v8go keeps V8 initialized for the process lifetime.
func (b *Backend) Dispose() {}

func (b *Backend) NewIsolate(cfg core.IsolateConfig) (core.Isolate, error) {
	var opts []v8.IsolateOption
	if cfg.MemoryLimit > 0 {
		opts = append(opts, v8.WithResourceConstraints(cfg.MemoryLimit/2, cfg.MemoryLimit))
	}
	return &isolate{v8: v8.NewIsolate(opts...), cfg: cfg}, nil
}

type isolate struct {
	v8  *v8.Isolate
	cfg core.IsolateConfig
}

func (i *isolate) NewContext() (core.Context, error) {
	c := &context{iso: i, ctx: v8.NewContext(i.v8), stackLimit: i.cfg.StackTraceLimit}
	if err := c.installSupport(); err != nil {
		c.ctx.Close()
		return nil, err
	}
	return c, nil
}

// TerminateExecution is thread-safe in V8.
func (i *isolate) TerminateExecution() { i.v8.TerminateExecution() }

func (i *isolate) Dispose() { i.v8.Dispose() }
