package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/allocator"
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/diag"
	"github.com/cryguy/jsbridge/internal/platform"
	"github.com/cryguy/jsbridge/internal/trampoline"
	"github.com/cryguy/jsbridge/internal/transform"
	"go.uber.org/zap"
)

// Type aliases re-exporting internal types so embedders can configure the
// bridge without importing internal packages.

type Config = core.Config
type Message = core.Message
type StackFrame = core.StackFrame
type CodeCache = core.CodeCache

type Platform = platform.Platform
type PlatformHooks = platform.Hooks
type PlatformOptions = platform.Options
type Task = platform.Task
type IdleTask = platform.IdleTask
type RuntimeHint = platform.RuntimeHint

type Allocator = allocator.Allocator
type AllocatorHooks = allocator.Hooks
type AllocatorStats = allocator.Stats
type FreeMode = allocator.FreeMode
type Protection = allocator.Protection

type Role = trampoline.Role

type Broadcaster = diag.Broadcaster

const (
	ShortRunning = platform.ShortRunning
	LongRunning  = platform.LongRunning

	FreeModeFree    = allocator.FreeModeFree
	FreeModeReserve = allocator.FreeModeReserve

	RoleGetter        = trampoline.RoleGetter
	RoleSetter        = trampoline.RoleSetter
	RoleQuery         = trampoline.RoleQuery
	RoleDeleter       = trampoline.RoleDeleter
	RoleEnumerator    = trampoline.RoleEnumerator
	RoleDefiner       = trampoline.RoleDefiner
	RoleDescriptor    = trampoline.RoleDescriptor
	RoleFunctionCall  = trampoline.RoleFunctionCall
	RoleConstructCall = trampoline.RoleConstructCall
	RoleAccessCheck   = trampoline.RoleAccessCheck
)

const DefaultStackTraceLimit = core.DefaultStackTraceLimit

// CompileModule inputs and outputs.
const (
	LoaderJS     = transform.LoaderJS
	LoaderTS     = transform.LoaderTS
	FormatScript = transform.FormatScript
	FormatModule = transform.FormatModule
	TargetES2017 = transform.TargetES2017
	TargetES2022 = transform.TargetES2022
)

// Functions re-exported from internal packages.
var (
	DefaultConfig       = core.DefaultConfig
	NewTask             = platform.NewTask
	NewIdleTask         = platform.NewIdleTask
	NewDefaultPlatform  = platform.NewDefault
	NewDefaultAllocator = allocator.NewDefault
	NewBroadcaster      = diag.NewBroadcaster
)

// NewHookedPlatform wraps base so that h observes or replaces individual
// operations. A nil base means the default platform.
func NewHookedPlatform(h PlatformHooks, base Platform) Platform {
	return platform.NewHooked(h, base)
}

// NewHookedAllocator wraps base so that h observes or replaces individual
// operations.
func NewHookedAllocator(h AllocatorHooks, base Allocator) Allocator {
	return allocator.NewHooked(h, base)
}

// Logger returns the bridge's logger.
func Logger() *zap.Logger { return core.Logger() }

// SetLogger replaces the bridge's logger. Call it before Initialize.
func SetLogger(l *zap.Logger) { core.SetLogger(l) }

// LogMessages returns a message listener that logs every message to l.
func LogMessages(l *zap.Logger) func(*Message) { return diag.NewLogSink(l) }
