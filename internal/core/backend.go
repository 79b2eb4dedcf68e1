package core

// Backend is the interface that engine implementations (goja, V8, QuickJS)
// must satisfy. The root jsbridge facade delegates to one of these based on
// build tags.
type Backend interface {
	// Name identifies the engine ("goja", "v8", "quickjs").
	Name() string

	// Initialize performs process-wide engine setup. Called once, after the
	// platform is bound and before any isolate is created.
	Initialize(cfg Config) error

	// Dispose tears the engine down. No isolate may be alive.
	Dispose()

	// NewIsolate creates an independent heap.
	NewIsolate(cfg IsolateConfig) (Isolate, error)
}

// IsolateConfig carries the per-isolate engine settings.
type IsolateConfig struct {
	MemoryLimit     uint64 // bytes, 0 for engine default
	StackTraceLimit int
	CodeCache       CodeCache // optional compiled-script cache
}

// CodeCache stores engine-specific compilation artifacts keyed by a
// content hash. Implementations must be safe for concurrent use.
type CodeCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte)
}

// Isolate is an engine heap. Contexts created from it share its heap.
type Isolate interface {
	NewContext() (Context, error)

	// TerminateExecution interrupts running JavaScript. Safe to call from
	// any goroutine.
	TerminateExecution()

	Dispose()
}
