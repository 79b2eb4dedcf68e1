package core

import "time"

// Config holds runtime configuration for the bridge.
type Config struct {
	MemoryLimitMB     int           // per-isolate heap limit, 0 for engine default
	ExecutionTimeout  time.Duration // watchdog for a single script run, 0 disables
	StackTraceLimit   int           // frames captured for uncaught exceptions
	BackgroundThreads int           // platform background pool size, 0 for NumCPU-1
	IdleTasks         bool          // whether isolates accept idle tasks
	CodeCachePath     string        // sqlite file for compiled scripts, "" disables
}

// DefaultStackTraceLimit matches the frame limit requested for uncaught
// exceptions.
const DefaultStackTraceLimit = 1024

// DefaultConfig returns the configuration used when Initialize is called
// without options.
func DefaultConfig() Config {
	return Config{
		StackTraceLimit: DefaultStackTraceLimit,
		IdleTasks:       true,
	}
}

// MemoryLimitBytes converts MemoryLimitMB to bytes.
func (c Config) MemoryLimitBytes() uint64 {
	if c.MemoryLimitMB <= 0 {
		return 0
	}
	return uint64(c.MemoryLimitMB) * 1024 * 1024
}
