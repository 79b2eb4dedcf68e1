// Package platform provides the scheduling and timing service isolates
// depend on: a background pool, per-isolate foreground queues (immediate,
// delayed and idle), and a monotonic clock.
package platform

import "github.com/google/uuid"

// IsolateID identifies the isolate a foreground task belongs to.
type IsolateID = uuid.UUID

// RuntimeHint is advisory: it only affects scheduling heuristics.
type RuntimeHint uint8

const (
	ShortRunning RuntimeHint = iota
	LongRunning
)

func (h RuntimeHint) String() string {
	if h == LongRunning {
		return "long"
	}
	return "short"
}

// Platform is the scheduling service contract. Every task handed to a
// Platform is run or destroyed exactly once; there is no cancellation.
type Platform interface {
	NumberOfAvailableBackgroundThreads() int
	CallOnBackgroundThread(task *Task, hint RuntimeHint)
	CallOnForegroundThread(iso IsolateID, task *Task)
	CallDelayedOnForegroundThread(iso IsolateID, task *Task, delaySeconds float64)
	CallIdleOnForegroundThread(iso IsolateID, task *IdleTask)
	IdleTasksEnabled(iso IsolateID) bool

	// MonotonicallyIncreasingTime returns seconds since an arbitrary origin.
	// Successive calls never decrease.
	MonotonicallyIncreasingTime() float64

	// RunForegroundTasks runs the due foreground tasks of iso on the calling
	// goroutine and returns how many ran.
	RunForegroundTasks(iso IsolateID) int

	// RunIdleTasks runs idle tasks of iso for at most idleSeconds.
	RunIdleTasks(iso IsolateID, idleSeconds float64) int

	RegisterIsolate(iso IsolateID)

	// UnregisterIsolate destroys the isolate's pending tasks. Tasks posted
	// for it afterwards are destroyed on arrival.
	UnregisterIsolate(iso IsolateID)

	// Shutdown destroys every task not yet run and waits for running
	// background tasks. Tasks posted afterwards are destroyed on arrival.
	Shutdown()
}
