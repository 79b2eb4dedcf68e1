package platform

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/internal/core"
)

const (
	taskPending int32 = iota
	taskRan
	taskDestroyed
)

// Task is an opaque unit of work accepted by a Platform. Every accepted task
// is either run or destroyed, exactly once.
type Task struct {
	run     func()
	destroy func()
	state   atomic.Int32
}

// NewTask wraps run and destroy. Either may be nil.
func NewTask(run, destroy func()) *Task {
	return &Task{run: run, destroy: destroy}
}

// Run executes the task. Running or destroying a consumed task panics.
func (t *Task) Run() {
	t.begin()
	if t.run != nil {
		t.run()
	}
}

func (t *Task) begin() {
	if !t.state.CompareAndSwap(taskPending, taskRan) {
		panic(fmt.Sprintf("platform: task already %s", stateName(t.state.Load())))
	}
}

// Destroy discards the task without running it.
func (t *Task) Destroy() {
	if !t.state.CompareAndSwap(taskPending, taskDestroyed) {
		panic(fmt.Sprintf("platform: task already %s", stateName(t.state.Load())))
	}
	if t.destroy != nil {
		t.destroy()
	}
}

// Done reports whether the task has been run or destroyed.
func (t *Task) Done() bool { return t.state.Load() != taskPending }

// IdleTask runs only when the foreground loop is idle. It receives the
// absolute deadline (in MonotonicallyIncreasingTime seconds) by which it
// should return.
type IdleTask struct {
	run     func(deadline float64)
	destroy func()
	state   atomic.Int32
}

// NewIdleTask wraps run and destroy. Either may be nil.
func NewIdleTask(run func(deadline float64), destroy func()) *IdleTask {
	return &IdleTask{run: run, destroy: destroy}
}

// Run executes the task with the given deadline.
func (t *IdleTask) Run(deadline float64) {
	t.begin()
	if t.run != nil {
		t.run(deadline)
	}
}

func (t *IdleTask) begin() {
	if !t.state.CompareAndSwap(taskPending, taskRan) {
		panic(fmt.Sprintf("platform: idle task already %s", stateName(t.state.Load())))
	}
}

// Destroy discards the task without running it.
func (t *IdleTask) Destroy() {
	if !t.state.CompareAndSwap(taskPending, taskDestroyed) {
		panic(fmt.Sprintf("platform: idle task already %s", stateName(t.state.Load())))
	}
	if t.destroy != nil {
		t.destroy()
	}
}

// Done reports whether the task has been run or destroyed.
func (t *IdleTask) Done() bool { return t.state.Load() != taskPending }

func stateName(s int32) string {
	switch s {
	case taskRan:
		return "ran"
	case taskDestroyed:
		return "destroyed"
	default:
		return "pending"
	}
}

// safeRun runs the task, recovering a panic from the task body. The task
// still counts as run. A second run is not recovered.
func safeRun(t *Task) {
	t.begin()
	if t.run == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			core.Logger().Warn("platform: task panicked", zap.Any("panic", r))
		}
	}()
	t.run()
}

func safeRunIdle(t *IdleTask, deadline float64) {
	t.begin()
	if t.run == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			core.Logger().Warn("platform: idle task panicked", zap.Any("panic", r))
		}
	}()
	t.run(deadline)
}
