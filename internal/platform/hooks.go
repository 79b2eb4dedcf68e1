package platform

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/internal/core"
)

// Hooks lets the host supply its own scheduling. Every hook is optional;
// an absent hook falls back to the wrapped platform for that operation only.
// UserData is passed back to every hook unchanged.
type Hooks struct {
	UserData any

	NumberOfAvailableBackgroundThreads func(ud any) int
	CallOnBackgroundThread             func(ud any, task *Task, hint RuntimeHint)
	CallOnForegroundThread             func(ud any, iso IsolateID, task *Task)
	CallDelayedOnForegroundThread      func(ud any, iso IsolateID, task *Task, delaySeconds float64)
	CallIdleOnForegroundThread         func(ud any, iso IsolateID, task *IdleTask)
	IdleTasksEnabled                   func(ud any, iso IsolateID) bool
	MonotonicallyIncreasingTime        func(ud any) float64

	// Destroy runs once, at Shutdown, after the fallback has shut down.
	// A panic here is fatal: it is logged and re-raised.
	Destroy func(ud any)
}

type hooked struct {
	h    Hooks
	base Platform
	once sync.Once
}

var _ Platform = (*hooked)(nil)

// NewHooked adapts h into a Platform. A nil base uses NewDefault with
// default options.
func NewHooked(h Hooks, base Platform) Platform {
	if base == nil {
		base = NewDefault(Options{IdleTasks: true})
	}
	return &hooked{h: h, base: base}
}

func (p *hooked) NumberOfAvailableBackgroundThreads() int {
	if p.h.NumberOfAvailableBackgroundThreads != nil {
		return p.h.NumberOfAvailableBackgroundThreads(p.h.UserData)
	}
	return p.base.NumberOfAvailableBackgroundThreads()
}

func (p *hooked) CallOnBackgroundThread(task *Task, hint RuntimeHint) {
	if p.h.CallOnBackgroundThread != nil {
		p.h.CallOnBackgroundThread(p.h.UserData, task, hint)
		return
	}
	p.base.CallOnBackgroundThread(task, hint)
}

func (p *hooked) CallOnForegroundThread(iso IsolateID, task *Task) {
	if p.h.CallOnForegroundThread != nil {
		p.h.CallOnForegroundThread(p.h.UserData, iso, task)
		return
	}
	p.base.CallOnForegroundThread(iso, task)
}

func (p *hooked) CallDelayedOnForegroundThread(iso IsolateID, task *Task, delaySeconds float64) {
	if p.h.CallDelayedOnForegroundThread != nil {
		p.h.CallDelayedOnForegroundThread(p.h.UserData, iso, task, delaySeconds)
		return
	}
	p.base.CallDelayedOnForegroundThread(iso, task, delaySeconds)
}

func (p *hooked) CallIdleOnForegroundThread(iso IsolateID, task *IdleTask) {
	if p.h.CallIdleOnForegroundThread != nil {
		p.h.CallIdleOnForegroundThread(p.h.UserData, iso, task)
		return
	}
	p.base.CallIdleOnForegroundThread(iso, task)
}

func (p *hooked) IdleTasksEnabled(iso IsolateID) bool {
	if p.h.IdleTasksEnabled != nil {
		return p.h.IdleTasksEnabled(p.h.UserData, iso)
	}
	return p.base.IdleTasksEnabled(iso)
}

func (p *hooked) MonotonicallyIncreasingTime() float64 {
	if p.h.MonotonicallyIncreasingTime != nil {
		return p.h.MonotonicallyIncreasingTime(p.h.UserData)
	}
	return p.base.MonotonicallyIncreasingTime()
}

func (p *hooked) RunForegroundTasks(iso IsolateID) int { return p.base.RunForegroundTasks(iso) }

// idleRunner runs idle tasks without consulting its own IdleTasksEnabled,
// so a hook can enable them over a base that has them off.
type idleRunner interface {
	runIdle(iso IsolateID, idleSeconds float64, now func() float64) int
}

func (p *hooked) RunIdleTasks(iso IsolateID, idleSeconds float64) int {
	if !p.IdleTasksEnabled(iso) {
		return 0
	}
	if r, ok := p.base.(idleRunner); ok {
		return r.runIdle(iso, idleSeconds, p.MonotonicallyIncreasingTime)
	}
	return p.base.RunIdleTasks(iso, idleSeconds)
}

func (p *hooked) RegisterIsolate(iso IsolateID)   { p.base.RegisterIsolate(iso) }
func (p *hooked) UnregisterIsolate(iso IsolateID) { p.base.UnregisterIsolate(iso) }

func (p *hooked) Shutdown() {
	p.once.Do(p.shutdown)
}

func (p *hooked) shutdown() {
	p.base.Shutdown()
	if p.h.Destroy == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			core.Logger().Error("platform: Destroy hook failed", zap.Any("panic", r))
			panic(r)
		}
	}()
	p.h.Destroy(p.h.UserData)
}
