package platform

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/cryguy/jsbridge/internal/core"
)

// Options configures the default platform.
type Options struct {
	BackgroundThreads int  // 0 means NumCPU-1, at least 1
	IdleTasks         bool // whether IdleTasksEnabled reports true
}

// Default is the built-in Platform. Short background tasks share a pool
// bounded by a weighted semaphore; long tasks get their own goroutine.
type Default struct {
	opts  Options
	start time.Time

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	queues     map[IsolateID]*foregroundQueue
	retired    map[IsolateID]struct{}
	background map[*Task]struct{} // accepted, not yet started
	shut       bool
}

var _ Platform = (*Default)(nil)

// NewDefault creates the built-in platform.
func NewDefault(opts Options) *Default {
	if opts.BackgroundThreads <= 0 {
		opts.BackgroundThreads = runtime.NumCPU() - 1
		if opts.BackgroundThreads < 1 {
			opts.BackgroundThreads = 1
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Default{
		opts:       opts,
		start:      time.Now(),
		sem:        semaphore.NewWeighted(int64(opts.BackgroundThreads)),
		ctx:        ctx,
		cancel:     cancel,
		queues:     make(map[IsolateID]*foregroundQueue),
		retired:    make(map[IsolateID]struct{}),
		background: make(map[*Task]struct{}),
	}
}

// NumberOfAvailableBackgroundThreads returns the pool size.
func (p *Default) NumberOfAvailableBackgroundThreads() int {
	return p.opts.BackgroundThreads
}

// CallOnBackgroundThread queues task for asynchronous execution.
func (p *Default) CallOnBackgroundThread(task *Task, hint RuntimeHint) {
	p.mu.Lock()
	if p.shut {
		p.mu.Unlock()
		task.Destroy()
		return
	}
	p.background[task] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if hint == ShortRunning {
			if err := p.sem.Acquire(p.ctx, 1); err != nil {
				// Shutdown already destroyed it if claim fails.
				if p.claim(task) {
					task.Destroy()
				}
				return
			}
			defer p.sem.Release(1)
		}
		if !p.claim(task) {
			return
		}
		safeRun(task)
	}()
}

// claim removes task from the not-yet-started set. Exactly one of the
// worker and Shutdown wins.
func (p *Default) claim(task *Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.background[task]; !ok {
		return false
	}
	delete(p.background, task)
	return true
}

// queue returns the isolate's queue, or nil if the task must be destroyed.
func (p *Default) queue(iso IsolateID) *foregroundQueue {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shut {
		return nil
	}
	if _, gone := p.retired[iso]; gone {
		return nil
	}
	q, ok := p.queues[iso]
	if !ok {
		q = newForegroundQueue()
		p.queues[iso] = q
	}
	return q
}

// CallOnForegroundThread queues task for the isolate's owning goroutine.
func (p *Default) CallOnForegroundThread(iso IsolateID, task *Task) {
	q := p.queue(iso)
	if q == nil {
		task.Destroy()
		return
	}
	q.push(task, p.MonotonicallyIncreasingTime())
}

// CallDelayedOnForegroundThread queues task to become due after delaySeconds.
func (p *Default) CallDelayedOnForegroundThread(iso IsolateID, task *Task, delaySeconds float64) {
	q := p.queue(iso)
	if q == nil {
		task.Destroy()
		return
	}
	if delaySeconds < 0 {
		delaySeconds = 0
	}
	q.push(task, p.MonotonicallyIncreasingTime()+delaySeconds)
}

// CallIdleOnForegroundThread queues an idle task. When idle tasks are
// disabled the task is held until the isolate or platform goes away and is
// destroyed then.
func (p *Default) CallIdleOnForegroundThread(iso IsolateID, task *IdleTask) {
	q := p.queue(iso)
	if q == nil {
		task.Destroy()
		return
	}
	q.pushIdle(task)
}

// IdleTasksEnabled reports whether idle tasks run for iso.
func (p *Default) IdleTasksEnabled(IsolateID) bool {
	return p.opts.IdleTasks
}

// MonotonicallyIncreasingTime returns seconds since the platform started.
// time.Since reads the monotonic clock, so the result never decreases.
func (p *Default) MonotonicallyIncreasingTime() float64 {
	return time.Since(p.start).Seconds()
}

// RunForegroundTasks runs every due task submitted before the call.
// Must be called on the isolate's goroutine.
func (p *Default) RunForegroundTasks(iso IsolateID) int {
	p.mu.Lock()
	q := p.queues[iso]
	p.mu.Unlock()
	if q == nil {
		return 0
	}

	maxSeq := q.lastSeq()
	ran := 0
	for {
		t := q.popDue(p.MonotonicallyIncreasingTime(), maxSeq)
		if t == nil {
			return ran
		}
		safeRun(t)
		ran++
	}
}

// RunIdleTasks runs idle tasks until idleSeconds have elapsed or the idle
// queue is empty.
func (p *Default) RunIdleTasks(iso IsolateID, idleSeconds float64) int {
	if !p.IdleTasksEnabled(iso) {
		return 0
	}
	return p.runIdle(iso, idleSeconds, p.MonotonicallyIncreasingTime)
}

// runIdle runs queued idle tasks of iso until the deadline passes on now.
// Callers decide whether idle tasks are enabled.
func (p *Default) runIdle(iso IsolateID, idleSeconds float64, now func() float64) int {
	p.mu.Lock()
	q := p.queues[iso]
	p.mu.Unlock()
	if q == nil {
		return 0
	}

	deadline := now() + idleSeconds
	ran := 0
	for now() < deadline {
		t := q.popIdle()
		if t == nil {
			break
		}
		safeRunIdle(t, deadline)
		ran++
	}
	return ran
}

// NextDue reports when the earliest foreground task of iso becomes due.
func (p *Default) NextDue(iso IsolateID) (float64, bool) {
	p.mu.Lock()
	q := p.queues[iso]
	p.mu.Unlock()
	if q == nil {
		return 0, false
	}
	return q.nextDue()
}

// Pending returns the number of queued foreground and idle tasks of iso.
func (p *Default) Pending(iso IsolateID) (tasks, idle int) {
	p.mu.Lock()
	q := p.queues[iso]
	p.mu.Unlock()
	if q == nil {
		return 0, 0
	}
	return q.pending()
}

// RegisterIsolate prepares a queue for iso.
func (p *Default) RegisterIsolate(iso IsolateID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shut {
		return
	}
	delete(p.retired, iso)
	if _, ok := p.queues[iso]; !ok {
		p.queues[iso] = newForegroundQueue()
	}
}

// UnregisterIsolate destroys the isolate's queued work.
func (p *Default) UnregisterIsolate(iso IsolateID) {
	p.mu.Lock()
	q := p.queues[iso]
	delete(p.queues, iso)
	if !p.shut {
		p.retired[iso] = struct{}{}
	}
	p.mu.Unlock()

	if q != nil {
		if n := q.drain(); n > 0 {
			core.Logger().Debug("platform: destroyed pending isolate tasks",
				zap.String("isolate", iso.String()), zap.Int("count", n))
		}
	}
}

// Shutdown destroys every pending task and waits for running background
// work to finish. Calling it twice is harmless.
func (p *Default) Shutdown() {
	p.mu.Lock()
	if p.shut {
		p.mu.Unlock()
		return
	}
	p.shut = true
	queues := p.queues
	p.queues = make(map[IsolateID]*foregroundQueue)
	background := p.background
	p.background = make(map[*Task]struct{})
	p.mu.Unlock()

	p.cancel()

	destroyed := 0
	for t := range background {
		t.Destroy()
		destroyed++
	}
	for _, q := range queues {
		destroyed += q.drain()
	}
	p.wg.Wait()

	core.Logger().Debug("platform: shut down", zap.Int("destroyed", destroyed))
}
