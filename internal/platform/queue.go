package platform

import (
	"container/heap"
	"sync"
)

// queuedTask is a foreground task with its due time. Immediate tasks are
// due at submission time, so ordering by (due, seq) keeps them FIFO.
type queuedTask struct {
	task *Task
	due  float64
	seq  uint64
}

type taskHeap []*queuedTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*queuedTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// foregroundQueue holds one isolate's pending foreground and idle work.
type foregroundQueue struct {
	mu    sync.Mutex
	seq   uint64
	tasks taskHeap
	idle  []*IdleTask
}

func newForegroundQueue() *foregroundQueue {
	return &foregroundQueue{}
}

func (q *foregroundQueue) push(t *Task, due float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.tasks, &queuedTask{task: t, due: due, seq: q.seq})
}

func (q *foregroundQueue) pushIdle(t *IdleTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.idle = append(q.idle, t)
}

// popDue removes the next task that is due at now and was submitted no
// later than maxSeq. Tasks posted while draining wait for the next drain.
func (q *foregroundQueue) popDue(now float64, maxSeq uint64) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil
	}
	next := q.tasks[0]
	if next.due > now || next.seq > maxSeq {
		return nil
	}
	heap.Pop(&q.tasks)
	return next.task
}

func (q *foregroundQueue) lastSeq() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq
}

func (q *foregroundQueue) popIdle() *IdleTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.idle) == 0 {
		return nil
	}
	t := q.idle[0]
	q.idle[0] = nil
	q.idle = q.idle[1:]
	return t
}

// nextDue returns the due time of the earliest pending task.
func (q *foregroundQueue) nextDue() (float64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return 0, false
	}
	return q.tasks[0].due, true
}

func (q *foregroundQueue) pending() (tasks, idle int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks), len(q.idle)
}

// drain empties the queue and destroys everything in it.
func (q *foregroundQueue) drain() int {
	q.mu.Lock()
	tasks := q.tasks
	idle := q.idle
	q.tasks = nil
	q.idle = nil
	q.mu.Unlock()

	for _, qt := range tasks {
		qt.task.Destroy()
	}
	for _, t := range idle {
		t.Destroy()
	}
	return len(tasks) + len(idle)
}
