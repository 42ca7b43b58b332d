// Package sim is the deterministic discrete-event simulator: a
// timestamp-ordered task queue, the messaging contracts between strategy
// code and the exchange, and the no-impact matching engine that rests
// synthetic orders against replayed market data.
//
// Everything runs single-threaded inside task callbacks; components defer
// work by posting future tasks instead of blocking. Correctness rests on
// that run-loop invariant, so nothing here takes a lock.
package sim

import (
	"sort"

	"github.com/alienczf/cryptobase/pkg/qsbin"
)

// Task is a unit of scheduled work.
type Task func()

// TaskQueue executes tasks in strict timestamp order. Timestamps are unique
// within the queue: a request that collides with an existing task is bumped
// forward one microsecond at a time, which preserves insertion order among
// colliding requests at the cost of shifting them by whole time units.
type TaskQueue struct {
	now      qsbin.UnixMicro
	times    []qsbin.UnixMicro // sorted
	tasks    map[qsbin.UnixMicro]Task
	executed uint64
}

// NewTaskQueue returns an empty queue at time zero.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{tasks: make(map[qsbin.UnixMicro]Task)}
}

// Clear drops all pending tasks and rewinds the clock to zero.
func (q *TaskQueue) Clear() {
	q.now = 0
	q.times = q.times[:0]
	q.tasks = make(map[qsbin.UnixMicro]Task)
}

// PostAt schedules a task. The effective timestamp is max(ts, now+1): no
// time travel. Once posted a task runs exactly once; there is no cancel.
func (q *TaskQueue) PostAt(ts qsbin.UnixMicro, task Task) {
	if ts < q.now+1 {
		ts = q.now + 1
	}
	for {
		if _, taken := q.tasks[ts]; !taken {
			break
		}
		ts++
	}
	q.tasks[ts] = task
	i := sort.Search(len(q.times), func(i int) bool { return q.times[i] >= ts })
	q.times = append(q.times, 0)
	copy(q.times[i+1:], q.times[i:])
	q.times[i] = ts
}

// RunUntilDone drains the queue: repeatedly advances now to the earliest
// task and runs it. Tasks may post further tasks reentrantly.
func (q *TaskQueue) RunUntilDone() {
	for len(q.times) > 0 {
		ts := q.times[0]
		q.times = q.times[1:]
		task := q.tasks[ts]
		delete(q.tasks, ts)
		q.now = ts
		q.executed++
		task()
	}
}

// Now returns the timestamp of the executing (or last executed) task.
func (q *TaskQueue) Now() qsbin.UnixMicro { return q.now }

// Len returns the number of pending tasks.
func (q *TaskQueue) Len() int { return len(q.tasks) }

// Executed returns the number of tasks run since construction.
func (q *TaskQueue) Executed() uint64 { return q.executed }
