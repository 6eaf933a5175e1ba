// Package sim provides the discrete-event clock driving the shop floor.
//
// Simulated time advances only when the next scheduled event runs. Events
// sharing a timestamp run in the order they were scheduled.
package sim

import (
	"container/heap"
	"context"
)

// Action is a deferred continuation run at its scheduled time.
type Action func(now float64)

type item struct {
	at     float64
	seq    uint64
	action Action
	index  int
}

type queue []*item

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	it := x.(*item)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}

// Engine is a single-threaded event loop. It is not safe for concurrent use.
type Engine struct {
	now   float64
	seq   uint64
	queue queue
	steps int
}

// New returns an engine at time zero.
func New() *Engine {
	return &Engine{}
}

// Now returns the current simulated time.
func (e *Engine) Now() float64 { return e.now }

// Steps returns the number of executed events.
func (e *Engine) Steps() int { return e.steps }

// Pending returns the number of scheduled events.
func (e *Engine) Pending() int { return len(e.queue) }

// Schedule runs fn at time at. Times in the past are clamped to now.
func (e *Engine) Schedule(at float64, fn Action) {
	if at < e.now {
		at = e.now
	}
	e.seq++
	heap.Push(&e.queue, &item{at: at, seq: e.seq, action: fn})
}

// After runs fn delay time units from now.
func (e *Engine) After(delay float64, fn Action) {
	e.Schedule(e.now+delay, fn)
}

// Step runs the next event and reports whether one existed.
func (e *Engine) Step() bool {
	if len(e.queue) == 0 {
		return false
	}
	it := heap.Pop(&e.queue).(*item)
	e.now = it.at
	e.steps++
	it.action(e.now)
	return true
}

// Run executes events until the queue is empty, the next event lies after
// until (when until > 0) or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, until float64) error {
	for len(e.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if until > 0 && e.queue[0].at > until {
			e.now = until
			return nil
		}
		e.Step()
	}
	return nil
}
