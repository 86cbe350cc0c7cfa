// Package taskqueue provides a FIFO queue of async tasks with at-most-one
// task in flight. Enqueue order is execution order no matter how fast
// producers enqueue, which keeps persist batches from interleaving.
package taskqueue

import "sync"

// Task is one unit of deferred work. A returned error is logged by the
// queue's error hook and never stops the processing loop.
type Task func() error

// Queue executes tasks sequentially in enqueue order.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []Task
	running bool
	onError func(error)
}

// New creates an idle queue. onError receives task failures; nil means they
// are silently dropped.
func New(onError func(error)) *Queue {
	q := &Queue{onError: onError}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a task and starts the processing loop if idle.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	if !q.running {
		q.running = true
		go q.drain()
	}
	q.mu.Unlock()
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			q.cond.Broadcast()
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		if err := task(); err != nil && q.onError != nil {
			q.onError(err)
		}
	}
}

// Wait blocks until the queue has gone idle with no tasks pending.
func (q *Queue) Wait() {
	q.mu.Lock()
	for q.running || len(q.tasks) > 0 {
		q.cond.Wait()
	}
	q.mu.Unlock()
}
