package chain

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

type (
	// TaskQueue runs functions one at a time on a single goroutine that is
	// locked to its OS thread for its whole life. Units that check thread
	// identity see every call arrive from the same thread.
	TaskQueue struct {
		tasks    chan task
		finished chan struct{}
		mu       sync.Mutex
		closed   bool
	}

	task struct {
		fn     func() error
		result chan error
	}
)

var ErrTaskQueueClosed = errors.New("task queue closed")

func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{tasks: make(chan task), finished: make(chan struct{})}
	go q.run()
	return q
}

func (q *TaskQueue) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(q.finished)
	for t := range q.tasks {
		t.result <- runTask(t.fn)
	}
}

func runTask(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn()
}

// Do runs fn on the queue's thread and blocks until it returns. Do must not
// be called from inside a task.
func (q *TaskQueue) Do(fn func() error) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrTaskQueueClosed
	}
	result := make(chan error, 1)
	q.tasks <- task{fn: fn, result: result}
	q.mu.Unlock()
	return <-result
}

// Close waits for the running task to finish and stops the worker.
// Subsequent calls to Do return ErrTaskQueueClosed.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	<-q.finished
}
