// Package workers provides the fixed-size pool that executes bridge
// dispatch jobs off the subscriber goroutine.
package workers

import (
	"sync"
)

// WorkerPool executes queued jobs on a fixed number of workers.
type WorkerPool struct {
	jobCh    chan func()
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// NewWorkerPool starts workerCount workers over a buffered job queue.
func NewWorkerPool(workerCount, jobBufferSize int) *WorkerPool {
	wp := &WorkerPool{
		jobCh: make(chan func(), jobBufferSize),
	}
	for i := 0; i < workerCount; i++ {
		go wp.worker()
	}
	return wp
}

func (wp *WorkerPool) worker() {
	for job := range wp.jobCh {
		job()
	}
}

// AddJob enqueues a job without blocking. Returns false when the queue is
// full or the pool has stopped and the job was dropped.
func (wp *WorkerPool) AddJob(job func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return false
	}

	wp.wg.Add(1)
	wrapped := func() {
		defer wp.wg.Done()
		job()
	}
	select {
	case wp.jobCh <- wrapped:
		return true
	default:
		wp.wg.Done()
		return false
	}
}

// Wait blocks until every accepted job has completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Stop closes the queue and waits for in-flight jobs to finish. Jobs
// submitted after Stop are dropped rather than panicking on a closed queue.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		wp.mu.Lock()
		wp.stopped = true
		wp.mu.Unlock()
		close(wp.jobCh)
		wp.wg.Wait()
	})
}
