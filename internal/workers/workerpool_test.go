package workers

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsJobs(t *testing.T) {
	wp := NewWorkerPool(4, 16)
	var ran int64

	for i := 0; i < 10; i++ {
		ok := wp.AddJob(func() {
			atomic.AddInt64(&ran, 1)
		})
		assert.True(t, ok)
	}

	wp.Wait()
	assert.Equal(t, int64(10), atomic.LoadInt64(&ran))
}

func TestWorkerPool_DropsWhenFull(t *testing.T) {
	wp := NewWorkerPool(1, 1)
	block := make(chan struct{})

	// Occupy the single worker and fill the one-slot queue.
	wp.AddJob(func() { <-block })
	wp.AddJob(func() {})

	dropped := false
	for i := 0; i < 8; i++ {
		if !wp.AddJob(func() {}) {
			dropped = true
			break
		}
	}
	assert.True(t, dropped)

	close(block)
	wp.Wait()
}

func TestWorkerPool_StopWaitsForInflight(t *testing.T) {
	wp := NewWorkerPool(2, 8)
	var ran int64
	for i := 0; i < 6; i++ {
		wp.AddJob(func() {
			atomic.AddInt64(&ran, 1)
		})
	}
	wp.Stop()
	assert.Equal(t, int64(6), atomic.LoadInt64(&ran))
}

func TestWorkerPool_AddAfterStopIsDropped(t *testing.T) {
	wp := NewWorkerPool(1, 4)
	wp.Stop()

	queued := wp.AddJob(func() {
		t.Error("job ran after pool stopped")
	})
	assert.False(t, queued)
}
