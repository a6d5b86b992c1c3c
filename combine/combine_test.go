package combine

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncAppliesEveryOperation(t *testing.T) {
	const numThreads = 32
	const iterations = 300
	c := New(numThreads)

	var counter int64
	var wg sync.WaitGroup
	wg.Add(numThreads)
	for tid := 0; tid < numThreads; tid++ {
		go func(tid int) {
			defer wg.Done()
			for range iterations {
				c.Sync(tid, func() {
					counter++
				})
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, int64(numThreads*iterations), counter)
}

func TestSyncReturnsCompletedResult(t *testing.T) {
	const numThreads = 16
	c := New(numThreads)
	results := make([]int, numThreads)

	var wg sync.WaitGroup
	wg.Add(numThreads)
	for tid := 0; tid < numThreads; tid++ {
		go func(tid int) {
			defer wg.Done()
			c.Sync(tid, func() {
				results[tid] = tid * 2
			})
		}(tid)
	}
	wg.Wait()

	for tid, got := range results {
		assert.Equal(t, tid*2, got)
	}
}

func TestAcquireReleaseMutualExclusion(t *testing.T) {
	const numThreads = 16
	const iterations = 200
	c := New(numThreads)

	var inside int32
	var maxObserved int32
	var counter int

	var wg sync.WaitGroup
	wg.Add(numThreads)
	for tid := 0; tid < numThreads; tid++ {
		go func(tid int) {
			defer wg.Done()
			for range iterations {
				c.Acquire(tid)
				n := atomic.AddInt32(&inside, 1)
				for {
					old := atomic.LoadInt32(&maxObserved)
					if n <= old || atomic.CompareAndSwapInt32(&maxObserved, old, n) {
						break
					}
				}
				counter++
				atomic.AddInt32(&inside, -1)
				c.Release(tid)
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, numThreads*iterations, counter)
	assert.Equal(t, int32(1), maxObserved, "Acquire/Release must be mutually exclusive")
}
