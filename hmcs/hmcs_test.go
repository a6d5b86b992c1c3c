package hmcs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/numalocks/topology"
)

func TestFlatMutualExclusion(t *testing.T) {
	lock, err := NewFlat(32, 0)
	require.NoError(t, err)

	const iterations = 500
	counter := 0
	var wg sync.WaitGroup
	wg.Add(32)
	for tid := 0; tid < 32; tid++ {
		go func(tid int) {
			defer wg.Done()
			for range iterations {
				lock.Acquire(tid)
				counter++
				lock.Release(tid)
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, 32*iterations, counter)
}

func TestHierarchicalMutualExclusion(t *testing.T) {
	top, err := topology.Uniform(64, 8, 2)
	require.NoError(t, err)
	lock, err := New(top, 4)
	require.NoError(t, err)

	const iterations = 200
	counter := 0
	var wg sync.WaitGroup
	wg.Add(top.Threads)
	for tid := 0; tid < top.Threads; tid++ {
		go func(tid int) {
			defer wg.Done()
			for range iterations {
				lock.Acquire(tid)
				counter++
				lock.Release(tid)
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, top.Threads*iterations, counter)
}

func TestTryAcquireUncontended(t *testing.T) {
	lock, err := NewFlat(4, 0)
	require.NoError(t, err)

	assert.True(t, lock.TryAcquire(0))
	assert.False(t, lock.TryAcquire(1), "lock already held, TryAcquire should fail")
	lock.Release(0)
	assert.True(t, lock.TryAcquire(1))
	lock.Release(1)
}

func TestNoWaitersFastPath(t *testing.T) {
	lock, err := NewFlat(4, 0)
	require.NoError(t, err)

	lock.Acquire(0)
	assert.True(t, lock.NoWaiters(0))

	done := make(chan struct{})
	go func() {
		lock.Acquire(1)
		close(done)
		lock.Release(1)
	}()

	for lock.NoWaiters(0) {
	}
	assert.False(t, lock.NoWaiters(0))

	lock.Release(0)
	<-done
}

func TestThresholdForcesClimb(t *testing.T) {
	// A threshold of 1 means every local acquirer must climb to the parent
	// instead of being handed the lock by a cohort-mate, exercising
	// the ACQUIRE_PARENT branch of releaseHelper on a small, deterministic
	// topology.
	top, err := topology.Uniform(16, 4, 2)
	require.NoError(t, err)
	lock, err := New(top, 1)
	require.NoError(t, err)

	const iterations = 100
	counter := 0
	var wg sync.WaitGroup
	wg.Add(top.Threads)
	for tid := 0; tid < top.Threads; tid++ {
		go func(tid int) {
			defer wg.Done()
			for range iterations {
				lock.Acquire(tid)
				counter++
				lock.Release(tid)
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, top.Threads*iterations, counter)
}

func TestThreeLevelHierarchy(t *testing.T) {
	top, err := topology.Uniform(64, 4, 3)
	require.NoError(t, err)
	lock, err := New(top, 8)
	require.NoError(t, err)

	const iterations = 100
	counter := 0
	var wg sync.WaitGroup
	wg.Add(top.Threads)
	for tid := 0; tid < top.Threads; tid++ {
		go func(tid int) {
			defer wg.Done()
			for range iterations {
				lock.Acquire(tid)
				counter++
				lock.Release(tid)
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, top.Threads*iterations, counter)
}
