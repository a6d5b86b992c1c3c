package mcs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockMutualExclusion(t *testing.T) {
	lock := NewLock()
	const numGoroutines = 100
	const iterations = 500
	counter := 0
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			var node QNode
			for range iterations {
				lock.Lock(&node)
				counter++
				lock.Unlock(&node)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, numGoroutines*iterations, counter)
}

func TestTryLock(t *testing.T) {
	lock := NewLock()
	var a, b QNode

	assert.True(t, lock.TryLock(&a))
	assert.False(t, lock.TryLock(&b), "lock already held, TryLock should fail")
	lock.Unlock(&a)
	assert.True(t, lock.TryLock(&b))
	lock.Unlock(&b)
}

func TestIsFreeAndNoWaiters(t *testing.T) {
	lock := NewLock()
	var a, b QNode

	assert.True(t, lock.IsFree())
	lock.Lock(&a)
	assert.False(t, lock.IsFree())
	assert.True(t, lock.NoWaiters(&a))

	done := make(chan struct{})
	go func() {
		lock.Lock(&b)
		close(done)
		lock.Unlock(&b)
	}()

	// Busy-wait for b to link behind a without relying on sleeps.
	for lock.NoWaiters(&a) {
	}
	assert.False(t, lock.NoWaiters(&a))

	lock.Unlock(&a)
	<-done
	assert.True(t, lock.IsFree())
}

func TestRegistryMutualExclusion(t *testing.T) {
	const numThreads = 16
	const iterations = 1000
	reg := NewRegistry(numThreads)
	counter := 0
	var wg sync.WaitGroup

	wg.Add(numThreads)
	for tid := 0; tid < numThreads; tid++ {
		go func(tid int) {
			defer wg.Done()
			for range iterations {
				reg.Lock(tid)
				counter++
				reg.Unlock(tid)
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, numThreads*iterations, counter)
}

func TestQueueDrainsEachWaiterOnce(t *testing.T) {
	lock := NewLock()
	const n = 20
	var nodes [n]QNode
	var order []int
	var mu sync.Mutex
	var ready sync.WaitGroup
	var wg sync.WaitGroup
	ready.Add(1)

	// Acquire the lock first so all goroutines queue up behind `head`.
	var head QNode
	lock.Lock(&head)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			ready.Wait()
			lock.Lock(&nodes[i])
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			lock.Unlock(&nodes[i])
		}(i)
	}

	ready.Done()
	// Release head right away: some goroutines may link behind it and
	// others may arrive later. This test only asserts the queue drains
	// completely and exactly once per goroutine, not a specific order,
	// since goroutine scheduling can reorder the swap onto tail.
	lock.Unlock(&head)
	wg.Wait()

	assert.Len(t, order, n)
	seen := make(map[int]bool, n)
	for _, v := range order {
		assert.False(t, seen[v], "goroutine %d recorded twice", v)
		seen[v] = true
	}
}
