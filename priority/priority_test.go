package priority

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/numalocks/mcs"
	"github.com/ahrav/numalocks/topology"
)

func TestMCSPMutualExclusion(t *testing.T) {
	l := NewMCSP()
	const highGoroutines = 8
	const lowGoroutines = 8
	const iterations = 300

	counter := 0
	var inside int32
	var mu sync.Mutex
	var wg sync.WaitGroup

	checkExclusive := func() {
		mu.Lock()
		inside++
		cur := inside
		mu.Unlock()
		assert.Equal(t, int32(1), cur)
		counter++
		mu.Lock()
		inside--
		mu.Unlock()
	}

	wg.Add(highGoroutines + lowGoroutines)
	for i := 0; i < highGoroutines; i++ {
		go func() {
			defer wg.Done()
			var node mcs.QNode
			for range iterations {
				l.AcquireHigh(&node)
				checkExclusive()
				l.Release(&node)
			}
		}()
	}
	for i := 0; i < lowGoroutines; i++ {
		go func() {
			defer wg.Done()
			var node mcs.QNode
			for range iterations {
				l.AcquireLow(&node)
				checkExclusive()
				l.Release(&node)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, (highGoroutines+lowGoroutines)*iterations, counter)
}

func TestTLPAllTicketLanes(t *testing.T) {
	l, err := NewTLP(SlotTicket, SlotTicket, 16, topology.Flat(16))
	require.NoError(t, err)

	counter := 0
	var wg sync.WaitGroup
	wg.Add(16)
	for tid := 0; tid < 16; tid++ {
		go func(tid int) {
			defer wg.Done()
			for range 200 {
				if tid%2 == 0 {
					l.AcquireHigh(tid)
				} else {
					l.AcquireLow(tid)
				}
				counter++
				l.Release(tid)
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, 16*200, counter)
}

func TestTLPArrayLane(t *testing.T) {
	l, err := NewTLP(SlotArray, SlotArray, 8, topology.Flat(8))
	require.NoError(t, err)

	counter := 0
	var wg sync.WaitGroup
	wg.Add(8)
	for tid := 0; tid < 8; tid++ {
		go func(tid int) {
			defer wg.Done()
			for range 300 {
				if tid%2 == 0 {
					l.AcquireHigh(tid)
				} else {
					l.AcquireLow(tid)
				}
				counter++
				l.Release(tid)
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, 8*300, counter)
}

func TestTLPHMCSLane(t *testing.T) {
	top, err := topology.Uniform(16, 4, 2)
	require.NoError(t, err)
	l, err := NewTLP(SlotHMCS, SlotMCS, top.Threads, top)
	require.NoError(t, err)

	counter := 0
	var wg sync.WaitGroup
	wg.Add(top.Threads)
	for tid := 0; tid < top.Threads; tid++ {
		go func(tid int) {
			defer wg.Done()
			for range 150 {
				if tid%3 == 0 {
					l.AcquireHigh(tid)
				} else {
					l.AcquireLow(tid)
				}
				counter++
				l.Release(tid)
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, top.Threads*150, counter)
}

func TestHMPRMutualExclusionAndRaisePriority(t *testing.T) {
	top := topology.Flat(8)
	l, err := NewHMPR(top, 0)
	require.NoError(t, err)

	nodes := make([]*PNode, 8)
	for i := range nodes {
		nodes[i] = NewPNode(i % 3)
	}

	counter := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(8)
	for tid := 0; tid < 8; tid++ {
		go func(tid int) {
			defer wg.Done()
			for range 50 {
				l.Acquire(tid, nodes[tid])
				mu.Lock()
				counter++
				mu.Unlock()
				l.Release(tid, nodes[tid])
				nodes[tid].RaisePriority()
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, 8*50, counter)
}
