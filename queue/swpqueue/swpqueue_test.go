package swpqueue

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyReportsEmpty(t *testing.T) {
	q := New[int]()
	assert.True(t, q.StrongEmpty())
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestFIFOOrderSingleProducer(t *testing.T) {
	q := New[int]()
	for i := 0; i < 100; i++ {
		q.Enqueue(i)
	}
	for i := 0; i < 100; i++ {
		v, ok := q.Dequeue()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestMultiProducerSingleConsumerNoLoss(t *testing.T) {
	const numProducers = 16
	const perProducer = 3000
	q := New[int]()

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(p*perProducer + i)
			}
		}(p)
	}
	wg.Wait()

	var got []int
	for {
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		got = append(got, v)
	}

	assert.Len(t, got, numProducers*perProducer)
	sort.Ints(got)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}
