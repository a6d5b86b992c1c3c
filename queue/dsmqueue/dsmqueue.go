// Package dsmqueue implements a combining queue: enqueue and dequeue
// each run serialized through their own DSM-Sync combiner, so the
// underlying data structure sees at most one enqueue and one dequeue at
// a time and is a plain singly linked list with a sentinel node.
//
// Using two independent combiners (rather than one shared combiner
// guarding both operations) lets a burst of enqueues from one set of
// threads combine concurrently with a burst of dequeues from another,
// matching the original's one-DSM-instance-per-direction design.
package dsmqueue

import "github.com/ahrav/numalocks/combine"

type node[T any] struct {
	data T
	next *node[T]
}

// Queue is a combining multi-producer/multi-consumer FIFO queue.
type Queue[T any] struct {
	head *node[T]
	tail *node[T]

	enq *combine.Combiner
	deq *combine.Combiner
}

// New returns an empty queue sized for numThreads participants on each
// direction's combiner.
func New[T any](numThreads int) *Queue[T] {
	sentinel := &node[T]{}
	return &Queue[T]{
		head: sentinel,
		tail: sentinel,
		enq:  combine.New(numThreads),
		deq:  combine.New(numThreads),
	}
}

// Enqueue appends data to the tail of the queue. tid identifies the
// calling thread among the numThreads passed to New.
func (q *Queue[T]) Enqueue(tid int, data T) {
	q.enq.Sync(tid, func() {
		n := &node[T]{data: data}
		q.tail.next = n
		q.tail = n
	})
}

// Dequeue removes and returns the item at the head of the queue. The
// second return value is false if the queue was empty. tid identifies
// the calling thread among the numThreads passed to New.
func (q *Queue[T]) Dequeue(tid int) (T, bool) {
	var result T
	var ok bool
	q.deq.Sync(tid, func() {
		newHead := q.head.next
		if newHead == nil {
			ok = false
			return
		}
		result = newHead.data
		q.head = newHead
		ok = true
	})
	return result, ok
}
