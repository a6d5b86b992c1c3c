// Package swpqueue implements the SWP (a.k.a. NM) queue: a
// multi-producer, single-consumer FIFO built from one atomic swap per
// enqueue instead of a CAS retry loop.
//
// Enqueue allocates a node, atomically swaps it into the tail, then
// links it behind whatever the previous tail was. Dequeue is entirely
// consumer-private: no atomics beyond reading the head's successor.
//
// Two emptiness checks are exposed because they differ in what they
// guarantee: StrongEmpty is only wrong in the window before an enqueuer
// finishes linking (tail has moved but head.next hasn't been written
// yet); WeakEmpty additionally treats "someone has reserved the tail but
// not yet linked" as non-empty, by also comparing against tail.
package swpqueue

import (
	numatomic "github.com/ahrav/numalocks/atomic"
)

type node[T any] struct {
	data T
	next numatomic.Pointer[node[T]]
}

// Queue is an SWP/NM multi-producer/single-consumer FIFO queue.
type Queue[T any] struct {
	head *node[T]
	tail numatomic.Pointer[node[T]]
}

// New returns an empty queue, already holding a sentinel head node.
func New[T any]() *Queue[T] {
	sentinel := &node[T]{}
	q := &Queue[T]{head: sentinel}
	q.tail.Store(sentinel)
	return q
}

// Enqueue appends data to the tail of the queue. Safe for any number of
// concurrent producers.
func (q *Queue[T]) Enqueue(data T) {
	n := &node[T]{data: data}
	pred := q.tail.Swap(n)
	pred.next.Store(n)
}

// Dequeue removes and returns the item at the head of the queue. Must
// only be called by the single consumer.
func (q *Queue[T]) Dequeue() (T, bool) {
	newHead := q.head.next.Load()
	if newHead == nil {
		var zero T
		return zero, false
	}
	data := newHead.data
	q.head = newHead
	return data, true
}

// StrongEmpty reports whether the queue is empty, guaranteeing false
// only once a concurrent enqueuer has finished linking its node.
func (q *Queue[T]) StrongEmpty() bool { return q.head.next.Load() == nil }

// WeakEmpty reports whether head and tail coincide. It says false as
// soon as an enqueuer has swapped its node into the tail, even before it
// has linked that node, so a false here does not guarantee that Dequeue
// will find an item yet.
func (q *Queue[T]) WeakEmpty() bool { return q.head == q.tail.Load() }
