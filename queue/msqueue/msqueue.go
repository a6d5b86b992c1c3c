// Package msqueue implements the Michael & Scott lock-free queue: a
// multi-producer/multi-consumer FIFO using a two-CAS enqueue (link the
// node, then help advance the tail) and a CAS-based dequeue that helps
// advance the tail when it has fallen behind the head.
//
// Reclamation uses hazard pointers (slot 0 for the node under
// inspection, slot 1 for its successor during dequeue) so a node
// retired by one goroutine is never reused while another goroutine
// still holds a raw pointer to it from a racing CAS attempt.
package msqueue

import (
	"code.hybscloud.com/spin"

	numatomic "github.com/ahrav/numalocks/atomic"
	"github.com/ahrav/numalocks/hazard"
)

type node[T any] struct {
	data T
	next numatomic.Pointer[node[T]]
}

// Queue is a Michael-Scott multi-producer/multi-consumer FIFO queue.
type Queue[T any] struct {
	head numatomic.Pointer[node[T]]
	tail numatomic.Pointer[node[T]]
	hzd  *hazard.Domain[node[T]]
}

// New returns an empty queue supporting thread ids in [0, numThreads).
func New[T any](numThreads int) *Queue[T] {
	sentinel := &node[T]{}
	q := &Queue[T]{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	q.hzd = hazard.NewDomain[node[T]](numThreads, nil)
	return q
}

// Enqueue appends data to the tail of the queue on behalf of thread tid.
func (q *Queue[T]) Enqueue(tid int, data T) {
	n := &node[T]{data: data}

	var tail *node[T]
	sw := spin.Wait{}
	for {
		tail = q.tail.Load()
		q.hzd.Protect(tid, 0, tail)
		if tail != q.tail.Load() {
			sw.Once()
			continue
		}
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				break
			}
		} else {
			q.tail.CompareAndSwap(tail, next)
		}
		sw.Once()
	}
	q.tail.CompareAndSwap(tail, n)
	q.hzd.Clear(tid, 0)
}

// Dequeue removes and returns the item at the head of the queue on
// behalf of thread tid. The second return value is false if the queue
// was empty.
func (q *Queue[T]) Dequeue(tid int) (T, bool) {
	var head *node[T]
	var data T
	sw := spin.Wait{}
	for {
		head = q.head.Load()
		q.hzd.Protect(tid, 0, head)
		if head != q.head.Load() {
			sw.Once()
			continue
		}
		tail := q.tail.Load()
		next := head.next.Load()
		q.hzd.Protect(tid, 1, next)
		if head != q.head.Load() {
			sw.Once()
			continue
		}
		if head == tail {
			if next == nil {
				q.hzd.ClearAll(tid)
				var zero T
				return zero, false
			}
			q.tail.CompareAndSwap(tail, next)
		} else {
			data = next.data
			if q.head.CompareAndSwap(head, next) {
				break
			}
		}
		sw.Once()
	}
	q.hzd.ClearAll(tid)
	q.hzd.Retire(tid, head)
	return data, true
}
