// Package wfqueue implements a multi-producer/multi-consumer FIFO queue
// grounded on Yang & Mellor-Crummey's wait-free queue: a fast path where
// producers and consumers each claim a slot with one fetch-add on their
// own monotone index (Ei for enqueue, Di for dequeue) into a shared
// chain of fixed-size segments, backed by a slow path where a producer
// that loses every fast-path race announces a pending request that any
// consumer examining an empty slot can resolve on its behalf.
//
// The announce/resolve protocol is what makes Enqueue's worst case
// bounded by contention among concurrent producers rather than by how
// many Dequeue calls unrelated goroutines happen to make: a consumer
// that gives up waiting on an empty slot marks it closed, but a closed
// slot can still receive a value later, either from the producer that
// announced it or from a different consumer that resolves the
// announcement against its own slot. Losing the fast-path race never
// forces a producer to step over slots other goroutines have decided
// to close.
//
// This trims one piece of the original: rather than attaching a pending
// announcement to the specific cell a producer's retry lands on, a
// consumer that finds a closed cell scans every registered producer's
// single outstanding announcement directly. The original's per-cell
// attachment lets a consumer and a nearby producer rendezvous without
// a scan; skipping it costs a constant-factor amount of work per
// resolution (bounded by the number of producers) in exchange for a
// much smaller surface to get the retry protocol wrong on. Segment
// reclamation (the original's hazard-pointer-guarded node freeing) is
// cut too: the Queue holds no pointer to the oldest segment, so a
// segment stays reachable as long as any handle's enqueue or dequeue
// cursor still points at it or at an earlier segment, and is left to
// the garbage collector after that. A handle that never advances keeps
// the whole chain alive, which is a memory-growth tradeoff, not a
// correctness one.
package wfqueue

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	numatomic "github.com/ahrav/numalocks/atomic"
	"github.com/ahrav/numalocks/internal/cacheline"
)

const (
	segSize = 1024

	// maxSpin bounds how many times a consumer polls an empty cell
	// before giving up and closing it (MAX_SPIN).
	maxSpin = 100

	// maxPatience bounds how many times Enqueue retries the fast path
	// after its first attempt fails, before falling back to announcing a
	// slow-path request (MAX_PATIENCE).
	maxPatience = 10
)

const (
	valEmpty uint32 = iota
	valFilled
	valClosed
)

// enqReq is a producer's outstanding slow-path announcement: id is
// positive while unresolved (a hint: no consumer may resolve it to a
// slot earlier than this), 0 when idle, and the bitwise complement of
// the slot it resolved to once claimed.
type enqReq[T any] struct {
	id  atomix.Int64
	val T
}

type cell[T any] struct {
	valState atomix.Uint32
	data     T

	_ cacheline.Pad
}

type segment[T any] struct {
	id    uint64
	cells [segSize]cell[T]
	next  numatomic.Pointer[segment[T]]
}

func newSegment[T any](id uint64) *segment[T] { return &segment[T]{id: id} }

func advance[T any](seg *segment[T], nextID uint64) *segment[T] {
	next := seg.next.Load()
	if next == nil {
		candidate := newSegment[T](nextID)
		seg.next.CompareAndSwap(nil, candidate)
		next = seg.next.Load()
	}
	return next
}

// findCell walks (and extends, allocating as needed) the chain rooted
// at *ptr until it reaches the segment holding index i. Every caller
// must only ever grow i forward from the cursor it passes in: a target
// behind the cursor's current segment resolves to the wrong cell.
func findCell[T any](ptr **segment[T], i uint64) *cell[T] {
	cur := *ptr
	for j := cur.id; j < i/segSize; j++ {
		cur = advance(cur, j+1)
	}
	*ptr = cur
	return &cur.cells[i%segSize]
}

// handle is one thread's private cursors and announcement slot.
type handle[T any] struct {
	ep *segment[T]
	dp *segment[T]
	er enqReq[T]

	_ cacheline.Pad
}

// Queue is a wait-free-style multi-producer/multi-consumer FIFO queue
// supporting thread ids in [0, numThreads).
type Queue[T any] struct {
	ei atomix.Uint64
	di atomix.Uint64

	handles []handle[T]
}

// New returns an empty queue supporting thread ids in [0, numThreads).
func New[T any](numThreads int) *Queue[T] {
	seg := newSegment[T](0)
	q := &Queue[T]{handles: make([]handle[T], numThreads)}
	for i := range q.handles {
		q.handles[i].ep = seg
		q.handles[i].dp = seg
	}
	return q
}

// publish writes data into c and makes it visible to any consumer that
// acquire-loads valState afterward, regardless of c's prior state.
func publish[T any](c *cell[T], data T) {
	c.data = data
	c.valState.StoreRelease(valFilled)
}

func enqFast[T any](q *Queue[T], h *handle[T], v T) (ok bool, failedAt uint64) {
	i := q.ei.AddAcqRel(1) - 1
	c := findCell(&h.ep, i)

	// Write before the publishing CAS: the release ordering binds to
	// the CAS itself, not to a plain write that happens to precede it
	// in program order on this goroutine alone. A concurrently spinning
	// Dequeue only observes data once it has acquire-loaded valFilled,
	// so data must already be visible by the time that CAS succeeds.
	c.data = v
	if c.valState.CompareAndSwapAcqRel(valEmpty, valFilled) {
		return true, 0
	}
	return false, i
}

// enqSlow announces v as thread h's pending request (hintID is the last
// index enqFast failed on) and resolves it to a concrete cell, either
// by claiming a fresh index itself or by yielding to a consumer that
// resolves the announcement first.
func enqSlow[T any](q *Queue[T], h *handle[T], v T, hintID uint64) {
	er := &h.er
	er.val = v
	er.id.StoreRelease(int64(hintID) + 1) // +1: 0 is reserved for "idle"

	if er.id.LoadAcquire() > 0 {
		i := q.ei.AddAcqRel(1) - 1
		er.id.CompareAndSwapAcqRel(int64(hintID)+1, -(int64(i) + 1))
	}

	resolved := uint64(-er.id.LoadAcquire() - 1)
	c := findCell(&h.ep, resolved)
	publish(c, v)
}

// Enqueue adds data to the queue on behalf of thread tid.
func (q *Queue[T]) Enqueue(tid int, data T) {
	h := &q.handles[tid]

	ok, failedAt := enqFast(q, h, data)
	patience := maxPatience
	for !ok && patience > 0 {
		patience--
		ok, failedAt = enqFast(q, h, data)
	}
	if !ok {
		enqSlow(q, h, data, failedAt)
	}
}

type enqOutcome int

const (
	enqValue enqOutcome = iota
	enqEmpty
	enqPending
)

// helpEnq resolves the value that belongs at cell c, dequeue index i,
// either by observing it directly, by closing c and declaring it
// permanently empty, or by matching a pending producer announcement
// against it on that producer's behalf.
func helpEnq[T any](q *Queue[T], c *cell[T], i uint64) (T, enqOutcome) {
	if s := c.valState.LoadAcquire(); s == valFilled {
		return c.data, enqValue
	} else if s == valEmpty {
		sw := spin.Wait{}
		filled := false
		for n := 0; n < maxSpin; n++ {
			if c.valState.LoadAcquire() == valFilled {
				filled = true
				break
			}
			sw.Once()
		}
		if filled {
			return c.data, enqValue
		}
		if !c.valState.CompareAndSwapAcqRel(valEmpty, valClosed) {
			// Lost the close race: either a producer just filled it, or
			// another path closed it first; re-check once more.
			if c.valState.LoadAcquire() == valFilled {
				return c.data, enqValue
			}
		}
	}

	// c is now closed (valClosed): look for a pending announcement this
	// consumer can resolve to its own index i. A hint may only resolve
	// to an index at or after itself, which keeps every producer's
	// cursor walking forward.
	for idx := range q.handles {
		er := &q.handles[idx].er
		id := er.id.LoadAcquire()
		if id <= 0 {
			continue
		}
		hint := uint64(id - 1)
		if hint > i {
			continue
		}
		if er.id.CompareAndSwapAcqRel(id, -(int64(i) + 1)) {
			ev := er.val
			publish(c, ev)
			return ev, enqValue
		}
	}

	var zero T
	if q.ei.LoadAcquire() <= i {
		return zero, enqEmpty
	}
	return zero, enqPending
}

// Dequeue removes and returns the oldest outstanding item. The second
// return value is false if the queue had nothing available to resolve
// for the slot this call claimed. Safe for any number of concurrent
// consumers.
func (q *Queue[T]) Dequeue(tid int) (T, bool) {
	h := &q.handles[tid]
	i := q.di.AddAcqRel(1) - 1
	c := findCell(&h.dp, i)

	sw := spin.Wait{}
	for {
		v, outcome := helpEnq(q, c, i)
		switch outcome {
		case enqValue:
			return v, true
		case enqEmpty:
			var zero T
			return zero, false
		default: // enqPending: a producer's announcement still targets
			// an index <= i that hasn't resolved yet; keep polling this
			// same slot rather than abandoning it, since its eventual
			// value would otherwise never be returned to any caller.
			sw.Once()
		}
	}
}
