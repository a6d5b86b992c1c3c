// Package faqueue implements the fetch-add segment queue (FAQ): a
// strictly monotone slot allocator for multiple producers, backed by a
// growable linked list of fixed-size segments, with a single private
// consumer.
//
// Enqueue reserves a slot with one atomic fetch-add on a global tail
// counter; the slot index identifies which segment and which cell
// within it the producer writes to, allocating new segments on demand
// via CAS. Dequeue never contends with anything: it owns its segment
// and cell cursor outright, and frees a segment once every cell in it
// has been consumed.
package faqueue

import (
	"code.hybscloud.com/atomix"

	numatomic "github.com/ahrav/numalocks/atomic"
)

// segSize is the number of cells per segment (ZM_MAX_FASEG_SIZE).
const segSize = 1024

type cell[T any] struct {
	data   T
	filled atomix.Uint32
}

type segment[T any] struct {
	id   uint64
	cells [segSize]cell[T]
	next numatomic.Pointer[segment[T]]
}

func newSegment[T any](id uint64) *segment[T] { return &segment[T]{id: id} }

// advance returns the segment immediately after seg, allocating and
// CAS-installing one if none exists yet. A loser of the race simply
// drops its allocation for the garbage collector rather than freeing it
// explicitly.
func advance[T any](seg *segment[T], nextID uint64) *segment[T] {
	next := seg.next.Load()
	if next == nil {
		candidate := newSegment[T](nextID)
		seg.next.CompareAndSwap(nil, candidate)
		next = seg.next.Load()
	}
	return next
}

// findCell walks forward from seg until it reaches the segment
// containing cellID, allocating segments as needed, and returns that
// segment along with a pointer to the target cell.
func findCell[T any](seg *segment[T], cellID uint64) (*segment[T], *cell[T]) {
	target := cellID / segSize
	cur := seg
	for i := cur.id; i < target; i++ {
		cur = advance(cur, i+1)
	}
	return cur, &cur.cells[cellID%segSize]
}

// Queue is a fetch-add segment FIFO queue: multi-producer, single-
// consumer.
type Queue[T any] struct {
	tail atomix.Uint64

	segTail numatomic.Pointer[segment[T]] // shared producer cursor hint

	head    uint64 // consumer-private, monotonically increasing
	segHead *segment[T]
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	seg := newSegment[T](0)
	q := &Queue[T]{segHead: seg}
	q.segTail.Store(seg)
	return q
}

// Enqueue reserves the next slot and writes data into it. Safe for any
// number of concurrent producers.
func (q *Queue[T]) Enqueue(data T) {
	cellID := q.tail.AddAcqRel(1) - 1

	// segTail is only a hint: concurrent producers may race to update
	// it and regress it to an older segment, which merely costs a
	// redundant walk on the next enqueue rather than corrupting state,
	// since the segment chain itself is append-only.
	seg, c := findCell(q.segTail.Load(), cellID)
	q.segTail.Store(seg)

	c.data = data
	c.filled.StoreRelease(1)
}

// Dequeue removes and returns the item at the head of the queue. The
// second return value is false if the queue was empty. Must only be
// called by the single consumer.
func (q *Queue[T]) Dequeue() (T, bool) {
	c := &q.segHead.cells[q.head%segSize]
	if c.filled.LoadAcquire() == 0 {
		var zero T
		return zero, false
	}

	data := c.data
	q.head++
	if q.head%segSize == 0 {
		// Every cell in segHead has been consumed; advance past it and
		// let the garbage collector reclaim it once this was its last
		// reference.
		q.segHead = advance(q.segHead, q.head/segSize)
	}
	return data, true
}
