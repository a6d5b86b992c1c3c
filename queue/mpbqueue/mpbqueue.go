// Package mpbqueue implements the bucketed multi-producer queue (MPB):
// an array of independent SWP sub-queues (one per bucket), plus a
// two-level summary that lets the consumer skip whole groups of empty
// buckets in one check instead of inspecting every bucket individually.
//
// Enqueue always targets a caller-chosen bucket (a natural fit when
// producers are already partitioned, e.g. by thread id or shard key).
// Dequeue walks the summary starting from a rotating cursor, so no
// single bucket can starve the others by always winning the scan.
//
// Unlike the original izem source — which reinterprets a byte array of
// per-bucket states as an array of machine words to test eight states
// at once — this port tracks, per group of buckets, an explicit count
// of how many buckets in that group are currently marked non-empty.
// Byte-array-as-word aliasing has no safe, portable equivalent in Go; a
// maintained per-group counter gives the same O(N / groupSize) skip
// behavior without it.
package mpbqueue

import (
	"code.hybscloud.com/atomix"

	"github.com/ahrav/numalocks/internal/zerr"
	"github.com/ahrav/numalocks/queue/swpqueue"
)

const (
	stateEmpty   uint32 = 0
	stateNonEmpty uint32 = 1
)

// bucketsPerGroup is how many buckets share one summary counter.
const bucketsPerGroup = 8

// Queue is a bucketed multi-producer queue with nbuckets independent
// SWP sub-queues.
type Queue[T any] struct {
	buckets []*swpqueue.Queue[T]
	states  []atomix.Uint32

	groupSummary []atomix.Int64
	lastGroup    int // consumer-private rotating cursor
}

// New builds a queue with nbuckets buckets. nbuckets must be a positive
// multiple of bucketsPerGroup.
func New[T any](nbuckets int) (*Queue[T], error) {
	if nbuckets <= 0 || nbuckets%bucketsPerGroup != 0 {
		return nil, zerr.ErrBucketCountInvalid
	}

	buckets := make([]*swpqueue.Queue[T], nbuckets)
	for i := range buckets {
		buckets[i] = swpqueue.New[T]()
	}

	return &Queue[T]{
		buckets:      buckets,
		states:       make([]atomix.Uint32, nbuckets),
		groupSummary: make([]atomix.Int64, nbuckets/bucketsPerGroup),
	}, nil
}

// Enqueue pushes data onto bucket bucketIdx. Safe for any number of
// concurrent producers targeting distinct or overlapping buckets.
func (q *Queue[T]) Enqueue(bucketIdx int, data T) {
	q.buckets[bucketIdx].Enqueue(data)

	// Mark the bucket non-empty only if it really is: the consumer may
	// already have drained the very element just pushed by the time
	// this check runs, in which case flagging it would be a stale
	// no-op that costs an unnecessary scan later but never a miss.
	if !q.buckets[bucketIdx].WeakEmpty() {
		if q.states[bucketIdx].CompareAndSwapAcqRel(stateEmpty, stateNonEmpty) {
			g := bucketIdx / bucketsPerGroup
			q.groupSummary[g].AddAcqRel(1)
		}
	}
}

// Dequeue removes and returns one item from the first non-empty bucket
// found scanning from the rotating cursor. The second return value is
// false if every bucket was empty. Must only be called by the single
// consumer.
func (q *Queue[T]) Dequeue() (T, bool) {
	nbucketGroups := len(q.groupSummary)
	for i := 0; i < nbucketGroups; i++ {
		g := (q.lastGroup + i) % nbucketGroups
		if q.groupSummary[g].LoadAcquire() == 0 {
			continue
		}
		if v, ok := q.drainOneFromGroup(g); ok {
			q.lastGroup = g
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (q *Queue[T]) drainOneFromGroup(g int) (T, bool) {
	base := g * bucketsPerGroup
	for j := 0; j < bucketsPerGroup; j++ {
		idx := base + j
		if q.states[idx].LoadAcquire() != stateNonEmpty {
			continue
		}
		v, ok := q.buckets[idx].Dequeue()
		if !ok {
			continue
		}
		q.resetIfDrained(idx, g)
		return v, true
	}
	var zero T
	return zero, false
}

func (q *Queue[T]) resetIfDrained(bucketIdx, g int) {
	if !q.buckets[bucketIdx].WeakEmpty() {
		return
	}
	if !q.buckets[bucketIdx].StrongEmpty() {
		return
	}
	if q.states[bucketIdx].CompareAndSwapAcqRel(stateNonEmpty, stateEmpty) {
		q.groupSummary[g].AddAcqRel(-1)
	}
}

// DequeueBulk removes up to maxCount items across however many buckets
// are needed to satisfy it, advancing the rotating cursor once per
// call. It returns fewer than maxCount items only once every bucket has
// been visited once in this call and found empty.
func (q *Queue[T]) DequeueBulk(maxCount int) []T {
	out := make([]T, 0, maxCount)
	nbucketGroups := len(q.groupSummary)

	for i := 0; i < nbucketGroups && len(out) < maxCount; i++ {
		g := (q.lastGroup + i) % nbucketGroups
		if q.groupSummary[g].LoadAcquire() == 0 {
			continue
		}
		base := g * bucketsPerGroup
		for j := 0; j < bucketsPerGroup && len(out) < maxCount; j++ {
			idx := base + j
			for q.states[idx].LoadAcquire() == stateNonEmpty && len(out) < maxCount {
				v, ok := q.buckets[idx].Dequeue()
				if !ok {
					break
				}
				out = append(out, v)
				if q.buckets[idx].StrongEmpty() {
					if q.states[idx].CompareAndSwapAcqRel(stateNonEmpty, stateEmpty) {
						q.groupSummary[g].AddAcqRel(-1)
					}
					break
				}
			}
		}
		q.lastGroup = g
	}
	return out
}
