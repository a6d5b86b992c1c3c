// Package mcs implements the Mellor-Crummey & Scott (MCS) lock, a scalable
// FIFO queue-based spin lock built from per-thread queue nodes linked by
// atomic swap/CAS.
//
// An MCS lock provides several advantages over traditional spin locks:
//   - FIFO ordering ensures fair lock acquisition
//   - Each thread spins on a local variable, reducing memory contention and cache invalidation
//   - Memory usage scales with the number of threads contending for the lock
//   - Predictable performance under high contention
//
// Two APIs are provided, matching the original izem library: a contextful
// one where the caller supplies its own QNode (use this when goroutines
// keep their node on the stack or in a per-goroutine struct), and a
// context-less one (Registry) that keeps one QNode per hardware-thread id
// for callers that would rather pass an integer id than carry a QNode
// around.
//
// Example usage:
//
//	lock := mcs.NewLock()
//	node := &mcs.QNode{}
//
//	// Blocking acquisition
//	lock.Lock(node)
//	// ... critical section ...
//	lock.Unlock(node)
//
//	// Non-blocking try-lock
//	if lock.TryLock(node) {
//	    // ... critical section ...
//	    lock.Unlock(node)
//	}
//
// Each goroutine must maintain its own QNode instance. A single QNode
// should not be used concurrently by multiple goroutines.
package mcs

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	numatomic "github.com/ahrav/numalocks/atomic"
	"github.com/ahrav/numalocks/internal/cacheline"
)

// waiting/unlocked status values for QNode.status (§4.9 MCS queue node
// state machine).
const (
	unlocked = 0
	locked   = 1
)

// QNode represents a queue node in the MCS lock. Its lifetime spans one
// acquire/release pair: the caller owns it and must not reuse it
// concurrently from two goroutines.
type QNode struct {
	next   numatomic.Pointer[QNode]
	status atomix.Uint64

	// _ pads QNode to a full cache line so that a Registry's backing
	// []QNode never places two threads' nodes on the same line.
	_ cacheline.Pad
}

// Lock represents the MCS lock.
type Lock struct {
	tail numatomic.Pointer[QNode]
}

// NewLock creates a new MCS lock.
func NewLock() *Lock { return new(Lock) }

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (l *Lock) TryLock(node *QNode) bool {
	node.next.Store(nil)
	return l.tail.CompareAndSwap(nil, node)
}

// Lock acquires the lock, blocking until it is this goroutine's turn.
func (l *Lock) Lock(node *QNode) {
	node.next.Store(nil)
	pred := l.tail.Swap(node) // Atomically put ourselves at the tail.

	if pred == nil { // No predecessor, lock acquired.
		return
	}

	// Someone else is holding the lock; wait for our predecessor to signal us.
	node.status.StoreRelease(locked)
	pred.next.Store(node) // Link to predecessor.

	sw := spin.Wait{}
	for node.status.LoadAcquire() == locked {
		sw.Once()
	}
}

// Unlock releases the lock.
func (l *Lock) Unlock(node *QNode) {
	if node.next.Load() == nil {
		// No successor observed; try to close out the tail.
		if l.tail.CompareAndSwap(node, nil) {
			return
		}

		// Someone is in the middle of enqueuing onto us; wait for them to finish linking.
		sw := spin.Wait{}
		for {
			succ := node.next.Load()
			if succ != nil {
				succ.status.StoreRelease(unlocked)
				return
			}
			sw.Once()
		}
	}

	succ := node.next.Load()
	succ.status.StoreRelease(unlocked)
}

// NoWaiters reports whether no other goroutine has linked itself behind
// node — i.e. whether releasing now would find the lock uncontended. Used
// by priority composition (§4.5) to decide whether to keep skipping the
// fairness filter.
func (l *Lock) NoWaiters(node *QNode) bool { return node.next.Load() == nil }

// IsFree returns true if the lock currently has no holder at all.
func (l *Lock) IsFree() bool { return l.tail.Load() == nil }

// Registry is the context-less MCS API: it keeps one QNode per
// hardware-thread id so callers that only have a numeric thread id (rather
// than a QNode of their own) can still use the lock. This mirrors the
// per-thread node table the original izem library keeps behind its
// zm_thread_local tid lookup; Go has no stable goroutine-local storage, so
// the thread id is passed explicitly instead of being discovered.
type Registry struct {
	lock  *Lock
	nodes []QNode
}

// NewRegistry creates a context-less MCS lock supporting thread ids in
// [0, numThreads).
func NewRegistry(numThreads int) *Registry {
	return &Registry{lock: NewLock(), nodes: make([]QNode, numThreads)}
}

// Lock acquires the lock on behalf of thread tid.
func (r *Registry) Lock(tid int) { r.lock.Lock(&r.nodes[tid]) }

// TryLock attempts to acquire the lock on behalf of thread tid.
func (r *Registry) TryLock(tid int) bool { return r.lock.TryLock(&r.nodes[tid]) }

// Unlock releases the lock on behalf of thread tid.
func (r *Registry) Unlock(tid int) { r.lock.Unlock(&r.nodes[tid]) }

// NoWaiters reports whether thread tid's release would find no successor.
func (r *Registry) NoWaiters(tid int) bool { return r.lock.NoWaiters(&r.nodes[tid]) }
