// Package alock implements an array-based queue lock: a fixed-size ring
// of per-slot flags where each waiting thread spins on a flag nobody
// else writes to, rather than on one shared word. A thread claims the
// next ring slot with a single fetch-add and then spins only on that
// slot's flag; releasing sets its own slot back to busy and flips the
// following slot to free, handing off in ring order.
//
// Unlike the queue-based locks (mcs, hmcs), the waiting set here is
// bounded up front by the number of participants the lock was built
// for — appropriate when that count is fixed and small. priority.TLP
// wires this in as its SlotArray lane, sized for all of its numThreads
// participants.
package alock

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

const (
	flagBusy uint32 = 0
	flagFree uint32 = 1
)

// Lock is an array-based queue lock supporting thread ids in
// [0, numThreads).
type Lock struct {
	flags []atomix.Uint32
	tail  atomix.Uint32
	size  uint32
	slots []uint32 // slots[tid] is the ring slot tid currently holds or is waiting on
}

// New builds an array lock supporting numThreads participants.
func New(numThreads int) *Lock {
	l := &Lock{
		flags: make([]atomix.Uint32, numThreads),
		size:  uint32(numThreads),
		slots: make([]uint32, numThreads),
	}
	l.flags[0].Store(flagFree)
	return l
}

// Lock acquires the lock on behalf of thread tid, blocking until the
// ring slot it claims is marked free.
func (l *Lock) Lock(tid int) {
	slot := (l.tail.AddAcqRel(1) - 1) % l.size
	l.slots[tid] = slot

	sw := spin.Wait{}
	for l.flags[slot].LoadAcquire() == flagBusy {
		sw.Once()
	}
}

// Unlock releases the lock held by thread tid, handing it to whichever
// thread is waiting on the next ring slot.
func (l *Lock) Unlock(tid int) {
	slot := l.slots[tid]
	l.flags[slot].StoreRelease(flagBusy)
	next := (slot + 1) % l.size
	l.flags[next].StoreRelease(flagFree)
}

// TryLock attempts to claim the lock for thread tid without blocking.
// It returns true only if the next ring slot was already free and this
// call won the race to claim it.
func (l *Lock) TryLock(tid int) bool {
	tail := l.tail.LoadAcquire()
	slot := tail % l.size
	if l.flags[slot].LoadAcquire() != flagFree {
		return false
	}
	if !l.tail.CompareAndSwapAcqRel(tail, tail+1) {
		return false
	}
	l.slots[tid] = slot
	return true
}
