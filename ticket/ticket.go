// Package ticket provides a fair mutual exclusion lock implementation using a ticket-based
// queuing system. The Lock type ensures FIFO ordering of lock acquisition by
// maintaining a queue of waiting goroutines using ticket numbers. This provides fairness
// by serving lock requests in the exact order they arrive, while implementing adaptive
// spinning strategies to balance CPU utilization with latency.
//
// Grounded on original_source/src/include/lock/zm_ticket.h's
// next_ticket/now_serving pair (fetch-add to acquire a ticket, acquire-load
// spin until served, release-add to advance the server), generalized with
// a distance-proportional spin that also sleeps when a waiter is far back
// in the queue.
package ticket

import (
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/ahrav/numalocks/internal/cacheline"
)

// Lock implements a fair mutual exclusion lock using a ticket-based queuing system.
// The lock maintains a queue of waiting goroutines using ticket numbers, ensuring FIFO
// ordering of lock acquisition. This provides fairness by serving lock requests in the
// exact order they arrive.
//
// The internal implementation uses two counters:
//   - head: the ticket currently being served (now_serving)
//   - tail: the next ticket to be issued (next_ticket)
//
// The lock is free when head == tail+1, and locked otherwise.
type Lock struct {
	head atomix.Uint32 // Currently served ticket.
	tail atomix.Uint32 // Next ticket to be issued.

	// _ pads Lock to a full cache line: a []Lock indexed one-per-resource
	// must not let two locks' head/tail words share a line.
	_ cacheline.Pad
}

// NewLock creates a new Lock.
func NewLock() *Lock {
	l := &Lock{}
	l.head.StoreRelease(1)
	l.tail.StoreRelease(0)
	return l
}

// TryLock attempts to acquire the lock without blocking. It returns true if the lock
// was acquired successfully, and false if the lock is currently held by another goroutine.
//
// A successful CompareAndSwapAcqRel on tail alone certifies tail did not
// move between the two reads below: becoming the holder always requires
// bumping tail first, so if tail is unchanged then head (which only ever
// advances via a prior holder's Unlock) is unchanged too. That lets this
// check-then-claim run as two atomics instead of the one combined
// head/tail word the original packs into a single machine word.
func (t *Lock) TryLock() bool {
	tail := t.tail.LoadAcquire()
	head := t.head.LoadAcquire()
	if head != tail+1 {
		return false
	}
	return t.tail.CompareAndSwapAcqRel(tail, tail+1)
}

const (
	ticketBaseWait uint32 = 10
	ticketWaitNext        = 5
)

// Lock acquires the lock using a ticket-based queuing system. It implements an adaptive
// spinning strategy where goroutines wait proportionally to their distance from the head
// of the queue. When a goroutine is far back in the queue (>20 positions), it also sleeps
// for a millisecond after each spin round to reduce CPU usage. This provides fair ordering of lock acquisition
// while attempting to balance CPU utilization with latency.
func (t *Lock) Lock() {
	myTicket := t.tail.AddAcqRel(1) // Get our ticket.

	// Fast path for uncontended case.
	if t.head.LoadAcquire() == myTicket {
		return
	}

	wait := ticketBaseWait
	distancePrev := uint32(1)
	sw := spin.Wait{}

	for {
		cur := t.head.LoadAcquire()
		if cur == myTicket {
			break // Our turn.
		}
		distance := subAbs(cur, myTicket) // How many people are in front of us?

		if distance > 1 { // If there are people in front of us, wait.
			if distance != distancePrev { // If the distance has changed, reset the wait time.
				distancePrev = distance
				wait = ticketBaseWait
			}

			// Spin proportionally to the distance from the head.
			for range distance * wait {
				sw.Once()
			}
		} else { // If we're next in line, wait a little bit.
			for range ticketWaitNext {
				sw.Once()
			}
		}

		if distance > 20 { // Sleep if we're far back in the queue.
			time.Sleep(time.Millisecond)
		}
	}
}

// Unlock releases the lock.
func (t *Lock) Unlock() { t.head.AddAcqRel(1) }

// isFree checks if the lock is free.
func (t *Lock) isFree() bool { return (t.head.LoadAcquire() - t.tail.LoadAcquire()) == 1 }

func subAbs(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
