// Package combine implements DSM-Sync, a lock-free combining technique:
// a thread that wants to apply an operation enqueues it and either gets
// handed the already-applied result by whoever is currently combining, or
// becomes the combiner itself and walks the queue applying a bounded
// number of pending operations before handing the role to its successor.
//
// It also implements CC-Sync, the same combining queue guarding a
// traditional mutual-exclusion lock instead of an inline apply closure —
// useful when the critical section can't be expressed as a single
// request/response pair.
//
// Ported from Fatourou & Kallimanis, "Revisiting the combining
// synchronization technique" (ISMM'12).
package combine

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	numatomic "github.com/ahrav/numalocks/atomic"
	"github.com/ahrav/numalocks/internal/cacheline"
	"github.com/ahrav/numalocks/mcs"
)

// maxCombine bounds how many pending operations a single combiner will
// apply before electing a successor, so one unlucky thread never starves
// everyone behind it.
const maxCombine = 1 << 10

const (
	statusUnlocked uint64 = 0
	statusWait     uint64 = 1
	statusComplete uint64 = 2
)

// qnode is one announced request in the combining queue.
type qnode struct {
	apply  func()
	status atomix.Uint64
	next   numatomic.Pointer[qnode]
}

// tnode is a thread's private pair of alternating qnodes (the toggle
// avoids a request being reused while a prior combiner might still be
// reading it) plus the head it cached between combine and release.
type tnode struct {
	qnodes [2]qnode
	toggle int
	head   *qnode

	// _ pads tnode to a full cache line so that Combiner.nodes, a
	// []tnode indexed one-per-thread, never places two threads'
	// announcement slots on the same line.
	_ cacheline.Pad
}

// Combiner is a DSM-Sync combining queue, optionally paired with a
// traditional MCS lock for the CC-Sync acquire/release mode.
type Combiner struct {
	tail  numatomic.Pointer[qnode]
	nodes []tnode
	mcs   *mcs.Registry
}

// New builds a combiner supporting thread ids in [0, numThreads).
func New(numThreads int) *Combiner {
	return &Combiner{
		nodes: make([]tnode, numThreads),
		mcs:   mcs.NewRegistry(numThreads),
	}
}

func (c *Combiner) acqEnq(tn *tnode, apply func()) {
	tn.toggle = 1 - tn.toggle
	local := &tn.qnodes[tn.toggle]
	local.status.StoreRelease(statusWait)
	local.next.Store(nil)
	local.apply = apply

	pred := c.tail.Swap(local)
	if pred == nil {
		return
	}

	pred.next.Store(local)
	sw := spin.Wait{}
	for local.status.LoadAcquire() == statusWait {
		sw.Once()
	}
}

func (c *Combiner) combine(tn *tnode) {
	local := &tn.qnodes[tn.toggle]
	if local.status.LoadAcquire() == statusComplete {
		tn.head = nil
		return
	}

	head := local
	counter := 0
	for {
		if head.apply != nil {
			head.apply()
			head.status.StoreRelease(statusComplete)
		}
		next := head.next.Load()
		if next == nil || next.next.Load() == nil || next.apply == nil || counter > maxCombine {
			break
		}
		head = next
		counter++
	}

	tn.head = head
}

func (c *Combiner) release(tn *tnode) {
	head := tn.head
	if head == nil {
		return
	}

	if head.next.Load() == nil {
		if c.tail.CompareAndSwap(head, nil) {
			return
		}
		sw := spin.Wait{}
		for head.next.Load() == nil {
			sw.Once()
		}
	}

	head.next.Load().status.StoreRelease(statusUnlocked)
	head.next.Store(nil)
}

// Sync applies apply as a single combined operation on behalf of thread
// tid, returning once apply (run either by this thread, as combiner, or
// by whichever thread combined on its behalf) has completed.
func (c *Combiner) Sync(tid int, apply func()) {
	tn := &c.nodes[tid]
	c.acqEnq(tn, apply)
	c.combine(tn)
	c.release(tn)
}

// Acquire enters the CC-Sync critical section on behalf of thread tid:
// it takes the traditional MCS lock and then joins the combining queue
// with a nil request, so it also gets to serve as combiner for any
// DSM-Sync-style Sync callers queued up behind it.
func (c *Combiner) Acquire(tid int) {
	c.mcs.Lock(tid)
	tn := &c.nodes[tid]
	c.acqEnq(tn, nil)
	c.combine(tn)
}

// Release leaves the CC-Sync critical section entered by Acquire.
func (c *Combiner) Release(tid int) {
	tn := &c.nodes[tid]
	c.release(tn)
	c.mcs.Unlock(tid)
}
