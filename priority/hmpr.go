package priority

import (
	"github.com/ahrav/numalocks/hmcs"
	"github.com/ahrav/numalocks/topology"
)

// PNode is a thread's priority handle for an HMPR lock: its remaining
// patience (how many more acquires it must sit out in the wait queue
// before contending directly) and, once it has parked at least once,
// the wait-queue ticket that represents it there.
type PNode struct {
	p    int
	node *wskipNode
}

// NewPNode returns a priority handle that waits patience times before
// being allowed to contend on the lock directly. patience == 0 means the
// thread never waits — it always contends immediately, as a
// high-priority caller would.
func NewPNode(patience int) *PNode { return &PNode{p: patience} }

// HMPR is a hierarchical-MCS lock paired with a wait-skip queue: a
// caller whose PNode still has patience left parks until the lock is
// observed idle before it is allowed to
// contend, keeping low-priority threads from piling onto a hot lock
// ahead of whoever already holds priority there.
type HMPR struct {
	lock  *hmcs.Lock
	waitq *waitSkipQueue
}

// NewHMPR builds an HMPR lock over top.
func NewHMPR(top topology.Topology, threshold int) (*HMPR, error) {
	lock, err := hmcs.New(top, threshold)
	if err != nil {
		return nil, err
	}
	return &HMPR{lock: lock, waitq: newWaitSkipQueue()}, nil
}

// Acquire acquires the lock on behalf of thread tid, using node to track
// its priority state across calls. A node with patience remaining parks
// in the wait queue until the lock is observed idle; once its patience
// is exhausted it contends directly like a high-priority caller.
//
// zm_wskip.c (the source this queue is modeled on) was not part of the
// retrieved reference material, so this departs from the literal
// zm_hmpr_acquire condition in one respect: that source parks every
// caller on its very first acquire regardless of patience, to obtain a
// wait-queue ticket — which, for a workload where every thread's first
// call happens before anyone has reached Release, deadlocks outright.
// Parking only when patience remains avoids that without losing the
// escalation behavior RaisePriority depends on.
func (l *HMPR) Acquire(tid int, node *PNode) {
	if node.p > 0 {
		node.node = l.waitq.wait()
	}
	l.lock.Acquire(tid)
}

// Release releases the lock held on behalf of thread tid, waking the
// oldest parked waiter if the lock is now uncontended.
func (l *HMPR) Release(tid int, node *PNode) {
	if l.lock.NoWaiters(tid) {
		l.waitq.wake()
	}
	l.lock.Release(tid)
}

// RaisePriority decrements node's remaining patience; once it reaches
// zero, later Acquire calls with node no longer park. At that point it
// also asks the wait queue to move node's recorded ticket to the front.
// Acquire records that ticket only after the wait has returned, so this
// never moves a waiter that is still parked; a ticket no longer in the
// queue is left as it is.
func (n *PNode) RaisePriority() {
	if n.p > 0 {
		n.p--
		if n.p == 0 && n.node != nil {
			n.node.queue.skip(n.node)
		}
	}
}
