// Package priority implements priority-paired locks: two lanes (high and
// low priority) that both funnel through a shared ticket "filter" lock so
// that, no matter which lane wins, exactly one caller holds the combined
// lock at a time, while a high-priority caller that has to take the
// filter waits there behind at most one low-priority caller.
package priority

import (
	"github.com/ahrav/numalocks/mcs"
	"github.com/ahrav/numalocks/ticket"
)

// MCSP pairs two MCS locks — one per priority lane — behind a single
// ticket filter. A high-priority caller only pays the filter's cost once
// per streak of high-priority holders (go_straight): a releasing holder
// that sees another high-priority caller queued behind it keeps the
// filter and passes it on, and only the holder that finds no such
// waiter releases the filter; a
// low-priority caller always pays it, since it must never be let through
// ahead of a waiting high-priority caller.
type MCSP struct {
	highP *mcs.Lock
	lowP  *mcs.Lock
	filter *ticket.Lock

	goStraight bool
	lowPAcq    bool
}

// NewMCSP builds an empty priority-paired MCS lock.
func NewMCSP() *MCSP {
	return &MCSP{highP: mcs.NewLock(), lowP: mcs.NewLock(), filter: ticket.NewLock()}
}

// AcquireHigh acquires the lock on the high-priority lane.
func (l *MCSP) AcquireHigh(node *mcs.QNode) {
	l.highP.Lock(node)
	if !l.goStraight {
		l.filter.Lock()
		l.goStraight = true
	}
}

// AcquireLow acquires the lock on the low-priority lane. Low-priority
// callers always take the filter, so a waiting high-priority caller is
// never stuck behind more than one low-priority critical section.
func (l *MCSP) AcquireLow(node *mcs.QNode) {
	l.lowP.Lock(node)
	l.filter.Lock()
	l.lowPAcq = true
}

// Release releases whichever lane this node last acquired.
func (l *MCSP) Release(node *mcs.QNode) {
	if !l.lowPAcq {
		if l.highP.NoWaiters(node) {
			l.goStraight = false
			l.filter.Unlock()
		}
		l.highP.Unlock(node)
		return
	}
	l.lowPAcq = false
	l.filter.Unlock()
	l.lowP.Unlock(node)
}
