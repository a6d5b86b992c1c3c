package priority

import (
	"fmt"

	"github.com/ahrav/numalocks/alock"
	"github.com/ahrav/numalocks/hmcs"
	"github.com/ahrav/numalocks/mcs"
	"github.com/ahrav/numalocks/ticket"
	"github.com/ahrav/numalocks/topology"
)

// SlotKind selects which concrete lock backs one lane of a TLP
// (templated-lock-pair) composition.
type SlotKind int

const (
	SlotTicket SlotKind = iota
	SlotMCS
	SlotHMCS
	SlotArray
)

// slotLock is the uniform, context-less surface every lane of a TLP is
// driven through, regardless of which concrete lock backs it.
type slotLock interface {
	Acquire(tid int)
	Release(tid int)
	NoWaiters(tid int) bool
}

type ticketSlot struct{ l *ticket.Lock }

func (s ticketSlot) Acquire(int)      { s.l.Lock() }
func (s ticketSlot) Release(int)      { s.l.Unlock() }
func (s ticketSlot) NoWaiters(int) bool { return true } // ticket lock has no successor-visibility API

type mcsSlot struct{ r *mcs.Registry }

func (s mcsSlot) Acquire(tid int)        { s.r.Lock(tid) }
func (s mcsSlot) Release(tid int)        { s.r.Unlock(tid) }
func (s mcsSlot) NoWaiters(tid int) bool { return s.r.NoWaiters(tid) }

type hmcsSlot struct{ l *hmcs.Lock }

func (s hmcsSlot) Acquire(tid int)        { s.l.Acquire(tid) }
func (s hmcsSlot) Release(tid int)        { s.l.Release(tid) }
func (s hmcsSlot) NoWaiters(tid int) bool { return s.l.NoWaiters(tid) }

type arraySlot struct{ l *alock.Lock }

func (s arraySlot) Acquire(tid int)    { s.l.Lock(tid) }
func (s arraySlot) Release(tid int)    { s.l.Unlock(tid) }
func (s arraySlot) NoWaiters(int) bool { return true } // array lock has no successor-visibility API

func newSlot(kind SlotKind, numThreads int, top topology.Topology) (slotLock, error) {
	switch kind {
	case SlotTicket:
		return ticketSlot{ticket.NewLock()}, nil
	case SlotMCS:
		return mcsSlot{mcs.NewRegistry(numThreads)}, nil
	case SlotHMCS:
		l, err := hmcs.New(top, 0)
		if err != nil {
			return nil, err
		}
		return hmcsSlot{l}, nil
	case SlotArray:
		return arraySlot{alock.New(numThreads)}, nil
	default:
		return nil, fmt.Errorf("priority: unknown slot kind %d", kind)
	}
}

// TLP is a templated priority-paired lock: the same high/low, filter-
// gated composition as MCSP, but with the concrete lock backing each
// lane chosen at construction time instead of fixed to MCS. This mirrors
// the original's compile-time `#if ZM_TLP_HIGH_P == ...` slot selection.
type TLP struct {
	highP, lowP slotLock
	filter      *ticket.Lock

	goStraight bool
	lowPAcq    bool
}

// NewTLP builds a TLP over numThreads participants, using highKind and
// lowKind to back the high- and low-priority lanes. top is only
// consulted when a lane is SlotHMCS.
func NewTLP(highKind, lowKind SlotKind, numThreads int, top topology.Topology) (*TLP, error) {
	high, err := newSlot(highKind, numThreads, top)
	if err != nil {
		return nil, err
	}
	low, err := newSlot(lowKind, numThreads, top)
	if err != nil {
		return nil, err
	}
	return &TLP{highP: high, lowP: low, filter: ticket.NewLock()}, nil
}

// AcquireHigh acquires the lock on behalf of thread tid on the
// high-priority lane.
func (l *TLP) AcquireHigh(tid int) {
	l.highP.Acquire(tid)
	if !l.goStraight {
		l.filter.Lock()
		l.goStraight = true
	}
}

// AcquireLow acquires the lock on behalf of thread tid on the
// low-priority lane.
func (l *TLP) AcquireLow(tid int) {
	l.lowP.Acquire(tid)
	l.filter.Lock()
	l.lowPAcq = true
}

// Release releases whichever lane thread tid last acquired.
func (l *TLP) Release(tid int) {
	if !l.lowPAcq {
		if l.highP.NoWaiters(tid) {
			l.goStraight = false
			l.filter.Unlock()
		}
		l.highP.Release(tid)
		return
	}
	l.lowPAcq = false
	l.filter.Unlock()
	l.lowP.Release(tid)
}
