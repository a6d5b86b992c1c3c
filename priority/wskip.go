package priority

import "sync"

// wskipNode is one thread's ticket in a waitSkipQueue: a one-shot gate
// it blocks on until woken, either in its natural turn or early via
// skip.
type wskipNode struct {
	ch    chan struct{}
	queue *waitSkipQueue
}

// waitSkipQueue is a FIFO parking lot that also lets a still-parked
// waiter jump to the front of the line. HMPR uses it to hold back
// low-priority acquirers until the underlying lock is observed idle,
// and to let RaisePriority pull a specific waiter to the front once its
// patience is exhausted.
//
// The original izem source for this queue (zm_wskip.c) was not part of
// the retrieved reference material; only its call sites in zm_hmpr.c
// were available, so this implementation is built from that usage
// directly rather than ported line-by-line.
type waitSkipQueue struct {
	mu    sync.Mutex
	queue []*wskipNode
}

func newWaitSkipQueue() *waitSkipQueue { return &waitSkipQueue{} }

// wait parks the caller at the back of the queue and blocks until woken.
func (q *waitSkipQueue) wait() *wskipNode {
	n := &wskipNode{ch: make(chan struct{}, 1), queue: q}
	q.mu.Lock()
	q.queue = append(q.queue, n)
	q.mu.Unlock()
	<-n.ch
	return n
}

// wake releases the oldest parked waiter, if any.
func (q *waitSkipQueue) wake() {
	q.mu.Lock()
	if len(q.queue) == 0 {
		q.mu.Unlock()
		return
	}
	n := q.queue[0]
	q.queue = q.queue[1:]
	q.mu.Unlock()
	n.ch <- struct{}{}
}

// skip moves n to the front of the queue, so the next wake targets it
// regardless of arrival order.
func (q *waitSkipQueue) skip(n *wskipNode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, cur := range q.queue {
		if cur == n {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			q.queue = append([]*wskipNode{n}, q.queue...)
			return
		}
	}
}
