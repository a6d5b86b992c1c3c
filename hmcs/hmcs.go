// Package hmcs implements the Hierarchical MCS (HMCS) lock: a multi-level
// generalization of the MCS lock that exploits NUMA locality by letting a
// bounded "cohort" of same-socket (or same-whatever-level) acquirers hand
// the lock to one another without touching higher, more distant levels of
// the machine. A thread only climbs to the parent level once its local
// cohort budget (the level's threshold) is exhausted or no local
// successor has shown up yet.
//
// This follows Chabbi, Fagan & Mellor-Crummey, "High performance locks for
// multi-level NUMA systems" (PPoPP'15), plus the uncontended fast path
// from Chabbi & Mellor-Crummey, "Contention-conscious, locality-preserving
// locks" (PPoPP'16).
package hmcs

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	numatomic "github.com/ahrav/numalocks/atomic"
	"github.com/ahrav/numalocks/internal/cacheline"
	"github.com/ahrav/numalocks/internal/envcfg"
	"github.com/ahrav/numalocks/topology"
)

// Status sentinels for a qnode, matching the original izem constants so
// cohort counts (any value below acquireParent) keep the same headroom.
// Kept as unexported magic values per the design note: external code only
// ever sees Lock/Acquire/Release, never these sentinels.
const (
	statusWait          uint64 = 0xffffffff
	statusAcquireParent uint64 = 0xcffffffc
	statusCohortStart   uint64 = 0x1
)

// qnode is the HMCS queue node: a status word plus a next link, identical
// in shape to the MCS QNode but with cohort-count semantics instead of a
// two-state locked/unlocked flag (§3, §4.9).
type qnode struct {
	next   numatomic.Pointer[qnode]
	status atomix.Uint64

	// _ pads qnode to a full cache line: a thread's leaf.i and the
	// HNode.node it may climb into both live in per-(thread,level)
	// slices elsewhere in the hierarchy, and must not share a line.
	_ cacheline.Pad
}

func reuse(n *qnode) {
	n.next.Store(nil)
	n.status.StoreRelease(statusWait)
}

// HNode is one node of the fixed hierarchy tree: a per-(level,group) lock
// with a threshold, a parent link (nil at the root), and an embedded qnode
// used as this HNode's own representative when it climbs to its parent.
type HNode struct {
	threshold uint64
	parent    *HNode
	tail      numatomic.Pointer[qnode]
	node      qnode
}

// leaf is a thread's view into the hierarchy: which HNode it currently
// contends at, the cached root (for the fast path), its personal qnode,
// and whether its last acquire took the fast path.
type leaf struct {
	curNode      *HNode
	rootNode     *HNode
	i            qnode
	tookFastPath bool
}

// Lock is an HMCS lock built over a fixed topology.
type Lock struct {
	leaves []*leaf
	levels int
}

// New builds an HMCS lock over top. threshold caps cohort length at every
// level; pass 0 to use HMCS_THRESHOLD (or its default of 256).
func New(top topology.Topology, threshold int) (*Lock, error) {
	if err := top.Validate(); err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = envcfg.HMCSThreshold()
	}

	levels := top.Levels()
	hnodes := make([][]*HNode, levels)
	for lvl := 0; lvl < levels; lvl++ {
		numGroups := top.Threads / top.ParticipantsPerLevel[lvl]
		hnodes[lvl] = make([]*HNode, numGroups)
		for g := range hnodes[lvl] {
			hnodes[lvl][g] = &HNode{threshold: uint64(threshold)}
		}
	}
	for lvl := 0; lvl < levels-1; lvl++ {
		for g, hn := range hnodes[lvl] {
			tidRepr := g * top.ParticipantsPerLevel[lvl]
			parentGroup := tidRepr / top.ParticipantsPerLevel[lvl+1]
			hn.parent = hnodes[lvl+1][parentGroup]
		}
	}

	root := hnodes[levels-1][0]
	leaves := make([]*leaf, top.Threads)
	for tid := range leaves {
		group0 := tid / top.ParticipantsPerLevel[0]
		leaves[tid] = &leaf{curNode: hnodes[0][group0], rootNode: root}
	}

	return &Lock{leaves: leaves, levels: levels}, nil
}

// NewFlat builds a single-level HMCS lock (equivalent to a plain MCS lock)
// for numThreads participants; useful when no real hierarchy is available.
func NewFlat(numThreads int, threshold int) (*Lock, error) {
	return New(topology.Flat(numThreads), threshold)
}

func normalMCSReleaseWithValue(hn *HNode, node *qnode, val uint64) {
	succ := node.next.Load()
	if succ != nil {
		succ.status.StoreRelease(val)
		return
	}
	if hn.tail.CompareAndSwap(node, nil) {
		return
	}
	sw := spin.Wait{}
	for succ == nil {
		succ = node.next.Load()
		sw.Once()
	}
	succ.status.StoreRelease(val)
}

func acquireRoot(hn *HNode, node *qnode) {
	reuse(node)
	pred := hn.tail.Swap(node)
	if pred == nil {
		return
	}
	pred.next.Store(node)
	sw := spin.Wait{}
	for node.status.LoadAcquire() == statusWait {
		sw.Once()
	}
}

func tryAcquireRoot(hn *HNode, node *qnode) bool {
	reuse(node)
	return hn.tail.CompareAndSwap(nil, node)
}

func releaseRoot(hn *HNode, node *qnode) {
	// Level-1 release always taps COHORT_START: it both releases the lock
	// and guarantees a fresh cohort never starts pre-exhausted.
	normalMCSReleaseWithValue(hn, node, statusCohortStart)
}

func nowaitersRoot(node *qnode) bool { return node.next.Load() == nil }

func acquireHelper(level int, hn *HNode, node *qnode) {
	if level == 1 {
		acquireRoot(hn, node)
		return
	}

	reuse(node)
	pred := hn.tail.Swap(node)
	if pred == nil {
		// First in the cohort at this level; start climbing to the parent.
		node.status.StoreRelease(statusCohortStart)
		acquireHelper(level-1, hn.parent, &hn.node)
		return
	}

	pred.next.Store(node)
	sw := spin.Wait{}
	for {
		s := node.status.LoadAcquire()
		if s < statusAcquireParent {
			return
		}
		if s == statusAcquireParent {
			node.status.StoreRelease(statusCohortStart)
			acquireHelper(level-1, hn.parent, &hn.node)
			return
		}
		sw.Once()
	}
}

func tryAcquireHelper(level int, hn *HNode, node *qnode) bool {
	if level == 1 {
		return tryAcquireRoot(hn, node)
	}
	// Higher levels never attempt a partial acquire (§4.3 Failure).
	return false
}

// releaseHelper preserves the original izem control flow verbatim,
// including the branch where no successor is linked yet at this level:
// it releases the parent level first and then hands ACQUIRE_PARENT to any
// successor that links in late, so that successor climbs to the parent
// itself.
func releaseHelper(level int, hn *HNode, node *qnode) {
	if level == 1 {
		releaseRoot(hn, node)
		return
	}

	curCount := node.status.LoadAcquire()
	if curCount == hn.threshold {
		releaseHelper(level-1, hn.parent, &hn.node)
		normalMCSReleaseWithValue(hn, node, statusAcquireParent)
		return
	}

	succ := node.next.Load()
	if succ != nil {
		succ.status.StoreRelease(curCount + 1)
		return
	}

	releaseHelper(level-1, hn.parent, &hn.node)
	normalMCSReleaseWithValue(hn, node, statusAcquireParent)
}

func nowaitersHelper(level int, hn *HNode, node *qnode) bool {
	if level == 1 {
		return nowaitersRoot(node)
	}
	if node.next.Load() != nil {
		return false
	}
	return nowaitersHelper(level-1, hn.parent, &hn.node)
}

// Acquire acquires the lock on behalf of thread tid, taking the fast path
// (a direct root acquire, bypassing the hierarchy) when both the thread's
// current-level HNode and the root are uncontended.
func (l *Lock) Acquire(tid int) {
	lf := l.leaves[tid]
	if lf.curNode.tail.Load() == nil && lf.rootNode.tail.Load() == nil {
		lf.tookFastPath = true
		acquireRoot(lf.rootNode, &lf.i)
		return
	}
	lf.tookFastPath = false
	acquireHelper(l.levels, lf.curNode, &lf.i)
}

// TryAcquire attempts a non-blocking acquire on behalf of thread tid.
// Reports success only through the fast path or a level-1 CAS; a
// contended hierarchy never attempts a partial climb.
func (l *Lock) TryAcquire(tid int) bool {
	lf := l.leaves[tid]
	if lf.curNode.tail.Load() == nil && lf.rootNode.tail.Load() == nil {
		if tryAcquireRoot(lf.rootNode, &lf.i) {
			lf.tookFastPath = true
			return true
		}
		return false
	}
	return tryAcquireHelper(l.levels, lf.curNode, &lf.i)
}

// Release releases the lock held on behalf of thread tid.
func (l *Lock) Release(tid int) {
	lf := l.leaves[tid]
	if lf.tookFastPath {
		releaseRoot(lf.rootNode, &lf.i)
		lf.tookFastPath = false
		return
	}
	releaseHelper(l.levels, lf.curNode, &lf.i)
}

// NoWaiters reports whether thread tid's release would find no successor
// at any level of the hierarchy.
func (l *Lock) NoWaiters(tid int) bool {
	lf := l.leaves[tid]
	if lf.tookFastPath {
		return nowaitersRoot(&lf.i)
	}
	return nowaitersHelper(l.levels, lf.curNode, &lf.i)
}
