// Package atomic is the L0 ordering vocabulary every higher layer in
// numalocks builds on: thin, uniformly named wrappers around atomic
// load/store/swap/CAS/fetch-add operations, each spelling out the memory
// ordering it uses.
//
// Scalar counters and status words (the ticket lock's counters, HMCS
// cohort counts, DSM status words, hazard-pointer active flags, pool
// element counts) use code.hybscloud.com/atomix directly — it already
// exposes exactly this vocabulary (LoadRelaxed/LoadAcquire/StoreRelease/
// CompareAndSwapAcqRel/...) and is the pattern the wider example pack's
// lock-free queue code uses for every hot counter.
//
// Go's standard atomic.Pointer[T] has no equivalent ordering-qualified API
// (the Go memory model gives every atomic operation acquire/release
// semantics unconditionally), so this package supplies Pointer, a renamed
// wrapper around sync/atomic.Pointer[T] whose method names document the
// ordering the algorithm relies on even though the runtime doesn't let the
// caller pick a weaker one. That's a deliberate, narrow use of the
// standard library where no third-party generic-atomic-pointer type
// appears anywhere in the example pack.
package atomic

import "sync/atomic"

// Pointer is a cache-friendly atomic pointer with ordering-annotated method
// names, used for every linked-structure head/tail/next field in this
// module (MCS/HMCS tails, queue heads and tails, hazard list nodes).
type Pointer[T any] struct {
	p atomic.Pointer[T]
}

// Load performs an acquire load (Go atomics are always acquire/release).
func (p *Pointer[T]) Load() *T { return p.p.Load() }

// Store performs a release store.
func (p *Pointer[T]) Store(v *T) { p.p.Store(v) }

// Swap performs an acq_rel atomic exchange, returning the previous value.
func (p *Pointer[T]) Swap(v *T) *T { return p.p.Swap(v) }

// CompareAndSwap performs an acq_rel CAS (acquire on failure).
func (p *Pointer[T]) CompareAndSwap(old, new *T) bool {
	return p.p.CompareAndSwap(old, new)
}
