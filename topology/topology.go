// Package topology is the external collaborator the core synchronization
// primitives consume: an immutable description of a NUMA machine as a tree
// of participant counts per level, plus a thread-to-group lookup (GroupOf).
// It does not bind or pin threads. The core never
// probes hardware itself (no cpuid, no /sys/devices/system walking, no
// thread pinning) — it only ever sees a Topology value and a numeric thread
// identifier in [0, P). Discovering real hardware topology and pinning
// goroutines to OS threads is left to callers (e.g. via golang.org/x/sys
// affinity calls, or a vendor hwloc binding); this package supplies the
// shape those callers must produce, plus trivial constructors for tests:
// Flat (a single level) and Uniform (a regular multi-level tree).
package topology

import (
	"fmt"

	"github.com/ahrav/numalocks/internal/zerr"
)

// Topology describes a fixed NUMA hierarchy as participant counts per
// level, ascending from the level nearest the threads (level 0) to the
// outermost shared level. ParticipantsPerLevel[i] is the number of threads
// that share one hierarchy node at level i; it is always a divisor of
// Threads and is strictly increasing as i grows, terminating at Threads itself
// at the top level.
//
// Example: 64 threads, 8 per socket, 2 sockets -> ParticipantsPerLevel =
// [8, 64] (two levels: per-socket groups of 8, then the single root
// spanning all 64).
type Topology struct {
	Threads              int
	ParticipantsPerLevel []int
}

// Validate checks the structural invariants HMCS construction depends on.
func (t Topology) Validate() error {
	if t.Threads <= 0 {
		return fmt.Errorf("%w: threads must be positive, got %d", zerr.ErrInvalidTopology, t.Threads)
	}
	if len(t.ParticipantsPerLevel) == 0 {
		return fmt.Errorf("%w: no levels", zerr.ErrInvalidTopology)
	}
	prev := 0
	for i, p := range t.ParticipantsPerLevel {
		if p <= 0 || t.Threads%p != 0 {
			return fmt.Errorf("%w: level %d participant count %d must evenly divide %d threads", zerr.ErrInvalidTopology, i, p, t.Threads)
		}
		if p <= prev {
			return fmt.Errorf("%w: level %d participant count %d must exceed level %d count %d", zerr.ErrInvalidTopology, i, p, i-1, prev)
		}
		prev = p
	}
	if t.ParticipantsPerLevel[len(t.ParticipantsPerLevel)-1] != t.Threads {
		return fmt.Errorf("%w: top level must span all %d threads, got %d", zerr.ErrInvalidTopology, t.Threads, t.ParticipantsPerLevel[len(t.ParticipantsPerLevel)-1])
	}
	return nil
}

// Levels returns the number of hierarchy levels.
func (t Topology) Levels() int { return len(t.ParticipantsPerLevel) }

// GroupOf returns the group index thread tid belongs to at level, i.e.
// tid/ParticipantsPerLevel[level].
func (t Topology) GroupOf(level, tid int) int {
	return tid / t.ParticipantsPerLevel[level]
}

// Flat returns a single-level topology: every thread shares one global
// lock, equivalent to a plain MCS/ticket lock with no hierarchy. Useful as
// the trivial HMCS instantiation and in tests that don't care about NUMA
// shape.
func Flat(threads int) Topology {
	return Topology{Threads: threads, ParticipantsPerLevel: []int{threads}}
}

// Uniform builds a topology with `levels` levels where each level groups
// `branchingFactor` times as many threads as the level below it, the last
// level always spanning all threads. It is a convenient stand-in for a
// real hwloc-derived tree in tests and benchmarks.
func Uniform(threads, branchingFactor, levels int) (Topology, error) {
	if levels < 1 || branchingFactor < 2 {
		return Topology{}, fmt.Errorf("%w: levels and branchingFactor must be >= 1 and >= 2", zerr.ErrInvalidTopology)
	}
	counts := make([]int, levels)
	group := branchingFactor
	for i := 0; i < levels-1; i++ {
		counts[i] = group
		group *= branchingFactor
	}
	counts[levels-1] = threads
	top := Topology{Threads: threads, ParticipantsPerLevel: counts}
	if err := top.Validate(); err != nil {
		return Topology{}, err
	}
	return top, nil
}
