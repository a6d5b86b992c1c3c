// Package cacheline supplies padding helpers used throughout numalocks to
// keep hot atomic fields on separate cache lines, preventing false sharing
// between a lock holder's status word and a neighbor's.
package cacheline

// Size is the assumed cache line size for padding purposes. Most x86_64 and
// arm64 parts use 64 bytes; over-padding on smaller-line machines costs
// memory, not correctness.
const Size = 64

// Pad is an opaque filler field. Embed it between hot fields of a struct
// that are written by different goroutines to avoid false sharing, e.g.:
//
//	type Node struct {
//	    next atomic.Pointer[Node]
//	    _    cacheline.Pad
//	    status atomix.Uint64
//	}
type Pad [Size]byte
