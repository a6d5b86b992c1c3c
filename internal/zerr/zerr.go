// Package zerr centralizes the failure taxonomy shared by every primitive's
// init/destroy path. Acquire and release never fail in steady state; only
// construction and teardown report errors, and they do so through these
// sentinel values so callers can compare with errors.Is.
package zerr

import "errors"

// ErrAllocFail indicates a constructor could not obtain backing memory.
var ErrAllocFail = errors.New("numalocks: allocation failed")

// ErrInvalidTopology indicates a Topology tree failed validation (empty
// levels, non-ascending participant counts, zero thread count).
var ErrInvalidTopology = errors.New("numalocks: invalid topology")

// ErrBucketCountInvalid indicates a bucketed queue was asked for a bucket
// count that isn't a positive multiple of the native word size in bytes.
var ErrBucketCountInvalid = errors.New("numalocks: bucket count must be a positive multiple of the machine word size")
