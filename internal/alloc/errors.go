package alloc

import "errors"

// Sentinel errors returned by the slab allocator. Callers should use
// [errors.Is] to test for them.
var (
	// ErrTooLarge indicates a requested allocation exceeds [MaxUserSize]
	// (2^31-8 bytes).
	ErrTooLarge = errors.New("alloc: too large")

	// ErrOOM indicates a host or file resize failure prevented completing
	// an allocation.
	ErrOOM = errors.New("alloc: out of memory")

	// ErrCorrupt indicates the allocator's on-disk free-list state is
	// inconsistent with its in-memory cache (e.g. an empty chain with a
	// nonzero cached count).
	ErrCorrupt = errors.New("alloc: corrupt")
)
