package redbtree

import "github.com/calvinalkan/redbtree/internal/alloc"

// Options configures Open. The zero value is not valid; use DefaultOptions
// and override individual fields.
type Options struct {
	// Create, when true, creates the database file if it does not exist.
	Create bool

	// Barrier controls whether Open starts with the write barrier enabled.
	// Disabling it forfeits crash consistency in exchange for throughput;
	// see §4.7.
	Barrier bool

	// PreallocIncrement is how many bytes the bump allocator grows the
	// file by when its free region runs dry.
	PreallocIncrement uint64
}

// DefaultOptions returns the recommended configuration: barrier enabled,
// file not created if missing, default preallocation increment. Open does
// not substitute it for a zero Options, which runs with the barrier
// disabled.
func DefaultOptions() Options {
	return Options{
		Create:            false,
		Barrier:           true,
		PreallocIncrement: alloc.DefaultPreallocIncrement,
	}
}
