// Package bio provides the block-I/O port that every other redbtree
// component is parameterized on: a positional, synchronous, single-file
// byte-addressable resource with resize, size query, and a durability
// barrier.
//
// All higher layers (the slab allocator, the node codec, the B-tree engine)
// talk to storage exclusively through [Device]; they never touch *os.File
// or any other concrete resource directly. This mirrors the way
// pkg/fs.FS decouples the rest of the teacher codebase from the os package.
package bio

import "errors"

// ErrShortTransfer indicates a pread/pwrite moved fewer bytes than requested.
//
// The reference implementation treats short reads and writes as fatal I/O
// failures rather than retrying; redbtree adopts that rule explicitly.
var ErrShortTransfer = errors.New("bio: short transfer")

// Device is a single open, growable, byte-addressable resource reached only
// through positional reads and writes.
//
// Implementations must be safe to use from a single goroutine at a time;
// redbtree never issues concurrent operations against one Device (see
// spec.md §5).
type Device interface {
	// ReadAt reads len(buf) bytes starting at offset.
	//
	// A short read is reported as [ErrShortTransfer].
	ReadAt(buf []byte, offset uint64) error

	// WriteAt writes all of buf starting at offset.
	//
	// A short write is reported as [ErrShortTransfer].
	WriteAt(buf []byte, offset uint64) error

	// Resize grows or shrinks the underlying resource to exactly length bytes.
	Resize(length uint64) error

	// Size reports the current length of the underlying resource.
	Size() (uint64, error)

	// Flush is the durability barrier: it forces all prior writes to this
	// Device to reach stable storage before returning.
	Flush() error

	// Close releases the Device. After Close, the other methods of a [Real]
	// device fail; [Memory.Close] is a no-op.
	Close() error
}

// Opener creates or opens the single file a [Device] is backed by.
type Opener interface {
	// Open opens path. If create is true and the file does not exist, it is
	// created empty (size 0); the caller is then responsible for laying out
	// an initial valid image before use.
	Open(path string, create bool) (Device, error)
}
