package redbtree

import (
	"errors"
	"fmt"
	"os"

	"github.com/calvinalkan/redbtree/internal/alloc"
	"github.com/calvinalkan/redbtree/internal/barrier"
	"github.com/calvinalkan/redbtree/internal/btree"
	"github.com/calvinalkan/redbtree/internal/header"
	"github.com/calvinalkan/redbtree/internal/node"
	"github.com/calvinalkan/redbtree/pkg/bio"
)

// DB is an open handle to a single-file B-tree database. A DB is not safe
// for concurrent use by multiple goroutines; callers must serialize access
// externally, per spec.md §5.
type DB struct {
	dev     bio.Device
	barrier *barrier.Controller
	alloc   *alloc.Allocator
	engine  *btree.Engine
	closed  bool
}

// Open opens the database at path, or creates it if opts.Create is set and
// the file does not exist, per spec.md §4.6.
func Open(path string, opts Options) (*DB, error) {
	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		// fall through to load
	case errors.Is(statErr, os.ErrNotExist):
		if !opts.Create {
			return nil, fmt.Errorf("redbtree: open %q: %w", path, ErrNotExist)
		}
		if err := createFile(path); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("redbtree: stat %q: %w", path, statErr)
	}

	opener := bio.NewReal()

	dev, err := opener.Open(path, false)
	if err != nil {
		return nil, err
	}

	db, err := loadFrom(dev, opts)
	if err != nil {
		dev.Close()
		return nil, err
	}

	return db, nil
}

// loadFrom reads header metadata and every free-list chain from dev,
// verifying the format magic and that the bump cursors end within the file,
// and wires up the allocator, barrier, and B-tree engine.
func loadFrom(dev bio.Device, opts Options) (*DB, error) {
	if err := header.VerifyMagic(dev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	size, err := dev.Size()
	if err != nil {
		return nil, err
	}
	free, err := header.ReadFree(dev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	freeOff, err := header.ReadFreeOff(dev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if free+freeOff > size {
		return nil, fmt.Errorf("%w: header cursors end at %d, past file size %d", ErrCorrupt, free+freeOff, size)
	}

	ctrl := barrier.New(dev)
	ctrl.SetBarrier(opts.Barrier)

	a := alloc.New(dev, ctrl)
	if opts.PreallocIncrement != 0 {
		a.SetPreallocIncrement(opts.PreallocIncrement)
	}
	if err := a.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	rootPtr, err := header.ReadRootPtr(dev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	marks := node.NewMarkSource()
	engine := btree.New(dev, a, ctrl, marks, rootPtr)

	return &DB{dev: dev, barrier: ctrl, alloc: a, engine: engine}, nil
}

// Close releases the underlying file. It issues no flush of its own; with
// the barrier enabled, every operation has already flushed its writes.
func (db *DB) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true

	return db.dev.Close()
}

// SetBarrier enables or disables the write barrier, per spec.md §4.7.
func (db *DB) SetBarrier(on bool) {
	db.barrier.SetBarrier(on)
}

// Add inserts key with value. If key is already present, replace controls
// whether the existing value is overwritten ([ErrDuplicate] otherwise).
func (db *DB) Add(key Key, value []byte, replace bool) error {
	if db.closed {
		return ErrClosed
	}
	if uint64(len(value)) > uint64(MaxValueSize) {
		return ErrInvalid
	}

	if err := db.engine.Add(key, value, replace); err != nil {
		if errors.Is(err, alloc.ErrTooLarge) {
			return ErrInvalid
		}
		return err
	}

	return nil
}

// Find looks up key and returns the file offset of its value's payload
// bytes, or [ErrNotFound].
func (db *DB) Find(key Key) (uint64, error) {
	if db.closed {
		return 0, ErrClosed
	}

	return db.engine.Find(key)
}

// AllocSize returns the size, in bytes, of the value stored at offset (as
// returned by [DB.Find]).
func (db *DB) AllocSize(offset uint64) (uint32, error) {
	if db.closed {
		return 0, ErrClosed
	}

	return db.alloc.AllocSize(offset)
}

// Pread reads len(buf) bytes of a stored value starting at offset.
func (db *DB) Pread(buf []byte, offset uint64) error {
	if db.closed {
		return ErrClosed
	}

	return db.dev.ReadAt(buf, offset)
}

// Walk visits every key in the tree, depth first and in ascending order.
func (db *DB) Walk(visit func(key Key, valueOffset uint64, depth int) error) error {
	if db.closed {
		return ErrClosed
	}

	return db.engine.Walk(visit)
}

// AllocRaw reserves a slot for a value of size bytes directly through the
// allocator, without touching the tree. Exposed for the CLI's alloc
// micro-benchmark subcommands.
func (db *DB) AllocRaw(size uint32) (uint64, error) {
	if db.closed {
		return 0, ErrClosed
	}

	off, err := db.alloc.Alloc(size)
	if err != nil {
		return 0, err
	}

	return off, db.barrier.Flush()
}

// FreeRaw returns the allocation at ptr directly through the allocator.
// Exposed for the CLI's free micro-benchmark subcommands.
func (db *DB) FreeRaw(ptr uint64) error {
	if db.closed {
		return ErrClosed
	}

	return db.alloc.Free(ptr)
}
