// Package redbtree implements a single-file, copy-on-write B-tree keyed by
// fixed-width binary keys, backed by a segregated-fit slab allocator. See
// SPEC_FULL.md for the full component design.
package redbtree

import (
	"errors"

	"github.com/calvinalkan/redbtree/internal/alloc"
	"github.com/calvinalkan/redbtree/internal/btree"
	"github.com/calvinalkan/redbtree/internal/node"
)

// Sentinel errors returned by this package's operations, matching the
// error kinds in spec.md §7. Callers should use [errors.Is] against these.
var (
	// ErrNotFound indicates Find did not locate the requested key.
	ErrNotFound = btree.ErrNotFound

	// ErrDuplicate indicates Add was called with replace=false against a
	// key already present in the tree.
	ErrDuplicate = btree.ErrDuplicate

	// ErrCorrupt indicates a node's start/end marks disagree, the file's
	// magic does not match, or its header cursors are inconsistent with
	// the file's actual size.
	ErrCorrupt = node.ErrCorrupt

	// ErrInvalid indicates a caller-supplied value exceeds
	// [alloc.MaxUserSize]. Keys are fixed-width [Key] arrays, so no key is
	// rejected for its size.
	ErrInvalid = errors.New("redbtree: invalid argument")

	// ErrOOM indicates a host resize or in-memory allocation failed.
	ErrOOM = alloc.ErrOOM

	// ErrClosed indicates an operation was attempted against a [DB] that
	// has already been closed.
	ErrClosed = errors.New("redbtree: database is closed")

	// ErrExist reports that a database file already exists at a path. Open
	// does not return it: with Create set, Open loads an existing file.
	ErrExist = errors.New("redbtree: file already exists")

	// ErrNotExist indicates Open was called without Create set against a
	// path that does not exist.
	ErrNotExist = errors.New("redbtree: file does not exist")
)

// KeySize is the fixed width, in bytes, of every key.
const KeySize = node.KeyLen

// Key is a fixed-width key. Callers are responsible for hashing or
// otherwise reducing variable-length identifiers to this width before
// calling Add or Find.
type Key = node.Key

// MaxValueSize is the largest value this database will store.
const MaxValueSize = alloc.MaxUserSize
