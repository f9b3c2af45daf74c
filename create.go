package redbtree

import (
	"bytes"
	"fmt"

	"github.com/natefinch/atomic"

	"github.com/calvinalkan/redbtree/internal/codec"
	"github.com/calvinalkan/redbtree/internal/header"
	"github.com/calvinalkan/redbtree/internal/node"
)

// buildInitialImage constructs the exact byte image of a freshly created,
// empty database: magic, free=0/freeoff=end-of-file cursors, C zeroed
// free-list heads, the root pointer, and one empty leaf root node. See
// spec.md §4.6.
//
// The root node is handed an ordinary bump allocation, length prefix
// included, exactly as [alloc.Allocator.Alloc] would produce it — it must
// be freeable like any other node once the first Add replaces it. Baking it
// directly into the header's reserved root-pointer slot (with no prefix)
// would make the first Free read garbage out of the root-pointer field
// itself; see original_source/btree.c's btree_open, which allocates the
// root through the normal allocator path for the same reason.
func buildInitialImage() ([]byte, uint32, error) {
	var buf bytes.Buffer

	buf.WriteString(header.Magic)

	rootPrefixOff := header.InitialBumpOffset()
	rootValueOff := rootPrefixOff + 8

	// The root's slot spans its whole size class, as Alloc would reserve it.
	rootSlot := uint64(1) << header.MinSizeClassExp
	for rootSlot < 8+uint64(node.Size) {
		rootSlot <<= 1
	}
	total := rootPrefixOff + rootSlot

	var cursor [8]byte
	codec.PutU64(cursor[:], 0) // free
	buf.Write(cursor[:])
	codec.PutU64(cursor[:], total) // freeoff: no slack, matches spec.md §4.6
	buf.Write(cursor[:])

	zeroBlock := make([]byte, header.FreeListBlockSize)
	for i := 0; i < header.NumSizeClasses; i++ {
		buf.Write(zeroBlock)
	}

	var rootPtr [8]byte
	codec.PutU64(rootPtr[:], rootValueOff)
	buf.Write(rootPtr[:])

	var prefix [8]byte
	codec.PutU64(prefix[:], uint64(node.Size)) // length prefix, as Alloc would write
	buf.Write(prefix[:])

	mark := node.NewMarkSource().Next()
	buf.Write(node.Encode(&node.Node{IsLeaf: true}, mark))
	buf.Write(make([]byte, rootSlot-8-uint64(node.Size)))

	if uint64(buf.Len()) != total {
		return nil, 0, fmt.Errorf("redbtree: internal error: built image is %d bytes, want %d", buf.Len(), total)
	}

	return buf.Bytes(), mark, nil
}

// createFile atomically writes a fresh, empty database image to path. The
// caller is responsible for having verified the path does not already
// exist; atomic.WriteFile itself will happily overwrite, so the existence
// check is this package's responsibility, not the filesystem's.
func createFile(path string) error {
	image, _, err := buildInitialImage()
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, bytes.NewReader(image)); err != nil {
		return fmt.Errorf("redbtree: create %q: %w", path, err)
	}

	return nil
}
