// Package node implements the fixed-size B-tree node image described in
// spec.md §4.5: a start mark, key count, leaf flag, up to MaxKeys fixed-width
// keys, MaxKeys value pointers, MaxKeys+1 child pointers, and a trailing end
// mark that must equal the start mark for the node to be considered intact.
//
// Grounded on original_source/btree.h's struct btree_node and
// original_source/btree.c's btree_write_node/btree_read_node.
package node

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/calvinalkan/redbtree/internal/codec"
	"github.com/calvinalkan/redbtree/pkg/bio"
)

const (
	// MaxKeys is the maximum number of keys a single node holds before it
	// must be split.
	MaxKeys = 7

	// MinKeys is the minimum number of keys a non-root node must retain:
	// a split leaves (MaxKeys-1)/2 keys in each half. The tree never
	// deletes keys, so MinKeys exists only as a documented invariant
	// inherited from the reference design, not an enforced one.
	MinKeys = 3

	// KeyLen is the fixed width, in bytes, of every key. Callers are
	// expected to pass pre-hashed or otherwise fixed-width keys.
	KeyLen = 16

	// Size is the on-disk width of one node image:
	// startmark(4) + numkeys(4) + isleaf(4) + reserved(4) +
	// MaxKeys*KeyLen keys + (MaxKeys*2+1)*8 pointers + endmark(4).
	Size = 4*4 + MaxKeys*KeyLen + (MaxKeys*2+1)*8 + 4
)

// ErrCorrupt indicates a node image's start and end marks disagree.
var ErrCorrupt = errors.New("node: corrupt image")

// Key is a fixed-width, already-ordered key.
type Key [KeyLen]byte

// Node is the in-memory representation of one B-tree node.
type Node struct {
	NumKeys  uint32
	IsLeaf   bool
	Keys     [MaxKeys]Key
	Values   [MaxKeys]uint64
	Children [MaxKeys + 1]uint64
}

// Full reports whether n has reached MaxKeys and must be split before
// another key can be inserted into it.
func (n *Node) Full() bool {
	return n.NumKeys == MaxKeys
}

// field offsets within a node image, relative to its own start.
const (
	keysOffset     = 16
	valuesOffset   = keysOffset + MaxKeys*KeyLen
	childrenOffset = valuesOffset + MaxKeys*8
)

// ValueFieldOffset returns the absolute file offset of the i-th value
// pointer inside the node image located at nodePtr. Overwriting this single
// field in place is the one mutation spec.md permits on an otherwise
// immutable node image: replacing an existing key's value pointer.
func ValueFieldOffset(nodePtr uint64, i int) uint64 {
	return nodePtr + valuesOffset + 8*uint64(i)
}

// ChildFieldOffset returns the absolute file offset of the i-th child
// pointer inside the node image located at nodePtr.
func ChildFieldOffset(nodePtr uint64, i int) uint64 {
	return nodePtr + childrenOffset + 8*uint64(i)
}

// InsertKeyAt inserts key/valOff at position i in n, shifting existing keys
// and values at or after i one slot to the right. Children are left
// untouched: this is only ever called against leaf nodes.
func InsertKeyAt(n *Node, i int, key Key, valOff uint64) {
	nk := int(n.NumKeys)

	copy(n.Keys[i+1:nk+1], n.Keys[i:nk])
	copy(n.Values[i+1:nk+1], n.Values[i:nk])

	n.Keys[i] = key
	n.Values[i] = valOff
	n.NumKeys++
}

// MarkSource hands out the incrementing start/end mark values used to
// detect torn node writes. A single source is shared by every node write
// through one open database handle, so marks are unique within that handle
// (barring wraparound); each Open seeds a new source. The corruption check
// tolerates repeats: it only compares a node's own start and end mark
// against each other, never against a global expectation.
type MarkSource struct {
	mu   sync.Mutex
	next uint32
}

// NewMarkSource seeds a MarkSource from the current time mixed with
// crypto/rand, so two freshly created databases don't start at the same
// mark value.
func NewMarkSource() *MarkSource {
	var seed uint32

	var rb [4]byte
	if _, err := rand.Read(rb[:]); err == nil {
		seed = binary.BigEndian.Uint32(rb[:])
	}

	seed ^= uint32(time.Now().UnixNano())

	return &MarkSource{next: seed}
}

// Next returns the next mark value.
func (s *MarkSource) Next() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	return s.next
}

// Encode serializes n into a Size-byte image, bracketed by mark at both
// the first and last 4 bytes.
func Encode(n *Node, mark uint32) []byte {
	buf := make([]byte, Size)
	p := 0

	codec.PutU32(buf[p:], mark)
	p += 4
	codec.PutU32(buf[p:], n.NumKeys)
	p += 4
	if n.IsLeaf {
		codec.PutU32(buf[p:], 1)
	} else {
		codec.PutU32(buf[p:], 0)
	}
	p += 4
	p += 4 // reserved, always zero

	for i := 0; i < MaxKeys; i++ {
		copy(buf[p:], n.Keys[i][:])
		p += KeyLen
	}

	for i := 0; i < MaxKeys; i++ {
		codec.PutU64(buf[p:], n.Values[i])
		p += 8
	}

	for i := 0; i <= MaxKeys; i++ {
		codec.PutU64(buf[p:], n.Children[i])
		p += 8
	}

	codec.PutU32(buf[p:], mark)

	return buf
}

// Decode parses a Size-byte node image, returning [ErrCorrupt] if the start
// and end marks disagree.
func Decode(buf []byte) (*Node, error) {
	if len(buf) != Size {
		return nil, fmt.Errorf("node: image is %d bytes, want %d", len(buf), Size)
	}

	startMark := codec.U32(buf[0:4])
	endMark := codec.U32(buf[Size-4 : Size])
	if startMark != endMark {
		return nil, ErrCorrupt
	}

	n := &Node{}
	p := 4

	n.NumKeys = codec.U32(buf[p:])
	p += 4
	n.IsLeaf = codec.U32(buf[p:]) != 0
	p += 4
	p += 4 // reserved

	for i := 0; i < MaxKeys; i++ {
		copy(n.Keys[i][:], buf[p:p+KeyLen])
		p += KeyLen
	}

	for i := 0; i < MaxKeys; i++ {
		n.Values[i] = codec.U64(buf[p:])
		p += 8
	}

	for i := 0; i <= MaxKeys; i++ {
		n.Children[i] = codec.U64(buf[p:])
		p += 8
	}

	return n, nil
}

// Write encodes n with the next mark from marks and writes it to dev at
// offset.
func Write(dev bio.Device, marks *MarkSource, n *Node, offset uint64) error {
	buf := Encode(n, marks.Next())
	return dev.WriteAt(buf, offset)
}

// Read reads and decodes the node image at offset.
func Read(dev bio.Device, offset uint64) (*Node, error) {
	buf := make([]byte, Size)
	if err := dev.ReadAt(buf, offset); err != nil {
		return nil, err
	}

	return Decode(buf)
}
