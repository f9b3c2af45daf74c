// Package header defines the fixed on-disk layout of the database file's
// prefix: the magic/version tag, the bump-allocator cursors, the free-list
// block heads (one per size class), and the root node pointer. See
// spec.md §3 "Header (fixed offsets)".
//
// This package holds only layout constants and the byte-level encode/decode
// of the fixed-size prefix fields; it does not own the free-list chains
// themselves (that in-memory derived cache lives in package alloc) nor the
// root node image (package node).
package header

import (
	"bytes"
	"fmt"

	"github.com/calvinalkan/redbtree/internal/codec"
	"github.com/calvinalkan/redbtree/pkg/bio"
)

const (
	// MagicSize is the width in bytes of the format identifier.
	MagicSize = 16

	// Magic is the 16 ASCII byte sequence identifying this file format and
	// version, written at offset 0. "REDBTREE" plus an 8-byte version tag,
	// per spec.md §6.
	Magic = "REDBTREE00000000"

	// NumSizeClasses (C) is the count of power-of-two size classes the
	// allocator maintains, covering exponents MinSizeClassExp..MaxSizeClassExp.
	NumSizeClasses = 28

	// MinSizeClassExp is the smallest size-class exponent (2^4 = 16 bytes).
	MinSizeClassExp = 4

	// MaxSizeClassExp is the largest size-class exponent (2^31 = 2GiB).
	MaxSizeClassExp = MinSizeClassExp + NumSizeClasses - 1

	// FreeListBlockCapacity (K) is the number of freed-allocation pointers a
	// single free-list block holds.
	FreeListBlockCapacity = 252

	// FreeListBlockSize is the physical size in bytes of one free-list
	// block: prev(8) + next(8) + count(8) + K*8 entry pointers.
	FreeListBlockSize = 24 + 8*FreeListBlockCapacity

	// FreeListBlockSizeClassExp is the exponent of the size class that a
	// free-list block itself allocates into: next_pow2(FreeListBlockSize+8).
	// With K=252, FreeListBlockSize=2040, +8 prefix = 2048 = 2^11.
	FreeListBlockSizeClassExp = 11

	// offMagic, offFree, offFreeOff are the fixed-offset fields preceding
	// the free-list block heads.
	offMagic   = 0
	offFree    = 16
	offFreeOff = 24

	// FixedPrefixSize is the size of the magic+free+freeoff prefix, before
	// the free-list block heads begin.
	FixedPrefixSize = 32
)

// FreeListHeadOffset returns the file offset of size class index i's first
// (head) free-list block.
func FreeListHeadOffset(i int) uint64 {
	return FixedPrefixSize + uint64(i)*FreeListBlockSize
}

// RootPtrOffset is the file offset of the 8-byte root node pointer,
// immediately after the last free-list block head.
func RootPtrOffset() uint64 {
	return FixedPrefixSize + NumSizeClasses*FreeListBlockSize
}

// InitialBumpOffset is the file offset where the bump region begins at
// creation time, immediately after the root pointer slot. The very first
// allocation handed out by the bump allocator (the root node, at create
// time) starts here: its 8-byte length prefix occupies this offset, and its
// data begins at InitialBumpOffset()+8.
func InitialBumpOffset() uint64 {
	return RootPtrOffset() + 8
}

// WriteMagic writes the format identifier at offset 0.
func WriteMagic(dev bio.Device) error {
	return dev.WriteAt([]byte(Magic), offMagic)
}

// VerifyMagic reads the format identifier and reports whether it matches
// [Magic]. spec.md §9 flags that the reference implementation never
// verifies the magic on reopen; this is the fix called for there.
func VerifyMagic(dev bio.Device) error {
	buf := make([]byte, MagicSize)
	if err := dev.ReadAt(buf, offMagic); err != nil {
		return fmt.Errorf("header: read magic: %w", err)
	}

	if !bytes.Equal(buf, []byte(Magic)) {
		return fmt.Errorf("header: magic mismatch: got %q", buf)
	}

	return nil
}

// ReadFree reads the bump-region's remaining byte count.
func ReadFree(dev bio.Device) (uint64, error) {
	return codec.ReadU64(dev, offFree)
}

// WriteFree writes the bump-region's remaining byte count.
func WriteFree(dev bio.Device, v uint64) error {
	return codec.WriteU64(dev, v, offFree)
}

// ReadFreeOff reads the bump-region's start offset.
func ReadFreeOff(dev bio.Device) (uint64, error) {
	return codec.ReadU64(dev, offFreeOff)
}

// WriteFreeOff writes the bump-region's start offset.
func WriteFreeOff(dev bio.Device, v uint64) error {
	return codec.WriteU64(dev, v, offFreeOff)
}

// ReadRootPtr reads the current root node offset.
func ReadRootPtr(dev bio.Device) (uint64, error) {
	return codec.ReadU64(dev, RootPtrOffset())
}

// WriteRootPtr writes the current root node offset.
func WriteRootPtr(dev bio.Device, v uint64) error {
	return codec.WriteU64(dev, v, RootPtrOffset())
}
