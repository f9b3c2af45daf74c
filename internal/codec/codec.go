// Package codec provides the fixed big-endian encoding of 32- and 64-bit
// unsigned integers used throughout the on-disk format (spec.md §4.2), plus
// thin positional read/write helpers over a [bio.Device].
//
// Any short read surfaces as [bio.ErrShortTransfer] to the caller, per
// spec.md's "short reads/writes are fatal" rule.
package codec

import (
	"encoding/binary"

	"github.com/calvinalkan/redbtree/pkg/bio"
)

// PutU32 encodes v as big-endian into buf[0:4].
func PutU32(buf []byte, v uint32) {
	binary.BigEndian.PutUint32(buf, v)
}

// U32 decodes a big-endian uint32 from buf[0:4].
func U32(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf)
}

// PutU64 encodes v as big-endian into buf[0:8].
func PutU64(buf []byte, v uint64) {
	binary.BigEndian.PutUint64(buf, v)
}

// U64 decodes a big-endian uint64 from buf[0:8].
func U64(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}

// ReadU32 reads a big-endian uint32 from dev at offset.
func ReadU32(dev bio.Device, offset uint64) (uint32, error) {
	var buf [4]byte
	if err := dev.ReadAt(buf[:], offset); err != nil {
		return 0, err
	}

	return U32(buf[:]), nil
}

// WriteU32 writes v as a big-endian uint32 to dev at offset.
func WriteU32(dev bio.Device, v uint32, offset uint64) error {
	var buf [4]byte
	PutU32(buf[:], v)

	return dev.WriteAt(buf[:], offset)
}

// ReadU64 reads a big-endian uint64 from dev at offset.
func ReadU64(dev bio.Device, offset uint64) (uint64, error) {
	var buf [8]byte
	if err := dev.ReadAt(buf[:], offset); err != nil {
		return 0, err
	}

	return U64(buf[:]), nil
}

// WriteU64 writes v as a big-endian uint64 to dev at offset.
func WriteU64(dev bio.Device, v uint64, offset uint64) error {
	var buf [8]byte
	PutU64(buf[:], v)

	return dev.WriteAt(buf[:], offset)
}
