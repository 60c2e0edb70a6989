// Package guestmem provides bounds-checked access to a guest module's
// linear memory.
//
// Every structured value that crosses the sandbox boundary is addressed by an
// untrusted integer offset. View is the single choke point through which the
// codecs dereference those offsets: each read is range-checked against the
// snapshot length before any byte is touched, multi-byte integers are
// assembled bytewise so alignment of the guest address is irrelevant, and a
// failed check never partially reads.
//
// Wire-protocol header fields are big-endian; raw repeated-record payloads
// use the guest's native byte order, which is little-endian for WebAssembly.
package guestmem

import (
	"math"

	"github.com/lumenshell/widget-runtime/errors"
)

// View is a read-only window over a snapshot of guest linear memory.
//
// The host takes a snapshot between guest calls, never concurrently with a
// call into the same guest, so a View needs no synchronization. The zero
// View is valid and empty.
type View struct {
	data []byte
}

// NewView wraps a byte snapshot of guest memory.
func NewView(data []byte) View {
	return View{data: data}
}

// Len returns the snapshot length in bytes.
func (v View) Len() uint64 {
	return uint64(len(v.data))
}

// Bytes returns size bytes starting at offset.
//
// It fails with an out_of_bounds error whenever offset is at or past the
// end of the snapshot, even for size zero; the range check is done in
// 64-bit arithmetic so offset+size cannot wrap.
func (v View) Bytes(offset, size uint32) ([]byte, error) {
	if uint64(offset) >= uint64(len(v.data)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, nil, uint64(offset), uint64(size), v.Len())
	}
	end := uint64(offset) + uint64(size)
	if end > uint64(len(v.data)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, nil, uint64(offset), uint64(size), v.Len())
	}
	return v.data[offset:end], nil
}

func (v View) U8(offset uint32) (uint8, error) {
	b, err := v.Bytes(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (v View) U16LE(offset uint32) (uint16, error) {
	b, err := v.Bytes(offset, 2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (v View) U32LE(offset uint32) (uint32, error) {
	b, err := v.Bytes(offset, 4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (v View) U64LE(offset uint32) (uint64, error) {
	b, err := v.Bytes(offset, 8)
	if err != nil {
		return 0, err
	}
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56, nil
}

func (v View) I32LE(offset uint32) (int32, error) {
	u, err := v.U32LE(offset)
	return int32(u), err
}

func (v View) F32LE(offset uint32) (float32, error) {
	u, err := v.U32LE(offset)
	return math.Float32frombits(u), err
}

func (v View) U16BE(offset uint32) (uint16, error) {
	b, err := v.Bytes(offset, 2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (v View) U32BE(offset uint32) (uint32, error) {
	b, err := v.Bytes(offset, 4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (v View) U64BE(offset uint32) (uint64, error) {
	b, err := v.Bytes(offset, 8)
	if err != nil {
		return 0, err
	}
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7]), nil
}

// Record returns the bytes of the index-th fixed-size record in a table
// starting at base. Index arithmetic is done in 64 bits so a hostile index
// cannot wrap the offset back into bounds.
func (v View) Record(base uint32, recordSize uint32, index uint32) ([]byte, error) {
	offset := uint64(base) + uint64(recordSize)*uint64(index)
	if offset > math.MaxUint32 {
		return nil, errors.OutOfBounds(errors.PhaseDecode, nil, offset, uint64(recordSize), v.Len())
	}
	return v.Bytes(uint32(offset), recordSize)
}
