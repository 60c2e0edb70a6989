package guestmem

import (
	"math"

	widgetruntime "github.com/lumenshell/widget-runtime"
	"github.com/lumenshell/widget-runtime/errors"
)

// Buffer is a growable in-process stand-in for guest linear memory.
//
// The guest-side encoders (arena.Builder, surface.EncodeDescriptor) write
// into a Buffer exactly as they would write into linear memory from inside
// the sandbox, which lets the host-side decoders be exercised against real
// layouts without instantiating a module. Offset 0 is kept unused so that a
// zero pointer stays distinguishable from a valid one, matching the guest
// convention.
type Buffer struct {
	data []byte
}

// NewBuffer creates an empty Buffer with a reserved null page of one byte.
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 1, 256)}
}

// Alloc reserves size bytes and returns their offset.
func (b *Buffer) Alloc(size uint32) uint32 {
	offset := uint32(len(b.data))
	b.data = append(b.data, make([]byte, size)...)
	return offset
}

// Append writes data at the end of the buffer and returns its offset.
func (b *Buffer) Append(data []byte) uint32 {
	offset := uint32(len(b.data))
	b.data = append(b.data, data...)
	return offset
}

// View returns a read-only View over the current contents.
func (b *Buffer) View() View {
	return NewView(b.data)
}

// Bytes returns the raw backing slice.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Read implements widgetruntime.Memory.
func (b *Buffer) Read(offset uint32, length uint32) ([]byte, error) {
	return b.View().Bytes(offset, length)
}

// Write implements widgetruntime.Memory.
func (b *Buffer) Write(offset uint32, data []byte) error {
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(b.data)) || end > math.MaxUint32 {
		return errors.OutOfBounds(errors.PhaseEncode, nil, uint64(offset), uint64(len(data)), uint64(len(b.data)))
	}
	copy(b.data[offset:end], data)
	return nil
}

func (b *Buffer) ReadU8(offset uint32) (uint8, error)   { return b.View().U8(offset) }
func (b *Buffer) ReadU16(offset uint32) (uint16, error) { return b.View().U16LE(offset) }
func (b *Buffer) ReadU32(offset uint32) (uint32, error) { return b.View().U32LE(offset) }
func (b *Buffer) ReadU64(offset uint32) (uint64, error) { return b.View().U64LE(offset) }

func (b *Buffer) WriteU8(offset uint32, value uint8) error {
	return b.Write(offset, []byte{value})
}

func (b *Buffer) WriteU16(offset uint32, value uint16) error {
	return b.Write(offset, []byte{byte(value), byte(value >> 8)})
}

func (b *Buffer) WriteU32(offset uint32, value uint32) error {
	return b.Write(offset, []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)})
}

func (b *Buffer) WriteU64(offset uint32, value uint64) error {
	return b.Write(offset, []byte{
		byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24),
		byte(value >> 32), byte(value >> 40), byte(value >> 48), byte(value >> 56),
	})
}

// Size implements widgetruntime.MemorySizer.
func (b *Buffer) Size() uint32 {
	return uint32(len(b.data))
}

// PutU32LE writes a little-endian u32 into an already allocated region.
func (b *Buffer) PutU32LE(offset, value uint32) {
	_ = b.WriteU32(offset, value)
}

var _ widgetruntime.Memory = (*Buffer)(nil)
var _ widgetruntime.MemorySizer = (*Buffer)(nil)
