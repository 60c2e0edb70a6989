package engine

import (
	"github.com/tetratelabs/wazero/api"

	widgetruntime "github.com/lumenshell/widget-runtime"
	"github.com/lumenshell/widget-runtime/errors"
)

// Memory wraps wazero memory to implement widgetruntime.Memory
type Memory struct {
	mem api.Memory
}

func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDecode, nil,
			uint64(offset), uint64(length), uint64(m.mem.Size()))
	}
	return data, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if ok := m.mem.Write(offset, data); !ok {
		return errors.OutOfBounds(errors.PhaseEncode, nil,
			uint64(offset), uint64(len(data)), uint64(m.mem.Size()))
	}
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	data, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	data, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return uint16(data[0]) | uint16(data[1])<<8, nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseDecode, nil,
			uint64(offset), 4, uint64(m.mem.Size()))
	}
	return val, nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseDecode, nil,
			uint64(offset), 8, uint64(m.mem.Size()))
	}
	return val, nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	return m.Write(offset, []byte{byte(value), byte(value >> 8)})
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if ok := m.mem.WriteUint32Le(offset, value); !ok {
		return errors.OutOfBounds(errors.PhaseEncode, nil,
			uint64(offset), 4, uint64(m.mem.Size()))
	}
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if ok := m.mem.WriteUint64Le(offset, value); !ok {
		return errors.OutOfBounds(errors.PhaseEncode, nil,
			uint64(offset), 8, uint64(m.mem.Size()))
	}
	return nil
}

func (m *Memory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// bytes returns the whole linear memory for snapshotting into a
// guestmem.View. wazero hands back the live backing slice, which stays
// valid until the next call into the guest.
func (m *Memory) bytes() []byte {
	data, ok := m.mem.Read(0, m.mem.Size())
	if !ok {
		return nil
	}
	return data
}

// Compile-time check that Memory implements widgetruntime.Memory and MemorySizer
var _ widgetruntime.Memory = (*Memory)(nil)
var _ widgetruntime.MemorySizer = (*Memory)(nil)
