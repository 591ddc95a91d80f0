package engine

import (
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-compiler/errors"
)

// Memory is read and write access to a linear memory. Multi-byte values
// are little endian.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
	Size() uint32
}

var _ Memory = (*WazeroMemory)(nil)

// WazeroMemory wraps wazero memory to implement Memory. It also reads the
// field representations records use: i32, i64, f32 and f64 values at
// their laid-out offsets.
type WazeroMemory struct {
	mem api.Memory
}

func outOfBounds(op string, offset, length uint32) error {
	return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
		Detail("%s out of bounds: offset=%d, length=%d", op, offset, length).
		Build()
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, outOfBounds("read", offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return outOfBounds("write", offset, uint32(len(data)))
	}
	return nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, outOfBounds("read", offset, 4)
	}
	return val, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, outOfBounds("read", offset, 8)
	}
	return val, nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return outOfBounds("write", offset, 4)
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return outOfBounds("write", offset, 8)
	}
	return nil
}

func (m *WazeroMemory) ReadI32(offset uint32) (int32, error) {
	v, err := m.ReadU32(offset)
	return int32(v), err
}

func (m *WazeroMemory) ReadI64(offset uint32) (int64, error) {
	v, err := m.ReadU64(offset)
	return int64(v), err
}

func (m *WazeroMemory) ReadF32(offset uint32) (float32, error) {
	v, err := m.ReadU32(offset)
	return math.Float32frombits(v), err
}

func (m *WazeroMemory) ReadF64(offset uint32) (float64, error) {
	v, err := m.ReadU64(offset)
	return math.Float64frombits(v), err
}

// Size returns the memory size in bytes.
func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}
