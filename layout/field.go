package layout

import (
	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/wasm"
)

// FieldType is the wire representation of a record field.
type FieldType uint8

const (
	I32 FieldType = iota
	I64
	F32
	F64
	Bool // stored as i32 0/1
	Ptr  // 32-bit linear memory address
)

// Size returns the field's size in bytes.
func (t FieldType) Size() uint32 {
	switch t {
	case I64, F64:
		return 8
	default:
		return 4
	}
}

// Align returns the field's alignment in bytes, equal to its size.
func (t FieldType) Align() uint32 {
	return t.Size()
}

// AlignLog2 returns log2 of Align, the form used by memarg immediates.
func (t FieldType) AlignLog2() uint32 {
	if t.Align() == 8 {
		return 3
	}
	return 2
}

// ValType returns the value type a load of this field produces.
func (t FieldType) ValType() wasm.ValType {
	switch t {
	case I64:
		return wasm.ValI64
	case F32:
		return wasm.ValF32
	case F64:
		return wasm.ValF64
	default:
		return wasm.ValI32
	}
}

// IsReference reports whether the field holds a pointer.
func (t FieldType) IsReference() bool {
	return t == Ptr
}

func (t FieldType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Bool:
		return "bool"
	case Ptr:
		return "ptr"
	default:
		return "unknown"
	}
}

// FromType maps a static type to its field representation. Void has none.
func FromType(t ast.Type) (FieldType, bool) {
	switch t.Kind {
	case ast.I32, ast.Enum:
		return I32, true
	case ast.I64:
		return I64, true
	case ast.F32:
		return F32, true
	case ast.F64:
		return F64, true
	case ast.Bool:
		return Bool, true
	case ast.Record, ast.String:
		return Ptr, true
	default:
		return 0, false
	}
}

// AlignTo rounds offset up to a multiple of align, which must be a power of two.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
