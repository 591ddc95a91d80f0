package wasm

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wippyai/wasm-compiler/wasm/internal/binary"
)

// Instruction is a single WebAssembly instruction with its immediate.
type Instruction struct {
	Imm    any
	Opcode byte
}

// BlockImm holds the block type for block, loop and if.
type BlockImm struct {
	Type int32 // -64=void, -1=i32, -2=i64, -3=f32, -4=f64
}

// BranchImm holds the relative label depth for br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// CallImm holds the function index for call.
type CallImm struct {
	FuncIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm holds the memarg of loads and stores. Align is log2 of the
// byte alignment.
type MemoryImm struct {
	Offset uint64
	Align  uint32
	MemIdx uint32
}

// MemoryIdxImm holds the memory index for memory.size and memory.grow.
type MemoryIdxImm struct {
	MemIdx uint32
}

type I32Imm struct {
	Value int32
}

type I64Imm struct {
	Value int64
}

type F32Imm struct {
	Value float32
}

type F64Imm struct {
	Value float64
}

// IsBlockStart reports whether the instruction opens a structured frame.
func (i Instruction) IsBlockStart() bool {
	return i.Opcode == OpBlock || i.Opcode == OpLoop || i.Opcode == OpIf
}

// GetCallTarget returns the call target if this is a call instruction.
func (i Instruction) GetCallTarget() (uint32, bool) {
	if i.Opcode == OpCall {
		if imm, ok := i.Imm.(CallImm); ok {
			return imm.FuncIdx, true
		}
	}
	return 0, false
}

// String renders the instruction in text-format style, e.g. "br_if 1".
func (i Instruction) String() string {
	name := OpcodeName(i.Opcode)
	switch imm := i.Imm.(type) {
	case nil:
		return name
	case BlockImm:
		if imm.Type == BlockTypeVoid {
			return name
		}
		return fmt.Sprintf("%s (result %s)", name, ValType(byte(imm.Type&0x7F)))
	case BranchImm:
		return fmt.Sprintf("%s %d", name, imm.LabelIdx)
	case CallImm:
		return fmt.Sprintf("%s %d", name, imm.FuncIdx)
	case LocalImm:
		return fmt.Sprintf("%s %d", name, imm.LocalIdx)
	case GlobalImm:
		return fmt.Sprintf("%s %d", name, imm.GlobalIdx)
	case MemoryImm:
		return fmt.Sprintf("%s offset=%d align=%d", name, imm.Offset, uint32(1)<<imm.Align)
	case MemoryIdxImm:
		return name
	case I32Imm:
		return fmt.Sprintf("%s %d", name, imm.Value)
	case I64Imm:
		return fmt.Sprintf("%s %d", name, imm.Value)
	case F32Imm:
		return fmt.Sprintf("%s %g", name, imm.Value)
	case F64Imm:
		return fmt.Sprintf("%s %g", name, imm.Value)
	default:
		return fmt.Sprintf("%s <%T>", name, imm)
	}
}

// EncodeInstructions encodes a sequence of instructions to bytecode.
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter()
	for i := range instrs {
		encodeInstruction(w, &instrs[i])
	}
	return w.Bytes()
}

// EncodeInstructionTo appends one encoded instruction to buf.
func EncodeInstructionTo(buf *bytes.Buffer, instr *Instruction) {
	w := binary.NewWriter()
	encodeInstruction(w, instr)
	buf.Write(w.Bytes())
}

func encodeInstruction(w *binary.Writer, instr *Instruction) {
	w.Byte(instr.Opcode)
	switch imm := instr.Imm.(type) {
	case BlockImm:
		w.WriteS32(imm.Type)
	case BranchImm:
		w.WriteU32(imm.LabelIdx)
	case CallImm:
		w.WriteU32(imm.FuncIdx)
	case LocalImm:
		w.WriteU32(imm.LocalIdx)
	case GlobalImm:
		w.WriteU32(imm.GlobalIdx)
	case MemoryImm:
		if imm.MemIdx != 0 {
			// multi-memory form sets bit 6 of the alignment field
			w.WriteU32(imm.Align | 0x40)
			w.WriteU32(imm.MemIdx)
		} else {
			w.WriteU32(imm.Align)
		}
		w.WriteU64(imm.Offset)
	case MemoryIdxImm:
		w.WriteU32(imm.MemIdx)
	case I32Imm:
		w.WriteS32(imm.Value)
	case I64Imm:
		w.WriteS64(imm.Value)
	case F32Imm:
		w.WriteF32(imm.Value)
	case F64Imm:
		w.WriteF64(imm.Value)
	}
}

// DecodeInstructions decodes bytecode produced by EncodeInstructions. Only
// the opcodes listed in constants.go are understood.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(bytes.NewReader(code))
	instrs := make([]Instruction, 0, len(code)/2)

	for r.Position() < len(code) {
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		instr := Instruction{Opcode: op}

		switch op {
		case OpBlock, OpLoop, OpIf:
			bt, err := r.ReadS32()
			if err != nil {
				return nil, err
			}
			instr.Imm = BlockImm{Type: bt}
		case OpBr, OpBrIf:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = BranchImm{LabelIdx: idx}
		case OpCall:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = CallImm{FuncIdx: idx}
		case OpLocalGet, OpLocalSet, OpLocalTee:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = LocalImm{LocalIdx: idx}
		case OpGlobalGet, OpGlobalSet:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = GlobalImm{GlobalIdx: idx}
		case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
			OpI32Store, OpI64Store, OpF32Store, OpF64Store:
			imm, err := readMemArg(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = imm
		case OpMemorySize, OpMemoryGrow:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = MemoryIdxImm{MemIdx: idx}
		case OpI32Const:
			v, err := r.ReadS32()
			if err != nil {
				return nil, err
			}
			instr.Imm = I32Imm{Value: v}
		case OpI64Const:
			v, err := r.ReadS64()
			if err != nil {
				return nil, err
			}
			instr.Imm = I64Imm{Value: v}
		case OpF32Const:
			v, err := r.ReadF32()
			if err != nil {
				return nil, err
			}
			instr.Imm = F32Imm{Value: v}
		case OpF64Const:
			v, err := r.ReadF64()
			if err != nil {
				return nil, err
			}
			instr.Imm = F64Imm{Value: v}
		default:
			if _, ok := opcodeNames[op]; !ok {
				return nil, fmt.Errorf("unknown opcode 0x%02x at offset %d", op, r.Position()-1)
			}
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func readMemArg(r *binary.Reader) (MemoryImm, error) {
	align, err := r.ReadU32()
	if err != nil {
		return MemoryImm{}, err
	}
	var memIdx uint32
	if align&0x40 != 0 {
		align &^= 0x40
		memIdx, err = r.ReadU32()
		if err != nil {
			return MemoryImm{}, err
		}
	}
	offset, err := r.ReadU64()
	if err != nil {
		return MemoryImm{}, err
	}
	return MemoryImm{Offset: offset, Align: align, MemIdx: memIdx}, nil
}

// Disassemble renders instructions one per line, indented by nesting depth.
func Disassemble(instrs []Instruction) string {
	var sb strings.Builder
	depth := 0
	for _, instr := range instrs {
		if instr.Opcode == OpEnd || instr.Opcode == OpElse {
			depth--
		}
		if depth < 0 {
			depth = 0
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(instr.String())
		sb.WriteByte('\n')
		if instr.IsBlockStart() || instr.Opcode == OpElse {
			depth++
		}
	}
	return sb.String()
}
