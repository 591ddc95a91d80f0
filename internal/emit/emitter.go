// Package emit provides a chaining instruction builder shared by the
// allocator and the code generator.
package emit

import "github.com/wippyai/wasm-compiler/wasm"

// Block types for Block, Loop and If.
const (
	BlockVoid = wasm.BlockTypeVoid
	BlockI32  = wasm.BlockTypeI32
	BlockI64  = wasm.BlockTypeI64
	BlockF32  = wasm.BlockTypeF32
	BlockF64  = wasm.BlockTypeF64
)

// Emitter accumulates instructions. Every method returns the receiver so
// sequences read in stack order.
type Emitter struct {
	instrs []wasm.Instruction
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// Instrs returns the emitted instructions. The slice is shared with the
// emitter; use Copy for an independent one.
func (e *Emitter) Instrs() []wasm.Instruction {
	return e.instrs
}

// Copy returns a snapshot of the emitted instructions.
func (e *Emitter) Copy() []wasm.Instruction {
	return append([]wasm.Instruction(nil), e.instrs...)
}

// Bytes encodes the emitted instructions.
func (e *Emitter) Bytes() []byte {
	return wasm.EncodeInstructions(e.instrs)
}

func (e *Emitter) Len() int {
	return len(e.instrs)
}

func (e *Emitter) Reset() {
	e.instrs = e.instrs[:0]
}

// Last returns the most recently emitted instruction.
func (e *Emitter) Last() (wasm.Instruction, bool) {
	if len(e.instrs) == 0 {
		return wasm.Instruction{}, false
	}
	return e.instrs[len(e.instrs)-1], true
}

func (e *Emitter) EmitInstr(instr wasm.Instruction) *Emitter {
	e.instrs = append(e.instrs, instr)
	return e
}

func (e *Emitter) EmitInstrs(instrs []wasm.Instruction) *Emitter {
	e.instrs = append(e.instrs, instrs...)
	return e
}

// Op emits an instruction without immediates.
func (e *Emitter) Op(op byte) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: op})
}

// Control flow

func (e *Emitter) Block(bt int32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: bt}})
}

func (e *Emitter) Loop(bt int32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: bt}})
}

func (e *Emitter) If(bt int32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: bt}})
}

func (e *Emitter) Else() *Emitter        { return e.Op(wasm.OpElse) }
func (e *Emitter) End() *Emitter         { return e.Op(wasm.OpEnd) }
func (e *Emitter) Return() *Emitter      { return e.Op(wasm.OpReturn) }
func (e *Emitter) Unreachable() *Emitter { return e.Op(wasm.OpUnreachable) }
func (e *Emitter) Drop() *Emitter        { return e.Op(wasm.OpDrop) }
func (e *Emitter) Nop() *Emitter         { return e.Op(wasm.OpNop) }

func (e *Emitter) Br(depth uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: depth}})
}

func (e *Emitter) BrIf(depth uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: depth}})
}

func (e *Emitter) Call(funcIdx uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: funcIdx}})
}

// Variables

func (e *Emitter) LocalGet(idx uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: idx}})
}

func (e *Emitter) LocalSet(idx uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: idx}})
}

func (e *Emitter) LocalTee(idx uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpLocalTee, Imm: wasm.LocalImm{LocalIdx: idx}})
}

func (e *Emitter) GlobalGet(idx uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpGlobalGet, Imm: wasm.GlobalImm{GlobalIdx: idx}})
}

func (e *Emitter) GlobalSet(idx uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpGlobalSet, Imm: wasm.GlobalImm{GlobalIdx: idx}})
}

// Constants

func (e *Emitter) I32Const(v int32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}})
}

func (e *Emitter) I64Const(v int64) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: v}})
}

func (e *Emitter) F32Const(v float32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpF32Const, Imm: wasm.F32Imm{Value: v}})
}

func (e *Emitter) F64Const(v float64) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpF64Const, Imm: wasm.F64Imm{Value: v}})
}

// Memory

// Load emits a load with log2 alignment align at a static offset.
func (e *Emitter) Load(op byte, align uint32, offset uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: op, Imm: wasm.MemoryImm{Align: align, Offset: uint64(offset)}})
}

// Store emits a store with log2 alignment align at a static offset.
func (e *Emitter) Store(op byte, align uint32, offset uint32) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: op, Imm: wasm.MemoryImm{Align: align, Offset: uint64(offset)}})
}

func (e *Emitter) MemorySize() *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpMemorySize, Imm: wasm.MemoryIdxImm{}})
}

func (e *Emitter) MemoryGrow() *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: wasm.OpMemoryGrow, Imm: wasm.MemoryIdxImm{}})
}
