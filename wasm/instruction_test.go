package wasm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wippyai/wasm-compiler/wasm"
)

func TestEncodeInstructionBytes(t *testing.T) {
	tests := []struct {
		name  string
		instr wasm.Instruction
		want  []byte
	}{
		{"unreachable", wasm.Instruction{Opcode: wasm.OpUnreachable}, []byte{0x00}},
		{"void block", wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}}, []byte{0x02, 0x40}},
		{"i64 if", wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: wasm.BlockTypeI64}}, []byte{0x04, 0x7E}},
		{"br_if 1", wasm.Instruction{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: 1}}, []byte{0x0D, 0x01}},
		{"call 200", wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 200}}, []byte{0x10, 0xC8, 0x01}},
		{"i32.const -1", wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: -1}}, []byte{0x41, 0x7F}},
		{"i64.const 64", wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: 64}}, []byte{0x42, 0xC0, 0x00}},
		{"i64.load", wasm.Instruction{Opcode: wasm.OpI64Load, Imm: wasm.MemoryImm{Offset: 16, Align: 3}}, []byte{0x29, 0x03, 0x10}},
		{"memory.grow", wasm.Instruction{Opcode: wasm.OpMemoryGrow, Imm: wasm.MemoryIdxImm{}}, []byte{0x40, 0x00}},
		{"f64.const 1", wasm.Instruction{Opcode: wasm.OpF64Const, Imm: wasm.F64Imm{Value: 1}}, []byte{0x44, 0, 0, 0, 0, 0, 0, 0xF0, 0x3F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wasm.EncodeInstructions([]wasm.Instruction{tt.instr})
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encoded %x, want %x", got, tt.want)
			}
			var buf bytes.Buffer
			wasm.EncodeInstructionTo(&buf, &tt.instr)
			if !bytes.Equal(buf.Bytes(), tt.want) {
				t.Errorf("EncodeInstructionTo %x, want %x", buf.Bytes(), tt.want)
			}
		})
	}
}

func TestDecodeInstructionsRoundTrip(t *testing.T) {
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 3}},
		{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: -5}},
		{Opcode: wasm.OpI64LtS},
		{Opcode: wasm.OpI32Eqz},
		{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: 1}},
		{Opcode: wasm.OpGlobalGet, Imm: wasm.GlobalImm{GlobalIdx: 0}},
		{Opcode: wasm.OpF32Const, Imm: wasm.F32Imm{Value: 2.5}},
		{Opcode: wasm.OpDrop},
		{Opcode: wasm.OpI32Store, Imm: wasm.MemoryImm{Offset: 4, Align: 2}},
		{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: 0}},
		{Opcode: wasm.OpEnd},
		{Opcode: wasm.OpEnd},
	}

	decoded, err := wasm.DecodeInstructions(wasm.EncodeInstructions(instrs))
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	if len(decoded) != len(instrs) {
		t.Fatalf("decoded %d instructions, want %d", len(decoded), len(instrs))
	}
	for i := range instrs {
		if decoded[i].Opcode != instrs[i].Opcode || decoded[i].Imm != instrs[i].Imm {
			t.Errorf("instruction %d: got %v, want %v", i, decoded[i], instrs[i])
		}
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	if _, err := wasm.DecodeInstructions([]byte{0xFD, 0x00}); err == nil {
		t.Error("expected error for unknown opcode")
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		instr wasm.Instruction
		want  string
	}{
		{wasm.Instruction{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: 2}}, "br 2"},
		{wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: wasm.BlockTypeI64}}, "if (result i64)"},
		{wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}}, "block"},
		{wasm.Instruction{Opcode: wasm.OpI64Load, Imm: wasm.MemoryImm{Offset: 8, Align: 3}}, "i64.load offset=8 align=8"},
		{wasm.Instruction{Opcode: wasm.OpI32Add}, "i32.add"},
	}
	for _, tt := range tests {
		if got := tt.instr.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDisassembleIndents(t *testing.T) {
	out := wasm.Disassemble([]wasm.Instruction{
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: 0}},
		{Opcode: wasm.OpEnd},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 || lines[1] != "  br 0" || lines[2] != "end" {
		t.Errorf("unexpected disassembly:\n%s", out)
	}
}

func TestBlockTypeForValType(t *testing.T) {
	if wasm.ValI64.BlockType() != wasm.BlockTypeI64 {
		t.Error("i64 block type")
	}
	if wasm.ValF64.BlockType() != wasm.BlockTypeF64 {
		t.Error("f64 block type")
	}
	if wasm.ValType(0).BlockType() != wasm.BlockTypeVoid {
		t.Error("unknown value type should map to void")
	}
}
