package emit

import (
	"testing"

	"github.com/wippyai/wasm-compiler/wasm"
)

func TestEmitter_NewAndBytes(t *testing.T) {
	e := NewEmitter()
	if e.Len() != 0 {
		t.Errorf("new emitter should be empty, got len %d", e.Len())
	}
	if _, ok := e.Last(); ok {
		t.Error("Last on empty emitter should report false")
	}

	e.I32Const(42)
	if e.Len() != 1 {
		t.Errorf("len after I32Const = %d, want 1", e.Len())
	}
	if got := e.Bytes(); len(got) != 2 || got[0] != wasm.OpI32Const || got[1] != 42 {
		t.Errorf("Bytes = %x", got)
	}
}

func TestEmitter_ResetAndCopy(t *testing.T) {
	e := NewEmitter()
	e.I32Const(42).I32Const(100)

	snapshot := e.Copy()
	e.Reset()
	if e.Len() != 0 {
		t.Errorf("emitter should be empty after reset, got len %d", e.Len())
	}
	e.I64Const(7)
	if snapshot[0].Imm.(wasm.I32Imm).Value != 42 {
		t.Error("Copy should be independent of further emitter operations")
	}
}

func TestEmitter_ControlFlow(t *testing.T) {
	tests := []struct {
		emit func(e *Emitter)
		want []byte
		name string
	}{
		{
			name: "block void",
			emit: func(e *Emitter) { e.Block(BlockVoid).End() },
			want: []byte{wasm.OpBlock, wasm.OpEnd},
		},
		{
			name: "loop with branch",
			emit: func(e *Emitter) { e.Loop(BlockVoid).I32Const(1).BrIf(0).Br(1).End() },
			want: []byte{wasm.OpLoop, wasm.OpI32Const, wasm.OpBrIf, wasm.OpBr, wasm.OpEnd},
		},
		{
			name: "if else",
			emit: func(e *Emitter) { e.I32Const(1).If(BlockI64).I64Const(1).Else().Unreachable().End() },
			want: []byte{wasm.OpI32Const, wasm.OpIf, wasm.OpI64Const, wasm.OpElse, wasm.OpUnreachable, wasm.OpEnd},
		},
		{
			name: "call and return",
			emit: func(e *Emitter) { e.Call(3).Drop().Nop().Return() },
			want: []byte{wasm.OpCall, wasm.OpDrop, wasm.OpNop, wasm.OpReturn},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitter()
			tt.emit(e)
			instrs, err := wasm.DecodeInstructions(e.Bytes())
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if len(instrs) != len(tt.want) {
				t.Fatalf("expected %d instrs, got %d", len(tt.want), len(instrs))
			}
			for i, op := range tt.want {
				if instrs[i].Opcode != op {
					t.Errorf("instr[%d] = %#x, want %#x", i, instrs[i].Opcode, op)
				}
			}
		})
	}
}

func TestEmitter_Variables(t *testing.T) {
	e := NewEmitter()
	e.LocalGet(0).LocalSet(1).LocalTee(2)
	e.GlobalGet(0).GlobalSet(1)

	instrs, err := wasm.DecodeInstructions(e.Bytes())
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}

	expected := []byte{
		wasm.OpLocalGet,
		wasm.OpLocalSet,
		wasm.OpLocalTee,
		wasm.OpGlobalGet,
		wasm.OpGlobalSet,
	}
	for i, op := range expected {
		if instrs[i].Opcode != op {
			t.Errorf("instr[%d] = %#x, want %#x", i, instrs[i].Opcode, op)
		}
	}
	if instrs[2].Imm.(wasm.LocalImm).LocalIdx != 2 {
		t.Errorf("tee index = %v", instrs[2].Imm)
	}
}

func TestEmitter_Constants(t *testing.T) {
	e := NewEmitter()
	e.I32Const(-1).I64Const(1 << 40).F32Const(1.5).F64Const(2.25)

	instrs, err := wasm.DecodeInstructions(e.Bytes())
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(instrs) != 4 {
		t.Fatalf("expected 4 instrs, got %d", len(instrs))
	}
	if v := instrs[0].Imm.(wasm.I32Imm).Value; v != -1 {
		t.Errorf("i32 value = %d, want -1", v)
	}
	if v := instrs[1].Imm.(wasm.I64Imm).Value; v != 1<<40 {
		t.Errorf("i64 value = %d", v)
	}
	if v := instrs[2].Imm.(wasm.F32Imm).Value; v != 1.5 {
		t.Errorf("f32 value = %v", v)
	}
	if v := instrs[3].Imm.(wasm.F64Imm).Value; v != 2.25 {
		t.Errorf("f64 value = %v", v)
	}
}

func TestEmitter_Memory(t *testing.T) {
	e := NewEmitter()
	e.I32Const(0).Load(wasm.OpI64Load, 3, 16)
	e.I32Const(0).I32Const(42).Store(wasm.OpI32Store, 2, 4)
	e.MemorySize().MemoryGrow()

	instrs, err := wasm.DecodeInstructions(e.Bytes())
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	load := instrs[1].Imm.(wasm.MemoryImm)
	if instrs[1].Opcode != wasm.OpI64Load || load.Align != 3 || load.Offset != 16 {
		t.Errorf("load = %v", instrs[1])
	}
	store := instrs[4].Imm.(wasm.MemoryImm)
	if instrs[4].Opcode != wasm.OpI32Store || store.Align != 2 || store.Offset != 4 {
		t.Errorf("store = %v", instrs[4])
	}
	if instrs[5].Opcode != wasm.OpMemorySize || instrs[6].Opcode != wasm.OpMemoryGrow {
		t.Errorf("memory ops = %v %v", instrs[5], instrs[6])
	}
	if last, _ := e.Last(); last.Opcode != wasm.OpMemoryGrow {
		t.Errorf("Last = %v", last)
	}
}
