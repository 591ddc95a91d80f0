package assembler_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/wippyai/wasm-compiler/assembler"
	"github.com/wippyai/wasm-compiler/internal/emit"
	"github.com/wippyai/wasm-compiler/wasm"
)

var (
	i64ToI64 = wasm.FuncType{Params: []wasm.ValType{wasm.ValI64}, Results: []wasm.ValType{wasm.ValI64}}
	void     = wasm.FuncType{}
)

func identity() []wasm.Instruction {
	return emit.NewEmitter().LocalGet(0).End().Instrs()
}

func TestBuildRunnableModule(t *testing.T) {
	b := assembler.New(&assembler.Config{MemoryPages: 2, EmitNames: true, ModuleName: "demo"})
	logIdx, err := b.AddImport("env", "log", wasm.FuncType{Params: []wasm.ValType{wasm.ValI64}})
	if err != nil {
		t.Fatalf("AddImport: %v", err)
	}
	idIdx := b.DeclareFunction("id", i64ToI64)
	twiceIdx := b.DeclareFunction("twice", i64ToI64)
	if logIdx != 0 || idIdx != 1 || twiceIdx != 2 {
		t.Fatalf("indices = %d %d %d", logIdx, idIdx, twiceIdx)
	}

	if err := b.SetBody(idIdx, nil, identity()); err != nil {
		t.Fatal(err)
	}
	twice := emit.NewEmitter().
		LocalGet(0).Call(idIdx).LocalGet(0).Op(wasm.OpI64Add).
		End().Instrs()
	if err := b.SetBody(twiceIdx, nil, twice); err != nil {
		t.Fatal(err)
	}
	g := b.AddGlobal("counter", wasm.Global{Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true}, Init: wasm.I32ConstExpr(7)})
	if err := b.ExportFunction("twice", twiceIdx); err != nil {
		t.Fatal(err)
	}
	if err := b.ExportGlobal("counter", g); err != nil {
		t.Fatal(err)
	}

	bin, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	m, err := wasm.ParseModuleValidate(bin)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(m.Types) != 2 {
		t.Errorf("types = %d, want 2 after dedupe", len(m.Types))
	}
	if m.Memories[0].Limits.Min != 2 || m.Memories[0].Limits.Max != nil {
		t.Errorf("memory = %+v", m.Memories[0])
	}
	if exp, ok := m.ExportByName(assembler.DefaultMemoryExport); !ok || exp.Kind != wasm.KindMemory {
		t.Errorf("memory export missing: %+v", m.Exports)
	}
	if len(m.CustomSections) != 1 || m.CustomSections[0].Name != "name" {
		t.Errorf("custom sections = %+v", m.CustomSections)
	}

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	_, err = rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(func(int64) {}).Export("log").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("host module: %v", err)
	}
	mod, err := rt.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	res, err := mod.ExportedFunction("twice").Call(ctx, 21)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res[0] != 42 {
		t.Errorf("twice(21) = %d, want 42", res[0])
	}
	if v := mod.ExportedGlobal("counter").Get(); v != 7 {
		t.Errorf("counter = %d, want 7", v)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *assembler.Builder) error
		want  error
	}{
		{
			name: "missing body",
			setup: func(b *assembler.Builder) error {
				b.DeclareFunction("f", void)
				_, err := b.Build()
				return err
			},
			want: assembler.ErrMissingBody,
		},
		{
			name: "duplicate export",
			setup: func(b *assembler.Builder) error {
				idx := b.DeclareFunction("f", i64ToI64)
				if err := b.ExportFunction("f", idx); err != nil {
					return err
				}
				return b.ExportFunction("f", idx)
			},
			want: assembler.ErrDuplicateExport,
		},
		{
			name: "export collides with memory",
			setup: func(b *assembler.Builder) error {
				idx := b.DeclareFunction("memory", void)
				return b.ExportFunction("memory", idx)
			},
			want: assembler.ErrDuplicateExport,
		},
		{
			name: "import after function",
			setup: func(b *assembler.Builder) error {
				b.DeclareFunction("f", void)
				_, err := b.AddImport("env", "late", void)
				return err
			},
			want: assembler.ErrInvalidModule,
		},
		{
			name: "body set twice",
			setup: func(b *assembler.Builder) error {
				idx := b.DeclareFunction("f", i64ToI64)
				if err := b.SetBody(idx, nil, identity()); err != nil {
					return err
				}
				return b.SetBody(idx, nil, identity())
			},
			want: assembler.ErrInvalidModule,
		},
		{
			name: "body on import",
			setup: func(b *assembler.Builder) error {
				idx, _ := b.AddImport("env", "f", i64ToI64)
				return b.SetBody(idx, nil, identity())
			},
			want: assembler.ErrInvalidModule,
		},
		{
			name: "invalid branch depth",
			setup: func(b *assembler.Builder) error {
				idx := b.DeclareFunction("f", void)
				if err := b.SetBody(idx, nil, emit.NewEmitter().Br(3).End().Instrs()); err != nil {
					return err
				}
				_, err := b.Build()
				return err
			},
			want: assembler.ErrInvalidModule,
		},
		{
			name: "export of undeclared function",
			setup: func(b *assembler.Builder) error {
				return b.ExportFunction("ghost", 9)
			},
			want: assembler.ErrInvalidModule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.setup(assembler.New(nil))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMemoryConfig(t *testing.T) {
	b := assembler.New(&assembler.Config{MemoryExportName: "mem", MaxPages: 16})
	b.SetMemoryPages(3)
	if b.MemoryPages() != 3 {
		t.Errorf("MemoryPages = %d", b.MemoryPages())
	}
	m, err := b.Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	lim := m.Memories[0].Limits
	if lim.Min != 3 || lim.Max == nil || *lim.Max != 16 {
		t.Errorf("limits = %+v", lim)
	}
	if _, ok := m.ExportByName("mem"); !ok {
		t.Error("memory should be exported as mem")
	}
	if _, ok := b.FunctionName(0); ok {
		t.Error("FunctionName on empty builder should fail")
	}
}
