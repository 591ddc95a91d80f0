package engine

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-compiler/assembler"
	"github.com/wippyai/wasm-compiler/internal/emit"
	"github.com/wippyai/wasm-compiler/wasm"
)

var (
	i64 = wasm.ValI64
	i32 = wasm.ValI32
	f64 = wasm.ValF64
)

// testModule builds a small module exercising every call path. It imports
// env.log when withImport is set.
func testModule(t *testing.T, withImport bool) []byte {
	t.Helper()
	b := assembler.New(nil)

	var logIdx uint32
	if withImport {
		var err error
		logIdx, err = b.AddImport("env", "log", wasm.FuncType{Params: []wasm.ValType{i64}})
		if err != nil {
			t.Fatalf("AddImport: %v", err)
		}
	}

	type testFunc struct {
		name  string
		typ   wasm.FuncType
		build func(e *emit.Emitter)
	}
	funcs := []testFunc{
		{"add", wasm.FuncType{Params: []wasm.ValType{i64, i64}, Results: []wasm.ValType{i64}}, func(e *emit.Emitter) {
			e.LocalGet(0).LocalGet(1).Op(wasm.OpI64Add)
		}},
		{"half", wasm.FuncType{Params: []wasm.ValType{f64}, Results: []wasm.ValType{f64}}, func(e *emit.Emitter) {
			e.LocalGet(0).F64Const(0.5).Op(wasm.OpF64Mul)
		}},
		{"boom", wasm.FuncType{}, func(e *emit.Emitter) {
			e.Unreachable()
		}},
		{"store", wasm.FuncType{Params: []wasm.ValType{i32, i64}}, func(e *emit.Emitter) {
			e.LocalGet(0).LocalGet(1).Store(wasm.OpI64Store, 3, 0)
		}},
	}
	if withImport {
		funcs = append(funcs, testFunc{"callhost", wasm.FuncType{Params: []wasm.ValType{i64}}, func(e *emit.Emitter) {
			e.LocalGet(0).Call(logIdx)
		}})
	}

	for _, f := range funcs {
		idx := b.DeclareFunction(f.name, f.typ)
		e := emit.NewEmitter()
		f.build(e)
		if err := b.SetBody(idx, nil, e.End().Instrs()); err != nil {
			t.Fatalf("SetBody(%s): %v", f.name, err)
		}
		if err := b.ExportFunction(f.name, idx); err != nil {
			t.Fatalf("ExportFunction(%s): %v", f.name, err)
		}
	}
	g := b.AddGlobal("counter", wasm.Global{Type: wasm.GlobalType{ValType: i32, Mutable: true}, Init: wasm.I32ConstExpr(7)})
	if err := b.ExportGlobal("counter", g); err != nil {
		t.Fatal(err)
	}

	bin, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return bin
}

func instantiate(t *testing.T, ctx context.Context, eng *WazeroEngine, bin []byte) (*WazeroModule, *WazeroInstance) {
	t.Helper()
	mod, err := eng.LoadModule(ctx, bin)
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	t.Cleanup(func() { inst.Close(ctx) })
	return mod, inst
}

func TestNewWazeroEngineWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewWazeroEngineWithConfig(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
			}
			defer engine.Close(ctx)

			if engine.runtime == nil {
				t.Error("engine runtime should not be nil")
			}
		})
	}
}

func TestWazeroEngine_Close(t *testing.T) {
	ctx := context.Background()

	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}
	if err := engine.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestWazeroModule_Exports(t *testing.T) {
	ctx := context.Background()
	engine, _ := NewWazeroEngine(ctx)
	defer engine.Close(ctx)

	mod, _ := instantiate(t, ctx, engine, testModule(t, false))

	var names []string
	for _, exp := range mod.Exports() {
		names = append(names, exp.Name)
	}
	if want := []string{"add", "boom", "half", "store"}; !slices.Equal(names, want) {
		t.Errorf("exports = %v, want %v", names, want)
	}

	add, ok := mod.Export("add")
	if !ok || len(add.Params) != 2 || add.Results[0] != api.ValueTypeI64 {
		t.Errorf("add = %+v", add)
	}
	if _, ok := mod.Export("memory"); ok {
		t.Error("memory is not a function export")
	}
}

func TestWazeroInstance_Call(t *testing.T) {
	ctx := context.Background()
	engine, _ := NewWazeroEngine(ctx)
	defer engine.Close(ctx)

	_, inst := instantiate(t, ctx, engine, testModule(t, false))

	sum, err := inst.CallI64(ctx, "add", api.EncodeI64(-2), api.EncodeI64(45))
	if err != nil || sum != 43 {
		t.Errorf("add = %d, %v", sum, err)
	}
	half, err := inst.CallF64(ctx, "half", api.EncodeF64(3))
	if err != nil || half != 1.5 {
		t.Errorf("half = %v, %v", half, err)
	}

	if _, err := inst.CallI64(ctx, "half", api.EncodeF64(1)); err == nil {
		t.Error("CallI64 on an f64 export should fail")
	}
	if _, err := inst.Call(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing export: err = %v", err)
	}
	if _, err := inst.Call(ctx, "add", 1); err == nil {
		t.Error("wrong argument count should fail")
	}
}

func TestWazeroInstance_Trap(t *testing.T) {
	ctx := context.Background()
	engine, _ := NewWazeroEngine(ctx)
	defer engine.Close(ctx)

	_, inst := instantiate(t, ctx, engine, testModule(t, false))

	_, err := inst.Call(ctx, "boom")
	if !errors.Is(err, ErrTrap) {
		t.Fatalf("err = %v, want trap", err)
	}
	if errors.Unwrap(err) == nil {
		t.Error("trap should carry the runtime cause")
	}
}

func TestWazeroInstance_MemoryAndGlobals(t *testing.T) {
	ctx := context.Background()
	engine, _ := NewWazeroEngine(ctx)
	defer engine.Close(ctx)

	_, inst := instantiate(t, ctx, engine, testModule(t, false))

	if _, err := inst.Call(ctx, "store", 1024, api.EncodeI64(-99)); err != nil {
		t.Fatalf("store: %v", err)
	}
	mem := inst.Memory()
	if v, err := mem.ReadI64(1024); err != nil || v != -99 {
		t.Errorf("ReadI64 = %d, %v", v, err)
	}
	if err := mem.WriteU32(2048, 5); err != nil {
		t.Fatal(err)
	}
	if v, err := mem.ReadI32(2048); err != nil || v != 5 {
		t.Errorf("ReadI32 = %d, %v", v, err)
	}
	if inst.MemorySize() != wasm.PageSize {
		t.Errorf("MemorySize = %d, want one page", inst.MemorySize())
	}
	if _, err := mem.ReadU64(wasm.PageSize - 4); err == nil {
		t.Error("read past the end should fail")
	}

	if v, ok := inst.Global("counter"); !ok || v != 7 {
		t.Errorf("counter = %d, %v", v, ok)
	}
	if _, ok := inst.Global("nope"); ok {
		t.Error("unknown global should not resolve")
	}
}

func TestWazeroEngine_HostModule(t *testing.T) {
	ctx := context.Background()
	engine, _ := NewWazeroEngine(ctx)
	defer engine.Close(ctx)

	var logged []int64
	host := []HostFunc{{
		Name:   "log",
		Params: []api.ValueType{api.ValueTypeI64},
		Func: func(_ context.Context, _ api.Module, stack []uint64) {
			logged = append(logged, int64(stack[0]))
		},
	}}
	if err := engine.RegisterHostModule(ctx, "env", host); err != nil {
		t.Fatalf("RegisterHostModule: %v", err)
	}
	if err := engine.RegisterHostModule(ctx, "env", host); err == nil {
		t.Error("registering env twice should fail")
	}

	_, inst := instantiate(t, ctx, engine, testModule(t, true))
	for _, v := range []int64{42, -1} {
		if _, err := inst.Call(ctx, "callhost", api.EncodeI64(v)); err != nil {
			t.Fatalf("callhost: %v", err)
		}
	}
	if !slices.Equal(logged, []int64{42, -1}) {
		t.Errorf("logged = %v", logged)
	}
}

func TestWazeroEngine_LoadErrors(t *testing.T) {
	ctx := context.Background()
	engine, _ := NewWazeroEngine(ctx)
	defer engine.Close(ctx)

	if _, err := engine.LoadModule(ctx, []byte("not wasm")); !errors.Is(err, ErrInvalidModule) {
		t.Errorf("garbage: err = %v", err)
	}

	mod, err := engine.LoadModule(ctx, testModule(t, true))
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if _, err := mod.Instantiate(ctx); !errors.Is(err, ErrInstantiation) {
		t.Errorf("missing import: err = %v", err)
	}
}
