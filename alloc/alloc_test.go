package alloc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/wippyai/wasm-compiler/alloc"
	"github.com/wippyai/wasm-compiler/assembler"
	"github.com/wippyai/wasm-compiler/wasm"
)

func install(t *testing.T, heapBase, pages, maxPages uint32) (*alloc.Handle, []byte) {
	t.Helper()
	b := assembler.New(&assembler.Config{MaxPages: maxPages})
	h, err := alloc.Install(b, heapBase, pages)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	b.SetMemoryPages(h.MemoryPages())
	if err := b.ExportFunction(alloc.AllocName, h.AllocFunc()); err != nil {
		t.Fatal(err)
	}
	if err := b.ExportFunction(alloc.ResetName, h.ResetFunc()); err != nil {
		t.Fatal(err)
	}
	if err := b.ExportGlobal("heap_cursor", h.CursorGlobal()); err != nil {
		t.Fatal(err)
	}
	if err := b.ExportGlobal("heap_limit", h.LimitGlobal()); err != nil {
		t.Fatal(err)
	}
	bin, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return h, bin
}

func instantiate(t *testing.T, bin []byte) api.Module {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })
	mod, err := rt.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return mod
}

func call(t *testing.T, mod api.Module, name string, args ...uint64) uint32 {
	t.Helper()
	res, err := mod.ExportedFunction(name).Call(context.Background(), args...)
	if err != nil {
		t.Fatalf("%s%v: %v", name, args, err)
	}
	if len(res) == 0 {
		return 0
	}
	return uint32(res[0])
}

func TestConstants(t *testing.T) {
	if alloc.PageSize != 65536 || alloc.DefaultHeapBase != 1024 ||
		alloc.DefaultInitialPages != 1 || alloc.MaxMemoryPages != 256 {
		t.Error("allocator constants changed")
	}
	if alloc.DefaultHeapBase >= alloc.PageSize || alloc.DefaultInitialPages > alloc.MaxMemoryPages {
		t.Error("default heap does not fit the first page")
	}
}

func TestHandle(t *testing.T) {
	h, bin := install(t, alloc.DefaultHeapBase, alloc.DefaultInitialPages, 0)
	if h.HeapBase() != 1024 || h.HeapLimit() != 1024+65536 {
		t.Errorf("base/limit = %d/%d", h.HeapBase(), h.HeapLimit())
	}
	if h.MemoryPages() != 2 {
		t.Errorf("MemoryPages = %d, want 2", h.MemoryPages())
	}
	if h.AllocFunc() != 0 || h.ResetFunc() != 1 || h.CursorGlobal() != 0 || h.LimitGlobal() != 1 {
		t.Errorf("indices = %d %d %d %d", h.AllocFunc(), h.ResetFunc(), h.CursorGlobal(), h.LimitGlobal())
	}

	m, err := wasm.ParseModule(bin)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ft := m.GetFuncType(h.AllocFunc()); ft == nil || !ft.Equal(alloc.AllocType) {
		t.Errorf("alloc type = %v", ft)
	}
	if len(m.Globals) != 2 || !m.Globals[0].Type.Mutable || m.Globals[0].Type.ValType != wasm.ValI32 {
		t.Errorf("globals = %+v", m.Globals)
	}
	instrs, err := wasm.DecodeInstructions(m.Code[h.AllocFunc()].Code)
	if err != nil {
		t.Fatalf("decode alloc: %v", err)
	}
	if instrs[0].Opcode != wasm.OpGlobalGet || instrs[0].Imm.(wasm.GlobalImm).GlobalIdx != h.CursorGlobal() {
		t.Errorf("alloc starts with %v", instrs[0])
	}
}

func TestCheckAlign(t *testing.T) {
	h, _ := install(t, 0, 1, 0)
	for _, a := range []uint32{1, 2, 4, 8, 16, 4096} {
		if err := h.CheckAlign(a); err != nil {
			t.Errorf("CheckAlign(%d) = %v", a, err)
		}
	}
	for _, a := range []uint32{0, 3, 6, 12} {
		if err := h.CheckAlign(a); !errors.Is(err, alloc.ErrInvalidConfig) {
			t.Errorf("CheckAlign(%d) = %v, want ErrInvalidConfig", a, err)
		}
	}
}

func TestInstallErrors(t *testing.T) {
	tests := []struct {
		name     string
		heapBase uint32
		pages    uint32
	}{
		{"unaligned base", 1020, 1},
		{"zero pages", 1024, 0},
		{"too many pages", 0, alloc.MaxMemoryPages + 1},
		{"heap past max memory", 1024, alloc.MaxMemoryPages},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := alloc.Install(assembler.New(nil), tt.heapBase, tt.pages)
			if !errors.Is(err, alloc.ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
			if h != nil {
				t.Error("handle returned alongside error")
			}
		})
	}
}

func TestAllocAlignment(t *testing.T) {
	_, bin := install(t, alloc.DefaultHeapBase, 1, 0)
	mod := instantiate(t, bin)

	first := call(t, mod, "alloc", 12, 8)
	second := call(t, mod, "alloc", 20, 8)
	if first != 1024 {
		t.Errorf("first = %d, want heap base", first)
	}
	want := (first + 12 + 7) &^ 7
	if second != want {
		t.Errorf("second = %d, want %d", second, want)
	}
	if second%8 != 0 {
		t.Errorf("second = %d not 8-aligned", second)
	}
}

func TestAllocMonotonic(t *testing.T) {
	_, bin := install(t, 64, 1, 0)
	mod := instantiate(t, bin)

	sizes := []struct{ size, align uint32 }{
		{1, 1}, {3, 4}, {8, 8}, {5, 2}, {24, 8}, {1, 1}, {16, 16}, {7, 4},
	}
	prevEnd := uint32(64)
	for _, s := range sizes {
		p := call(t, mod, "alloc", uint64(s.size), uint64(s.align))
		if p < prevEnd {
			t.Fatalf("alloc(%d, %d) = %d overlaps previous region ending at %d", s.size, s.align, p, prevEnd)
		}
		if p%s.align != 0 {
			t.Errorf("alloc(%d, %d) = %d misaligned", s.size, s.align, p)
		}
		prevEnd = p + s.size
	}
	if cur := mod.ExportedGlobal("heap_cursor").Get(); uint32(cur) != prevEnd {
		t.Errorf("heap_cursor = %d, want %d", cur, prevEnd)
	}

	call(t, mod, "reset")
	if p := call(t, mod, "alloc", 4, 4); p != 64 {
		t.Errorf("alloc after reset = %d, want 64", p)
	}
}

func TestAllocGrowsMemory(t *testing.T) {
	_, bin := install(t, 0, 1, 0)
	mod := instantiate(t, bin)

	before := mod.Memory().Size()
	p := call(t, mod, "alloc", 3*65536, 8)
	if p != 0 {
		t.Errorf("first allocation at %d, want 0", p)
	}
	if after := mod.Memory().Size(); after < p+3*65536 || after <= before {
		t.Errorf("memory size %d -> %d does not cover 3 pages", before, after)
	}
	limit := uint32(mod.ExportedGlobal("heap_limit").Get())
	cursor := uint32(mod.ExportedGlobal("heap_cursor").Get())
	if cursor > limit {
		t.Errorf("cursor %d past limit %d", cursor, limit)
	}
	if !mod.Memory().WriteUint64Le(p+3*65536-8, 0xdeadbeef) {
		t.Error("last word of the grown region is not writable")
	}
}

func TestAllocFailureReturnsZero(t *testing.T) {
	_, bin := install(t, 1024, 1, 2)
	mod := instantiate(t, bin)

	if p := call(t, mod, "alloc", 16, 8); p != 1024 {
		t.Fatalf("small alloc = %d", p)
	}
	if p := call(t, mod, "alloc", 8*65536, 8); p != 0 {
		t.Errorf("oversized alloc = %d, want 0 sentinel", p)
	}
	if p := call(t, mod, "alloc", 8, 8); p != 1040 {
		t.Errorf("alloc after failure = %d, want 1040", p)
	}
}
