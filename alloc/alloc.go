package alloc

import (
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/internal/emit"
	"github.com/wippyai/wasm-compiler/wasm"
	"go.uber.org/zap"
)

const (
	PageSize            uint32 = wasm.PageSize
	DefaultHeapBase     uint32 = 1024
	DefaultInitialPages uint32 = 1
	MaxMemoryPages      uint32 = 256
)

// Export names of the installed functions.
const (
	AllocName = "alloc"
	ResetName = "reset"
)

// ErrInvalidConfig matches every allocator configuration error.
var ErrInvalidConfig = errors.Sentinel(errors.PhaseAlloc, errors.KindInvalidConfig)

// Signatures of the installed functions.
var (
	AllocType = wasm.FuncType{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}
	ResetType = wasm.FuncType{}
)

// ModuleBuilder is the part of the module assembler the allocator needs.
type ModuleBuilder interface {
	AddGlobal(name string, g wasm.Global) uint32
	DeclareFunction(name string, typ wasm.FuncType) uint32
	SetBody(funcIdx uint32, locals []wasm.ValType, instrs []wasm.Instruction) error
}

// Handle describes an installed allocator. It is immutable.
type Handle struct {
	heapBase     uint32
	heapLimit    uint32
	initialPages uint32
	allocFunc    uint32
	resetFunc    uint32
	cursorGlobal uint32
	limitGlobal  uint32
}

func (h *Handle) AllocFunc() uint32    { return h.allocFunc }
func (h *Handle) ResetFunc() uint32    { return h.resetFunc }
func (h *Handle) CursorGlobal() uint32 { return h.cursorGlobal }
func (h *Handle) LimitGlobal() uint32  { return h.limitGlobal }
func (h *Handle) HeapBase() uint32     { return h.heapBase }

// HeapLimit is the initial value of heap_limit.
func (h *Handle) HeapLimit() uint32 { return h.heapLimit }

// MemoryPages returns the number of pages the module memory must declare so
// that the whole initial heap is addressable.
func (h *Handle) MemoryPages() uint32 {
	return (h.heapLimit + PageSize - 1) / PageSize
}

// CheckAlign rejects alignments that are zero or not a power of two.
func (h *Handle) CheckAlign(align uint32) error {
	if align == 0 || align&(align-1) != 0 {
		return errors.New(errors.PhaseAlloc, errors.KindInvalidConfig).
			Value(align).
			Detail("alignment %d is not a power of two", align).
			Build()
	}
	return nil
}

// Install adds the heap globals and the alloc and reset functions to m.
// heapBase must be 8-aligned so every record alignment is satisfied at the
// base; initialPages must be between 1 and MaxMemoryPages.
func Install(m ModuleBuilder, heapBase, initialPages uint32) (*Handle, error) {
	if err := checkConfig(heapBase, initialPages); err != nil {
		return nil, err
	}

	h := &Handle{
		heapBase:     heapBase,
		heapLimit:    heapBase + initialPages*PageSize,
		initialPages: initialPages,
	}
	h.cursorGlobal = m.AddGlobal("heap_cursor", mutableI32(h.heapBase))
	h.limitGlobal = m.AddGlobal("heap_limit", mutableI32(h.heapLimit))
	h.allocFunc = m.DeclareFunction(AllocName, AllocType)
	h.resetFunc = m.DeclareFunction(ResetName, ResetType)

	if err := m.SetBody(h.allocFunc, allocLocals, h.allocBody()); err != nil {
		return nil, errors.Wrap(errors.PhaseAlloc, errors.KindInvalidConfig, err, "set alloc body")
	}
	if err := m.SetBody(h.resetFunc, nil, h.resetBody()); err != nil {
		return nil, errors.Wrap(errors.PhaseAlloc, errors.KindInvalidConfig, err, "set reset body")
	}

	Logger().Debug("allocator installed",
		zap.Uint32("heap_base", h.heapBase),
		zap.Uint32("heap_limit", h.heapLimit),
		zap.Uint32("memory_pages", h.MemoryPages()),
		zap.Uint32("alloc", h.allocFunc),
		zap.Uint32("reset", h.resetFunc))
	return h, nil
}

func checkConfig(heapBase, initialPages uint32) error {
	if heapBase%8 != 0 {
		return errors.New(errors.PhaseAlloc, errors.KindInvalidConfig).
			Value(heapBase).
			Detail("heap base %d is not 8-aligned", heapBase).
			Build()
	}
	if initialPages == 0 || initialPages > MaxMemoryPages {
		return errors.New(errors.PhaseAlloc, errors.KindInvalidConfig).
			Value(initialPages).
			Detail("initial pages %d outside 1..%d", initialPages, MaxMemoryPages).
			Build()
	}
	if uint64(heapBase)+uint64(initialPages)*uint64(PageSize) > uint64(MaxMemoryPages)*uint64(PageSize) {
		return errors.New(errors.PhaseAlloc, errors.KindInvalidConfig).
			Value(heapBase).
			Detail("heap of %d pages at base %d exceeds %d pages", initialPages, heapBase, MaxMemoryPages).
			Build()
	}
	return nil
}

func mutableI32(v uint32) wasm.Global {
	return wasm.Global{
		Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true},
		Init: wasm.I32ConstExpr(int32(v)),
	}
}

// alloc locals beyond the (size, align) params.
const (
	localSize    = 0
	localAlign   = 1
	localAligned = 2
	localEnd     = 3
	localPages   = 4
)

var allocLocals = []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32}

// allocBody emits:
//
//	aligned = (cursor + align - 1) & -align
//	end = aligned + size
//	if end > limit {
//	    pages = (end - limit + PageSize - 1) / PageSize
//	    if memory.grow(pages) == -1 { return 0 }
//	    limit += pages * PageSize
//	}
//	cursor = end
//	return aligned
func (h *Handle) allocBody() []wasm.Instruction {
	e := emit.NewEmitter()
	e.GlobalGet(h.cursorGlobal).
		LocalGet(localAlign).Op(wasm.OpI32Add).
		I32Const(1).Op(wasm.OpI32Sub).
		I32Const(0).LocalGet(localAlign).Op(wasm.OpI32Sub).
		Op(wasm.OpI32And).
		LocalTee(localAligned).
		LocalGet(localSize).Op(wasm.OpI32Add).
		LocalTee(localEnd).
		GlobalGet(h.limitGlobal).Op(wasm.OpI32GtU).
		If(emit.BlockVoid)

	e.LocalGet(localEnd).GlobalGet(h.limitGlobal).Op(wasm.OpI32Sub).
		I32Const(int32(PageSize - 1)).Op(wasm.OpI32Add).
		I32Const(16).Op(wasm.OpI32ShrU).
		LocalTee(localPages).
		MemoryGrow().
		I32Const(-1).Op(wasm.OpI32Eq).
		If(emit.BlockVoid).
		I32Const(0).Return().
		End()
	e.GlobalGet(h.limitGlobal).
		LocalGet(localPages).I32Const(16).Op(wasm.OpI32Shl).
		Op(wasm.OpI32Add).
		GlobalSet(h.limitGlobal).
		End()

	e.LocalGet(localEnd).GlobalSet(h.cursorGlobal).
		LocalGet(localAligned).
		End()
	return e.Instrs()
}

// resetBody rewinds the cursor to the heap base. heap_limit keeps any grown
// pages since memory never shrinks.
func (h *Handle) resetBody() []wasm.Instruction {
	return emit.NewEmitter().
		I32Const(int32(h.heapBase)).GlobalSet(h.cursorGlobal).
		End().
		Instrs()
}
