// Package assembler collects signatures, imports, globals, memory, function
// bodies and exports and serializes them into one binary module.
package assembler

import (
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/wasm"
	"go.uber.org/zap"
)

// DefaultMemoryExport is the export name of the module memory.
const DefaultMemoryExport = "memory"

// Sentinels for errors.Is checks.
var (
	ErrMissingBody     = errors.Sentinel(errors.PhaseAssemble, errors.KindMissingBody)
	ErrDuplicateExport = errors.Sentinel(errors.PhaseAssemble, errors.KindDuplicateExport)
	ErrInvalidModule   = errors.Sentinel(errors.PhaseAssemble, errors.KindInvalidModule)
)

// Config controls module-level settings. The zero value exports a one-page
// memory named "memory" without a maximum.
type Config struct {
	// ModuleName is written to the name section when EmitNames is set.
	ModuleName string

	// MemoryExportName overrides the memory export name.
	MemoryExportName string

	// MemoryPages is the declared minimum; 0 means 1.
	MemoryPages uint32

	// MaxPages caps memory growth; 0 leaves it unbounded.
	MaxPages uint32

	// EmitNames adds a "name" custom section with function names.
	EmitNames bool
}

type function struct {
	name    string
	typ     wasm.FuncType
	locals  []wasm.ValType
	instrs  []wasm.Instruction
	hasBody bool
}

type importedFunc struct {
	module string
	name   string
	typ    wasm.FuncType
}

type global struct {
	name string
	def  wasm.Global
}

// Builder accumulates a module. Function indices are assigned on
// declaration: imports first, then local functions in declaration order.
// It is not safe for concurrent use.
type Builder struct {
	cfg     Config
	imports []importedFunc
	funcs   []function
	globals []global
	exports []wasm.Export
	names   map[string]struct{}
}

// New creates a builder. A nil cfg uses defaults.
func New(cfg *Config) *Builder {
	b := &Builder{names: make(map[string]struct{})}
	if cfg != nil {
		b.cfg = *cfg
	}
	if b.cfg.MemoryExportName == "" {
		b.cfg.MemoryExportName = DefaultMemoryExport
	}
	if b.cfg.MemoryPages == 0 {
		b.cfg.MemoryPages = 1
	}
	return b
}

// SetMemoryPages sets the declared minimum number of memory pages.
func (b *Builder) SetMemoryPages(pages uint32) {
	b.cfg.MemoryPages = pages
}

// MemoryPages returns the declared minimum number of memory pages.
func (b *Builder) MemoryPages() uint32 {
	return b.cfg.MemoryPages
}

// AddImport declares a host function import and returns its function index.
// Imports must be added before any local function is declared.
func (b *Builder) AddImport(module, name string, typ wasm.FuncType) (uint32, error) {
	if len(b.funcs) > 0 {
		return 0, errors.New(errors.PhaseAssemble, errors.KindInvalidModule).
			Decl(module + "." + name).
			Detail("import declared after local functions").
			Build()
	}
	b.imports = append(b.imports, importedFunc{module: module, name: name, typ: typ})
	return uint32(len(b.imports) - 1), nil
}

// DeclareFunction reserves the next function index for a local function.
func (b *Builder) DeclareFunction(name string, typ wasm.FuncType) uint32 {
	b.funcs = append(b.funcs, function{name: name, typ: typ})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// SetBody attaches the body of a declared function. instrs must end with
// the function's closing end.
func (b *Builder) SetBody(funcIdx uint32, locals []wasm.ValType, instrs []wasm.Instruction) error {
	fn, err := b.local(funcIdx)
	if err != nil {
		return err
	}
	if fn.hasBody {
		return errors.New(errors.PhaseAssemble, errors.KindInvalidModule).
			Decl(fn.name).
			Detail("body set twice").
			Build()
	}
	fn.locals = locals
	fn.instrs = instrs
	fn.hasBody = true
	return nil
}

// AddGlobal appends a module-defined global and returns its index.
func (b *Builder) AddGlobal(name string, g wasm.Global) uint32 {
	b.globals = append(b.globals, global{name: name, def: g})
	return uint32(len(b.globals) - 1)
}

// ExportFunction exports the function at funcIdx under name.
func (b *Builder) ExportFunction(name string, funcIdx uint32) error {
	if funcIdx >= uint32(len(b.imports)+len(b.funcs)) {
		return errors.New(errors.PhaseAssemble, errors.KindInvalidModule).
			Decl(name).
			Value(funcIdx).
			Detail("export of undeclared function %d", funcIdx).
			Build()
	}
	return b.export(wasm.Export{Name: name, Kind: wasm.KindFunc, Idx: funcIdx})
}

// ExportGlobal exports the global at idx under name.
func (b *Builder) ExportGlobal(name string, idx uint32) error {
	if idx >= uint32(len(b.globals)) {
		return errors.New(errors.PhaseAssemble, errors.KindInvalidModule).
			Decl(name).
			Value(idx).
			Detail("export of undeclared global %d", idx).
			Build()
	}
	return b.export(wasm.Export{Name: name, Kind: wasm.KindGlobal, Idx: idx})
}

func (b *Builder) export(exp wasm.Export) error {
	if _, dup := b.names[exp.Name]; dup || exp.Name == b.cfg.MemoryExportName {
		return errors.New(errors.PhaseAssemble, errors.KindDuplicateExport).
			Decl(exp.Name).
			Detail("export name already used").
			Build()
	}
	b.names[exp.Name] = struct{}{}
	b.exports = append(b.exports, exp)
	return nil
}

// NumFunctions returns the size of the function index space so far.
func (b *Builder) NumFunctions() int {
	return len(b.imports) + len(b.funcs)
}

// FunctionName returns the declared name of the function at funcIdx.
func (b *Builder) FunctionName(funcIdx uint32) (string, bool) {
	n := uint32(len(b.imports))
	switch {
	case funcIdx < n:
		return b.imports[funcIdx].name, true
	case funcIdx-n < uint32(len(b.funcs)):
		return b.funcs[funcIdx-n].name, true
	}
	return "", false
}

func (b *Builder) local(funcIdx uint32) (*function, error) {
	n := uint32(len(b.imports))
	if funcIdx < n || funcIdx-n >= uint32(len(b.funcs)) {
		return nil, errors.New(errors.PhaseAssemble, errors.KindInvalidModule).
			Value(funcIdx).
			Detail("function %d is not a declared local function", funcIdx).
			Build()
	}
	return &b.funcs[funcIdx-n], nil
}

// Module assembles the in-memory module. It fails if any declared function
// has no body.
func (b *Builder) Module() (*wasm.Module, error) {
	m := &wasm.Module{}

	for _, imp := range b.imports {
		m.Imports = append(m.Imports, wasm.Import{
			Module: imp.module,
			Name:   imp.name,
			Desc:   wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: m.AddType(imp.typ)},
		})
	}

	for _, fn := range b.funcs {
		if !fn.hasBody {
			return nil, errors.New(errors.PhaseAssemble, errors.KindMissingBody).
				Decl(fn.name).
				Detail("declared function has no body").
				Build()
		}
		m.Funcs = append(m.Funcs, m.AddType(fn.typ))
		m.Code = append(m.Code, wasm.FuncBody{
			Locals: wasm.CompactLocals(fn.locals),
			Code:   wasm.EncodeInstructions(fn.instrs),
		})
	}

	mem := wasm.MemoryType{Limits: wasm.Limits{Min: uint64(b.cfg.MemoryPages)}}
	if b.cfg.MaxPages > 0 {
		maxPages := uint64(b.cfg.MaxPages)
		mem.Limits.Max = &maxPages
	}
	m.Memories = []wasm.MemoryType{mem}

	for _, g := range b.globals {
		m.Globals = append(m.Globals, g.def)
	}

	m.Exports = append(m.Exports, wasm.Export{Name: b.cfg.MemoryExportName, Kind: wasm.KindMemory, Idx: 0})
	m.Exports = append(m.Exports, b.exports...)

	if b.cfg.EmitNames {
		names := make(map[uint32]string, b.NumFunctions())
		for i := 0; i < b.NumFunctions(); i++ {
			names[uint32(i)], _ = b.FunctionName(uint32(i))
		}
		m.CustomSections = append(m.CustomSections, wasm.NameSection(b.cfg.ModuleName, names))
	}
	return m, nil
}

// Build assembles, validates and encodes the module. No bytes are returned
// on error.
func (b *Builder) Build() ([]byte, error) {
	m, err := b.Module()
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindInvalidModule, err, "validate module")
	}
	bin := m.Encode()
	Logger().Info("module built",
		zap.Int("bytes", len(bin)),
		zap.Int("types", len(m.Types)),
		zap.Int("imports", len(b.imports)),
		zap.Int("functions", len(b.funcs)),
		zap.Int("globals", len(b.globals)),
		zap.Int("exports", len(m.Exports)),
		zap.Uint32("memory_pages", b.cfg.MemoryPages))
	return bin, nil
}
