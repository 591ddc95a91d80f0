package codegen

import (
	"github.com/wippyai/wasm-compiler/alloc"
	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/layout"
	"github.com/wippyai/wasm-compiler/wasm"
)

// FuncRef is a callable entry of the function table.
type FuncRef struct {
	Name   string
	Params []ast.Type // including the receiver for methods
	Result ast.Type
	Type   wasm.FuncType
	Index  uint32
}

// Env is the read-only context shared by every function compilation of a
// module. It is populated before compilation starts and must not be
// modified afterwards; concurrent reads are safe.
type Env struct {
	Registry *layout.Registry
	Alloc    *alloc.Handle

	funcs        map[string]FuncRef
	methods      map[string]map[string]FuncRef
	constructors map[string]FuncRef
	fields       map[string]map[string]ast.Type
	enums        map[string]*ast.EnumDecl
}

// NewEnv creates an environment for the records of prog. Field types are
// collected through the parent chain so inherited fields resolve.
func NewEnv(prog *ast.Program, reg *layout.Registry, h *alloc.Handle) *Env {
	env := &Env{
		Registry:     reg,
		Alloc:        h,
		funcs:        make(map[string]FuncRef),
		methods:      make(map[string]map[string]FuncRef),
		constructors: make(map[string]FuncRef),
		fields:       make(map[string]map[string]ast.Type),
		enums:        make(map[string]*ast.EnumDecl),
	}
	for i := range prog.Records {
		rec := &prog.Records[i]
		fields := make(map[string]ast.Type)
		for _, name := range reg.Ancestors(rec.Name) {
			decl, ok := prog.Record(name)
			if !ok {
				continue
			}
			for _, f := range decl.Fields {
				if _, seen := fields[f.Name]; !seen {
					fields[f.Name] = f.Type
				}
			}
		}
		env.fields[rec.Name] = fields
	}
	for i := range prog.Enums {
		env.enums[prog.Enums[i].Name] = &prog.Enums[i]
	}
	return env
}

// AddFunction registers a free function or host import under name.
func (env *Env) AddFunction(ref FuncRef) {
	env.funcs[ref.Name] = ref
}

// AddMethod registers method of record.
func (env *Env) AddMethod(record string, ref FuncRef) {
	m, ok := env.methods[record]
	if !ok {
		m = make(map[string]FuncRef)
		env.methods[record] = m
	}
	m[ref.Name] = ref
}

// AddConstructor registers the generated constructor of record.
func (env *Env) AddConstructor(record string, ref FuncRef) {
	env.constructors[record] = ref
}

// Function looks up a free function or import by name.
func (env *Env) Function(name string) (FuncRef, bool) {
	ref, ok := env.funcs[name]
	return ref, ok
}

// Method resolves name on record, then on its ancestors. The lookup is
// static; a child method never overrides a call made through the parent.
func (env *Env) Method(record, name string) (FuncRef, bool) {
	for _, typ := range env.Registry.Ancestors(record) {
		if ref, ok := env.methods[typ][name]; ok {
			return ref, true
		}
	}
	return FuncRef{}, false
}

// Constructor returns the constructor generated for record.
func (env *Env) Constructor(record string) (FuncRef, bool) {
	ref, ok := env.constructors[record]
	return ref, ok
}

// FieldType returns the declared type of a record field, inherited or not.
func (env *Env) FieldType(record, field string) (ast.Type, bool) {
	t, ok := env.fields[record][field]
	return t, ok
}

// EnumVariant returns the discriminant of enum.variant.
func (env *Env) EnumVariant(enum, variant string) (int32, bool) {
	decl, ok := env.enums[enum]
	if !ok {
		return 0, false
	}
	idx := decl.VariantIndex(variant)
	return int32(idx), idx >= 0
}

// ValType maps a static type to its wasm value type. Void has none.
func ValType(t ast.Type) (wasm.ValType, bool) {
	switch t.Kind {
	case ast.Void:
		return 0, false
	case ast.I64:
		return wasm.ValI64, true
	case ast.F32:
		return wasm.ValF32, true
	case ast.F64:
		return wasm.ValF64, true
	default:
		return wasm.ValI32, true
	}
}

// Signature returns the wasm signature of fn. Methods take the receiver
// pointer as their first parameter.
func Signature(fn *ast.FuncDecl) wasm.FuncType {
	return signature(paramTypes(fn), fn.Result)
}

// NewFuncRef describes fn as a function table entry at index.
func NewFuncRef(fn *ast.FuncDecl, index uint32) FuncRef {
	params := paramTypes(fn)
	return FuncRef{
		Name:   fn.Name,
		Params: params,
		Result: fn.Result,
		Type:   signature(params, fn.Result),
		Index:  index,
	}
}

// ImportRef describes a host import as a function table entry at index.
func ImportRef(imp *ast.ImportDecl, index uint32) FuncRef {
	params := make([]ast.Type, len(imp.Params))
	for i, p := range imp.Params {
		params[i] = p.Type
	}
	return FuncRef{
		Name:   imp.Name,
		Params: params,
		Result: imp.Result,
		Type:   signature(params, imp.Result),
		Index:  index,
	}
}

func paramTypes(fn *ast.FuncDecl) []ast.Type {
	var params []ast.Type
	if fn.IsMethod() {
		params = append(params, ast.RecordType(fn.Receiver))
	}
	for _, p := range fn.Params {
		params = append(params, p.Type)
	}
	return params
}

func signature(params []ast.Type, result ast.Type) wasm.FuncType {
	var ft wasm.FuncType
	for _, p := range params {
		if vt, ok := ValType(p); ok {
			ft.Params = append(ft.Params, vt)
		}
	}
	if vt, ok := ValType(result); ok {
		ft.Results = []wasm.ValType{vt}
	}
	return ft
}
