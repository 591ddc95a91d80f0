package codegen

import (
	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/internal/emit"
	"github.com/wippyai/wasm-compiler/layout"
	"go.uber.org/zap"
)

// ConstructorPrefix names generated constructors: new_Point for Point.
const ConstructorPrefix = "new_"

// ConstructorName returns the function name of record's constructor.
func ConstructorName(record string) string {
	return ConstructorPrefix + record
}

// ConstructorRef describes the constructor of l as a function table entry
// at index. It takes every field of l, inherited ones first, and returns
// the new record's address.
func (env *Env) ConstructorRef(l *layout.Layout, index uint32) FuncRef {
	params := make([]ast.Type, len(l.Fields))
	for i, f := range l.Fields {
		t, ok := env.FieldType(l.TypeName, f.Name)
		if !ok {
			t = fieldAstType(f.Type)
		}
		params[i] = t
	}
	result := ast.RecordType(l.TypeName)
	return FuncRef{
		Name:   ConstructorName(l.TypeName),
		Params: params,
		Result: result,
		Type:   signature(params, result),
		Index:  index,
	}
}

// CompileConstructor generates the constructor of record. The body
// allocates one instance, traps when the allocator fails and stores each
// parameter at its field offset.
func CompileConstructor(record string, env *Env) (*FunctionBody, error) {
	name := ConstructorName(record)
	l, ok := env.Registry.Get(record)
	if !ok {
		return nil, errors.New(errors.PhaseCodegen, errors.KindUnknownType).
			Decl(name).
			Detail("unknown record type %s", record).
			Build()
	}
	ref := env.ConstructorRef(l, 0)

	locs := newLocals()
	for i, f := range l.Fields {
		locs.param(f.Name, ref.Params[i])
	}
	ptr := locs.temp(ref.Result)

	e := emit.NewEmitter()
	if err := emitAlloc(e, env, l, ptr.Index, name); err != nil {
		return nil, err
	}
	for i, f := range l.Fields {
		e.LocalGet(ptr.Index).
			LocalGet(uint32(i)).
			Store(storeOp(f.Type), f.Type.AlignLog2(), f.Offset)
	}
	e.LocalGet(ptr.Index).End()

	out := &FunctionBody{
		Name:   name,
		Type:   ref.Type,
		Locals: locs.declared(),
		Instrs: e.Instrs(),
	}
	Logger().Debug("constructor compiled",
		zap.String("record", record),
		zap.Uint32("size", l.Size),
		zap.Int("fields", len(l.Fields)))
	return out, nil
}
