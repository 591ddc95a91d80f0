package codegen

import (
	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/internal/emit"
	"github.com/wippyai/wasm-compiler/layout"
	"github.com/wippyai/wasm-compiler/wasm"
)

func loadOp(t layout.FieldType) byte {
	switch t {
	case layout.I64:
		return wasm.OpI64Load
	case layout.F32:
		return wasm.OpF32Load
	case layout.F64:
		return wasm.OpF64Load
	default:
		return wasm.OpI32Load
	}
}

func storeOp(t layout.FieldType) byte {
	switch t {
	case layout.I64:
		return wasm.OpI64Store
	case layout.F32:
		return wasm.OpF32Store
	case layout.F64:
		return wasm.OpF64Store
	default:
		return wasm.OpI32Store
	}
}

// loadField replaces the record pointer on top of the stack with the value
// of field. The field offset goes into the memarg, so no address
// arithmetic is emitted.
func (c *compiler) loadField(pos ast.Pos, base ast.Type, field string) (ast.Type, error) {
	f, typ, err := c.resolveField(pos, base, field)
	if err != nil {
		return ast.VoidType, err
	}
	c.e.Load(loadOp(f.Type), f.Type.AlignLog2(), f.Offset)
	return typ, nil
}

func (c *compiler) resolveField(pos ast.Pos, base ast.Type, field string) (layout.Field, ast.Type, error) {
	if base.Kind != ast.Record {
		return layout.Field{}, ast.VoidType, c.fail(pos, errors.KindTypeMismatch, "field %s read from non-record %s", field, base)
	}
	l, ok := c.env.Registry.Get(base.Name)
	if !ok {
		return layout.Field{}, ast.VoidType, c.fail(pos, errors.KindUnknownType, "unknown record type %s", base.Name)
	}
	f, ok := l.Field(field)
	if !ok {
		return layout.Field{}, ast.VoidType, c.fail(pos, errors.KindUnknownField, "record %s has no field %s", base.Name, field)
	}
	typ, ok := c.env.FieldType(base.Name, field)
	if !ok {
		typ = fieldAstType(f.Type)
	}
	return f, typ, nil
}

// fieldAstType is the fallback static type of a field when the record
// declaration is unavailable.
func fieldAstType(t layout.FieldType) ast.Type {
	switch t {
	case layout.I64:
		return ast.I64Type
	case layout.F32:
		return ast.F32Type
	case layout.F64:
		return ast.F64Type
	case layout.Bool:
		return ast.BoolType
	default:
		return ast.I32Type
	}
}

func (c *compiler) member(x *ast.MemberExpr) (ast.Type, error) {
	base := c.typeOf(x.X)
	if base.Kind != ast.Record {
		return ast.VoidType, c.fail(x.Pos, errors.KindTypeMismatch, "field %s read from non-record %s", x.Field, base)
	}
	if err := c.exprAs(x.X, base); err != nil {
		return ast.VoidType, err
	}
	return c.loadField(x.Pos, base, x.Field)
}

// structLit allocates the record and stores every field in layout order.
// A zero address from the allocator means memory could not grow and traps.
func (c *compiler) structLit(x *ast.StructLit) (ast.Type, error) {
	l, ok := c.env.Registry.Get(x.TypeName)
	if !ok {
		return ast.VoidType, c.fail(x.Pos, errors.KindUnknownType, "unknown record type %s", x.TypeName)
	}

	inits := make(map[string]ast.Expr, len(x.Fields))
	for _, fi := range x.Fields {
		if _, ok := l.Field(fi.Name); !ok {
			return ast.VoidType, c.fail(fi.Pos, errors.KindUnknownField, "record %s has no field %s", x.TypeName, fi.Name)
		}
		if _, dup := inits[fi.Name]; dup {
			return ast.VoidType, c.fail(fi.Pos, errors.KindUnknownField, "field %s initialized twice", fi.Name)
		}
		inits[fi.Name] = fi.Value
	}
	for _, f := range l.Fields {
		if _, ok := inits[f.Name]; !ok {
			return ast.VoidType, c.fail(x.Pos, errors.KindMissingField, "field %s of %s not initialized", f.Name, x.TypeName)
		}
	}

	typ := ast.RecordType(x.TypeName)
	ptr := c.locals.temp(typ)
	if err := emitAlloc(c.e, c.env, l, ptr.Index, c.name); err != nil {
		return ast.VoidType, err
	}
	for _, f := range l.Fields {
		c.e.LocalGet(ptr.Index)
		want, ok := c.env.FieldType(x.TypeName, f.Name)
		if !ok {
			want = fieldAstType(f.Type)
		}
		if err := c.exprAs(inits[f.Name], want); err != nil {
			return ast.VoidType, err
		}
		c.e.Store(storeOp(f.Type), f.Type.AlignLog2(), f.Offset)
	}
	c.e.LocalGet(ptr.Index)
	return typ, nil
}

// emitAlloc calls alloc for one instance of l and keeps the address in
// local ptr, trapping on the failure sentinel. It rejects layouts whose
// alignment alloc cannot honor.
func emitAlloc(e *emit.Emitter, env *Env, l *layout.Layout, ptr uint32, decl string) error {
	if err := env.Alloc.CheckAlign(l.Alignment); err != nil {
		return errors.New(errors.PhaseCodegen, errors.KindInvalidConfig).
			Decl(decl).
			Value(l.Alignment).
			Cause(err).
			Detail("record %s has alignment %d", l.TypeName, l.Alignment).
			Build()
	}
	e.I32Const(int32(l.Size)).
		I32Const(int32(l.Alignment)).
		Call(env.Alloc.AllocFunc()).
		LocalTee(ptr).
		Op(wasm.OpI32Eqz).
		If(emit.BlockVoid).
		Unreachable().
		End()
	return nil
}
