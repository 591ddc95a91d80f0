package codegen

import (
	"strings"

	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/wasm"
)

// opset lists the opcodes of one value family. Zero means the family has
// no such instruction.
type opset struct {
	add, sub, mul, div, rem byte
	eq, ne, lt, le, gt, ge  byte
	eqz                     byte
}

var (
	i32Ops = opset{
		add: wasm.OpI32Add, sub: wasm.OpI32Sub, mul: wasm.OpI32Mul, div: wasm.OpI32DivS, rem: wasm.OpI32RemS,
		eq: wasm.OpI32Eq, ne: wasm.OpI32Ne, lt: wasm.OpI32LtS, le: wasm.OpI32LeS, gt: wasm.OpI32GtS, ge: wasm.OpI32GeS,
		eqz: wasm.OpI32Eqz,
	}
	i64Ops = opset{
		add: wasm.OpI64Add, sub: wasm.OpI64Sub, mul: wasm.OpI64Mul, div: wasm.OpI64DivS, rem: wasm.OpI64RemS,
		eq: wasm.OpI64Eq, ne: wasm.OpI64Ne, lt: wasm.OpI64LtS, le: wasm.OpI64LeS, gt: wasm.OpI64GtS, ge: wasm.OpI64GeS,
		eqz: wasm.OpI64Eqz,
	}
	f32Ops = opset{
		add: wasm.OpF32Add, sub: wasm.OpF32Sub, mul: wasm.OpF32Mul, div: wasm.OpF32Div,
		eq: wasm.OpF32Eq, ne: wasm.OpF32Ne, lt: wasm.OpF32Lt, le: wasm.OpF32Le, gt: wasm.OpF32Gt, ge: wasm.OpF32Ge,
	}
	f64Ops = opset{
		add: wasm.OpF64Add, sub: wasm.OpF64Sub, mul: wasm.OpF64Mul, div: wasm.OpF64Div,
		eq: wasm.OpF64Eq, ne: wasm.OpF64Ne, lt: wasm.OpF64Lt, le: wasm.OpF64Le, gt: wasm.OpF64Gt, ge: wasm.OpF64Ge,
	}
)

func opsFor(t ast.Type) *opset {
	vt, _ := ValType(t)
	switch vt {
	case wasm.ValI64:
		return &i64Ops
	case wasm.ValF32:
		return &f32Ops
	case wasm.ValF64:
		return &f64Ops
	default:
		return &i32Ops
	}
}

func (o *opset) binary(op ast.BinaryOp) byte {
	switch op {
	case ast.OpAdd:
		return o.add
	case ast.OpSub:
		return o.sub
	case ast.OpMul:
		return o.mul
	case ast.OpDiv:
		return o.div
	case ast.OpRem:
		return o.rem
	case ast.OpEq:
		return o.eq
	case ast.OpNe:
		return o.ne
	case ast.OpLt:
		return o.lt
	case ast.OpLe:
		return o.le
	case ast.OpGt:
		return o.gt
	case ast.OpGe:
		return o.ge
	}
	return 0
}

// sameRepr reports whether values of a and b share a wasm value type.
func sameRepr(a, b ast.Type) bool {
	va, okA := ValType(a)
	vb, okB := ValType(b)
	return okA == okB && va == vb
}

func blockType(t ast.Type) int32 {
	vt, ok := ValType(t)
	if !ok {
		return wasm.BlockTypeVoid
	}
	return vt.BlockType()
}

func isNumericLit(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.IntLit, *ast.FloatLit:
		return true
	case *ast.UnaryExpr:
		return x.Op == ast.OpNeg && isNumericLit(x.X)
	}
	return false
}

func isNumeric(t ast.Type) bool {
	return t.IsInteger() || t.IsFloat()
}

// typeOf infers the type an expression yields without emitting code. The
// checker-attached type wins; locals, fields and signatures fill the gaps
// left by inputs that omit it.
func (c *compiler) typeOf(e ast.Expr) ast.Type {
	if e == nil {
		return ast.VoidType
	}
	switch x := e.(type) {
	case *ast.IntLit:
		return orDefault(x.Type, ast.I64Type)
	case *ast.FloatLit:
		return orDefault(x.Type, ast.F64Type)
	case *ast.BoolLit:
		return ast.BoolType
	case *ast.Ident:
		return c.identType(x)
	case *ast.BinaryExpr:
		if x.Op.IsComparison() || x.Op == ast.OpAnd || x.Op == ast.OpOr {
			return ast.BoolType
		}
		return c.operandType(x.Left, x.Right)
	case *ast.UnaryExpr:
		if x.Op == ast.OpNot {
			return ast.BoolType
		}
		return c.typeOf(x.X)
	case *ast.CallExpr:
		if ref, ok := c.callee(x.Func); ok {
			return ref.Result
		}
	case *ast.MethodCallExpr:
		if rt := c.typeOf(x.Receiver); rt.Kind == ast.Record {
			if ref, ok := c.env.Method(rt.Name, x.Method); ok {
				return ref.Result
			}
		}
	case *ast.IfExpr:
		if !x.Type.IsVoid() || x.Else == nil {
			return x.Type
		}
		if x.Then != nil {
			if t := c.typeOf(x.Then); !t.IsVoid() {
				return t
			}
		}
		return c.typeOf(x.Else)
	case *ast.BlockExpr:
		if !x.Type.IsVoid() {
			return x.Type
		}
		return c.typeOf(x.Tail)
	case *ast.MatchExpr:
		if !x.Type.IsVoid() {
			return x.Type
		}
		for _, arm := range x.Arms {
			if t := c.typeOf(arm.Body); !t.IsVoid() {
				return t
			}
		}
	case *ast.MemberExpr:
		if bt := c.typeOf(x.X); bt.Kind == ast.Record {
			if t, ok := c.env.FieldType(bt.Name, x.Field); ok {
				return t
			}
		}
	case *ast.StructLit:
		return ast.RecordType(x.TypeName)
	case *ast.EnumVariantExpr:
		return ast.EnumType(x.Enum)
	}
	return e.StaticType()
}

func orDefault(t, def ast.Type) ast.Type {
	if t.IsVoid() {
		return def
	}
	return t
}

func (c *compiler) identType(id *ast.Ident) ast.Type {
	if slot, ok := c.locals.lookup(id.Name); ok {
		return slot.Type
	}
	if !id.Type.IsVoid() {
		return id.Type
	}
	if c.receiver != "" {
		if id.Name == SelfName {
			return ast.RecordType(c.receiver)
		}
		if t, ok := c.receiverPathType(id.Name); ok {
			return t
		}
	}
	if enum, _, ok := strings.Cut(id.Name, "."); ok {
		return ast.EnumType(enum)
	}
	return ast.VoidType
}

// operandType picks the type both operands of a binary expression are
// compiled at. A bare literal adopts the type of the other side.
func (c *compiler) operandType(left, right ast.Expr) ast.Type {
	if isNumericLit(left) && !isNumericLit(right) {
		if t := c.typeOf(right); !t.IsVoid() {
			return t
		}
	}
	if t := c.typeOf(left); !t.IsVoid() {
		return t
	}
	return c.typeOf(right)
}

// receiverPathType resolves "x" or "self.x.y" against the receiver's fields.
func (c *compiler) receiverPathType(name string) (ast.Type, bool) {
	t := ast.RecordType(c.receiver)
	for _, field := range receiverPath(name) {
		if t.Kind != ast.Record {
			return ast.VoidType, false
		}
		ft, ok := c.env.FieldType(t.Name, field)
		if !ok {
			return ast.VoidType, false
		}
		t = ft
	}
	return t, true
}

func receiverPath(name string) []string {
	return strings.Split(strings.TrimPrefix(name, SelfName+"."), ".")
}
