package codegen

import (
	"strings"

	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/wasm"
)

// exprAs compiles e and checks that it yields a value of want's
// representation. Numeric literals are emitted directly at want.
func (c *compiler) exprAs(e ast.Expr, want ast.Type) error {
	got, err := c.expr(e, want)
	if err != nil {
		return err
	}
	if !sameRepr(got, want) {
		return c.mismatch(e.Position(), want, got)
	}
	return nil
}

// discard compiles e for its effects only.
func (c *compiler) discard(e ast.Expr) error {
	t, err := c.expr(e, ast.VoidType)
	if err != nil {
		return err
	}
	if !t.IsVoid() {
		c.e.Drop()
	}
	return nil
}

// expr compiles e and returns the type of the value it leaves on the
// stack, or void. hint is the type the context expects, or void.
func (c *compiler) expr(e ast.Expr, hint ast.Type) (ast.Type, error) {
	switch x := e.(type) {
	case nil:
		return ast.VoidType, c.fail(ast.Pos{}, errors.KindUnsupported, "missing expression")
	case *ast.IntLit:
		t := x.Type
		if isNumeric(hint) {
			t = hint
		}
		return c.constInt(orDefault(t, ast.I64Type), x.Value), nil
	case *ast.FloatLit:
		t := orDefault(x.Type, ast.F64Type)
		if hint.IsFloat() {
			t = hint
		}
		return c.constFloat(t, x.Value), nil
	case *ast.BoolLit:
		var v int32
		if x.Value {
			v = 1
		}
		c.e.I32Const(v)
		return ast.BoolType, nil
	case *ast.Ident:
		return c.ident(x)
	case *ast.BinaryExpr:
		return c.binary(x, hint)
	case *ast.UnaryExpr:
		return c.unary(x, hint)
	case *ast.CallExpr:
		return c.call(x)
	case *ast.MethodCallExpr:
		return c.methodCall(x)
	case *ast.IfExpr:
		return c.ifExpr(x, hint)
	case *ast.BlockExpr:
		return c.block(x, c.blockResult(x, hint))
	case *ast.MatchExpr:
		return c.match(x, hint)
	case *ast.MemberExpr:
		return c.member(x)
	case *ast.StructLit:
		return c.structLit(x)
	case *ast.EnumVariantExpr:
		return c.enumVariant(x.Pos, x.Enum, x.Variant)
	case *ast.StringLit:
		return ast.VoidType, c.unsupported(x.Pos, "string literal")
	case *ast.CharLit:
		return ast.VoidType, c.unsupported(x.Pos, "char literal")
	case *ast.NullLit:
		return ast.VoidType, c.unsupported(x.Pos, "null literal")
	case *ast.LambdaExpr:
		return ast.VoidType, c.unsupported(x.Pos, "lambda")
	case *ast.CastExpr:
		return ast.VoidType, c.unsupported(x.Pos, "cast")
	case *ast.TryExpr:
		return ast.VoidType, c.unsupported(x.Pos, "try expression")
	case *ast.QuoteExpr:
		return ast.VoidType, c.unsupported(x.Pos, "quote")
	case *ast.EvalExpr:
		return ast.VoidType, c.unsupported(x.Pos, "eval")
	case *ast.ReflectExpr:
		return ast.VoidType, c.unsupported(x.Pos, "reflect")
	case *ast.MacroExpr:
		return ast.VoidType, c.unsupported(x.Pos, "macro "+x.Name)
	case *ast.ListLit:
		return ast.VoidType, c.unsupported(x.Pos, "list literal")
	case *ast.TupleLit:
		return ast.VoidType, c.unsupported(x.Pos, "tuple literal")
	default:
		return ast.VoidType, c.unsupported(e.Position(), "expression")
	}
}

func (c *compiler) constInt(t ast.Type, v int64) ast.Type {
	switch t.Kind {
	case ast.I64:
		c.e.I64Const(v)
	case ast.F32:
		c.e.F32Const(float32(v))
	case ast.F64:
		c.e.F64Const(float64(v))
	default:
		c.e.I32Const(int32(v))
	}
	return t
}

func (c *compiler) constFloat(t ast.Type, v float64) ast.Type {
	if t.Kind == ast.F32 {
		c.e.F32Const(float32(v))
	} else {
		c.e.F64Const(v)
	}
	return t
}

// ident reads a local, the receiver, a receiver field, or an enum variant
// spelled Enum.Variant.
func (c *compiler) ident(id *ast.Ident) (ast.Type, error) {
	if slot, ok := c.locals.lookup(id.Name); ok {
		c.e.LocalGet(slot.Index)
		return slot.Type, nil
	}
	if c.receiver != "" {
		if id.Name == SelfName {
			c.e.LocalGet(0)
			return ast.RecordType(c.receiver), nil
		}
		if _, ok := c.receiverPathType(id.Name); ok {
			c.e.LocalGet(0)
			t := ast.RecordType(c.receiver)
			for _, field := range receiverPath(id.Name) {
				var err error
				if t, err = c.loadField(id.Pos, t, field); err != nil {
					return ast.VoidType, err
				}
			}
			return t, nil
		}
	}
	if enum, variant, ok := strings.Cut(id.Name, "."); ok {
		if _, known := c.env.EnumVariant(enum, variant); known {
			return c.enumVariant(id.Pos, enum, variant)
		}
	}
	return ast.VoidType, c.fail(id.Pos, errors.KindUnknownIdentifier, "unknown identifier %s", id.Name)
}

func (c *compiler) enumVariant(pos ast.Pos, enum, variant string) (ast.Type, error) {
	idx, ok := c.env.EnumVariant(enum, variant)
	if !ok {
		return ast.VoidType, c.fail(pos, errors.KindUnknownIdentifier, "unknown variant %s.%s", enum, variant)
	}
	c.e.I32Const(idx)
	return ast.EnumType(enum), nil
}

func (c *compiler) binary(x *ast.BinaryExpr, hint ast.Type) (ast.Type, error) {
	if x.Op == ast.OpAnd || x.Op == ast.OpOr {
		// Both operands are evaluated; the checker guarantees they are
		// free of side effects.
		if err := c.exprAs(x.Left, ast.BoolType); err != nil {
			return ast.VoidType, err
		}
		if err := c.exprAs(x.Right, ast.BoolType); err != nil {
			return ast.VoidType, err
		}
		if x.Op == ast.OpAnd {
			c.e.Op(wasm.OpI32And)
		} else {
			c.e.Op(wasm.OpI32Or)
		}
		return ast.BoolType, nil
	}

	t := c.operandType(x.Left, x.Right)
	if !x.Op.IsComparison() && isNumeric(hint) && isNumericLit(x.Left) && isNumericLit(x.Right) {
		t = hint
	}
	if t.IsVoid() {
		return ast.VoidType, c.fail(x.Pos, errors.KindTypeMismatch, "operands of %s have no value type", x.Op)
	}
	if err := c.exprAs(x.Left, t); err != nil {
		return ast.VoidType, err
	}
	if err := c.exprAs(x.Right, t); err != nil {
		return ast.VoidType, err
	}

	op := opsFor(t).binary(x.Op)
	if op == 0 {
		return ast.VoidType, c.unsupported(x.Pos, "operator "+string(x.Op)+" on "+t.String())
	}
	c.e.Op(op)
	if x.Op.IsComparison() {
		return ast.BoolType, nil
	}
	return t, nil
}

func (c *compiler) unary(x *ast.UnaryExpr, hint ast.Type) (ast.Type, error) {
	switch x.Op {
	case ast.OpNot:
		if err := c.exprAs(x.X, ast.BoolType); err != nil {
			return ast.VoidType, err
		}
		c.e.Op(wasm.OpI32Eqz)
		return ast.BoolType, nil
	case ast.OpNeg:
		t := c.typeOf(x.X)
		if isNumericLit(x.X) && isNumeric(hint) {
			t = hint
		}
		switch t.Kind {
		case ast.F32:
			if err := c.exprAs(x.X, t); err != nil {
				return ast.VoidType, err
			}
			c.e.Op(wasm.OpF32Neg)
		case ast.F64:
			if err := c.exprAs(x.X, t); err != nil {
				return ast.VoidType, err
			}
			c.e.Op(wasm.OpF64Neg)
		case ast.I32, ast.I64:
			c.constInt(t, 0)
			if err := c.exprAs(x.X, t); err != nil {
				return ast.VoidType, err
			}
			c.e.Op(opsFor(t).sub)
		default:
			return ast.VoidType, c.unsupported(x.Pos, "negation of "+t.String())
		}
		return t, nil
	default:
		return ast.VoidType, c.unsupported(x.Pos, "unary operator "+string(x.Op))
	}
}

// callee resolves a call by name: a free function or import, a method of
// the receiver, or a record constructor spelled new_T.
func (c *compiler) callee(name string) (FuncRef, bool) {
	if ref, ok := c.env.Function(name); ok {
		return ref, true
	}
	if c.receiver != "" {
		if ref, ok := c.env.Method(c.receiver, name); ok {
			return ref, true
		}
	}
	if rec, ok := strings.CutPrefix(name, ConstructorPrefix); ok {
		return c.env.Constructor(rec)
	}
	return FuncRef{}, false
}

func (c *compiler) call(x *ast.CallExpr) (ast.Type, error) {
	if ref, ok := c.env.Function(x.Func); ok {
		return c.emitCall(x.Pos, ref, x.Args, false)
	}
	if c.receiver != "" {
		if ref, ok := c.env.Method(c.receiver, x.Func); ok {
			c.e.LocalGet(0)
			return c.emitCall(x.Pos, ref, x.Args, true)
		}
	}
	if ref, ok := c.callee(x.Func); ok {
		return c.emitCall(x.Pos, ref, x.Args, false)
	}
	return ast.VoidType, c.fail(x.Pos, errors.KindUnknownFunction, "unknown function %s", x.Func)
}

func (c *compiler) methodCall(x *ast.MethodCallExpr) (ast.Type, error) {
	rt := c.typeOf(x.Receiver)
	if rt.Kind != ast.Record {
		return ast.VoidType, c.fail(x.Pos, errors.KindTypeMismatch, "method %s called on %s", x.Method, rt)
	}
	ref, ok := c.env.Method(rt.Name, x.Method)
	if !ok {
		return ast.VoidType, c.fail(x.Pos, errors.KindUnknownFunction, "type %s has no method %s", rt.Name, x.Method)
	}
	if _, err := c.expr(x.Receiver, rt); err != nil {
		return ast.VoidType, err
	}
	return c.emitCall(x.Pos, ref, x.Args, true)
}

// emitCall compiles args left to right at the callee's parameter types and
// calls it. With receiverPushed the receiver is already on the stack.
func (c *compiler) emitCall(pos ast.Pos, ref FuncRef, args []ast.Expr, receiverPushed bool) (ast.Type, error) {
	params := ref.Params
	if receiverPushed {
		params = params[1:]
	}
	if len(args) != len(params) {
		return ast.VoidType, c.fail(pos, errors.KindArityMismatch, "%s takes %d arguments, got %d", ref.Name, len(params), len(args))
	}
	for i, arg := range args {
		if err := c.exprAs(arg, params[i]); err != nil {
			return ast.VoidType, err
		}
	}
	c.e.Call(ref.Index)
	return ref.Result, nil
}

// blockResult decides what a block expression yields in context.
func (c *compiler) blockResult(b *ast.BlockExpr, hint ast.Type) ast.Type {
	t := c.typeOf(b)
	if !hint.IsVoid() && b.Tail != nil && (t.IsVoid() || isNumericLit(b.Tail)) {
		return hint
	}
	return t
}

// block compiles b in a new scope. When want is not void and b has no tail,
// the block ends in unreachable: every path through it must have left by
// a branch or return.
func (c *compiler) block(b *ast.BlockExpr, want ast.Type) (ast.Type, error) {
	c.locals.push()
	defer c.locals.pop()

	if err := c.stmts(b.Stmts); err != nil {
		return ast.VoidType, err
	}
	switch {
	case want.IsVoid():
		if b.Tail != nil {
			if err := c.discard(b.Tail); err != nil {
				return ast.VoidType, err
			}
		}
	case b.Tail == nil:
		c.e.Unreachable()
	default:
		if err := c.exprAs(b.Tail, want); err != nil {
			return ast.VoidType, err
		}
	}
	return want, nil
}

func (c *compiler) ifExpr(x *ast.IfExpr, hint ast.Type) (ast.Type, error) {
	if x.Then == nil {
		return ast.VoidType, c.fail(x.Pos, errors.KindUnsupported, "if without a then block")
	}
	t := c.typeOf(x)
	switch {
	case x.Else == nil:
		t = ast.VoidType
	case !hint.IsVoid() && (t.IsVoid() || isNumericLit(x.Then.Tail) && isNumericLit(tailOf(x.Else))):
		t = hint
	}

	if err := c.exprAs(x.Cond, ast.BoolType); err != nil {
		return ast.VoidType, err
	}
	c.ctrl.open(frameIf)
	c.e.If(blockType(t))
	if _, err := c.block(x.Then, t); err != nil {
		return ast.VoidType, err
	}
	if x.Else != nil {
		c.e.Else()
		if err := c.arm(x.Else, t); err != nil {
			return ast.VoidType, err
		}
	}
	c.ctrl.close()
	c.e.End()
	return t, nil
}

// tailOf returns the value-producing expression of an arm.
func tailOf(e ast.Expr) ast.Expr {
	if b, ok := e.(*ast.BlockExpr); ok {
		return b.Tail
	}
	return e
}

// arm compiles an if or match arm that must yield want, or nothing when
// want is void.
func (c *compiler) arm(e ast.Expr, want ast.Type) error {
	if b, ok := e.(*ast.BlockExpr); ok {
		_, err := c.block(b, want)
		return err
	}
	if want.IsVoid() {
		return c.discard(e)
	}
	return c.exprAs(e, want)
}
