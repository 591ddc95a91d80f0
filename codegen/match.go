package codegen

import (
	"strings"

	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/errors"
)

// match lowers to a chain of nested ifs over a scratch copy of the
// scrutinee. Arms are tested in source order; a wildcard or binding arm
// ends the chain. Without one the innermost else traps.
func (c *compiler) match(x *ast.MatchExpr, hint ast.Type) (ast.Type, error) {
	st := c.typeOf(x.Scrutinee)
	if st.IsVoid() {
		return ast.VoidType, c.fail(x.Pos, errors.KindTypeMismatch, "match scrutinee has no value type")
	}
	for _, arm := range x.Arms {
		if err := c.checkPattern(arm.Pattern); err != nil {
			return ast.VoidType, err
		}
	}

	t := c.typeOf(x)
	if !hint.IsVoid() && (t.IsVoid() || allNumericLitArms(x.Arms)) {
		t = hint
	}

	if err := c.exprAs(x.Scrutinee, st); err != nil {
		return ast.VoidType, err
	}
	scrutinee := c.locals.temp(st)
	c.e.LocalSet(scrutinee.Index)

	if err := c.arms(x.Arms, scrutinee, t); err != nil {
		return ast.VoidType, err
	}
	return t, nil
}

func allNumericLitArms(arms []ast.MatchArm) bool {
	for _, arm := range arms {
		if !isNumericLit(tailOf(arm.Body)) {
			return false
		}
	}
	return len(arms) > 0
}

func (c *compiler) arms(arms []ast.MatchArm, scrutinee LocalSlot, t ast.Type) error {
	if len(arms) == 0 {
		c.e.Unreachable()
		return nil
	}
	arm := arms[0]
	switch p := arm.Pattern.(type) {
	case *ast.WildcardPattern:
		return c.arm(arm.Body, t)
	case *ast.BindPattern:
		c.locals.push()
		defer c.locals.pop()
		slot := c.locals.declare(p.Name, scrutinee.Type)
		c.e.LocalGet(scrutinee.Index).LocalSet(slot.Index)
		return c.arm(arm.Body, t)
	case *ast.LiteralPattern:
		c.e.LocalGet(scrutinee.Index)
		if err := c.exprAs(p.Value, scrutinee.Type); err != nil {
			return err
		}
		c.e.Op(opsFor(scrutinee.Type).eq)

		c.ctrl.open(frameIf)
		c.e.If(blockType(t))
		if err := c.arm(arm.Body, t); err != nil {
			return err
		}
		c.e.Else()
		if err := c.arms(arms[1:], scrutinee, t); err != nil {
			return err
		}
		c.ctrl.close()
		c.e.End()
		return nil
	default:
		return c.unsupported(arm.Pos, "non-literal match pattern")
	}
}

// checkPattern rejects patterns that cannot be lowered before any code for
// the match is emitted.
func (c *compiler) checkPattern(p ast.Pattern) error {
	switch x := p.(type) {
	case *ast.WildcardPattern, *ast.BindPattern:
		return nil
	case *ast.LiteralPattern:
		switch v := x.Value.(type) {
		case *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.EnumVariantExpr:
			return nil
		case *ast.UnaryExpr:
			if isNumericLit(v) {
				return nil
			}
		case *ast.Ident:
			if _, err := c.enumConstant(v); err == nil {
				return nil
			}
		}
		return c.unsupported(x.Pos, "non-literal match pattern")
	case nil:
		return c.fail(ast.Pos{}, errors.KindUnsupported, "match arm without a pattern")
	default:
		return c.unsupported(p.Position(), "non-literal match pattern")
	}
}

// enumConstant resolves an Enum.Variant identifier without emitting code.
func (c *compiler) enumConstant(id *ast.Ident) (int32, error) {
	if enum, variant, ok := strings.Cut(id.Name, "."); ok {
		if idx, ok := c.env.EnumVariant(enum, variant); ok {
			return idx, nil
		}
	}
	return 0, c.fail(id.Pos, errors.KindUnknownIdentifier, "unknown variant %s", id.Name)
}
