package codegen

import (
	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/internal/emit"
	"github.com/wippyai/wasm-compiler/wasm"
)

func (c *compiler) stmts(list []ast.Stmt) error {
	for _, s := range list {
		if err := c.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) stmt(s ast.Stmt) error {
	switch x := s.(type) {
	case *ast.LetStmt:
		return c.let(x)
	case *ast.AssignStmt:
		return c.assign(x)
	case *ast.ReturnStmt:
		return c.ret(x)
	case *ast.ExprStmt:
		return c.discard(x.X)
	case *ast.WhileStmt:
		return c.while(x)
	case *ast.ForStmt:
		return c.forRange(x)
	case *ast.LoopStmt:
		return c.loop(x)
	case *ast.BreakStmt:
		ctx, ok := c.ctrl.loop()
		if !ok {
			return c.fail(x.Pos, errors.KindBreakOutsideLoop, "break outside of a loop")
		}
		c.e.Br(c.ctrl.depth(ctx.BreakDepth))
		return nil
	case *ast.ContinueStmt:
		ctx, ok := c.ctrl.loop()
		if !ok {
			return c.fail(x.Pos, errors.KindContinueOutsideLoop, "continue outside of a loop")
		}
		c.e.Br(c.ctrl.depth(ctx.ContinueDepth))
		return nil
	case nil:
		return c.fail(ast.Pos{}, errors.KindUnsupported, "missing statement")
	default:
		return c.unsupported(s.Position(), "statement")
	}
}

// let binds a new slot. The initializer is compiled before the name is
// bound so it can refer to a shadowed outer binding.
func (c *compiler) let(x *ast.LetStmt) error {
	t := x.Type
	if t.IsVoid() {
		t = c.typeOf(x.Value)
	}
	if t.IsVoid() {
		return c.fail(x.Pos, errors.KindTypeMismatch, "let %s has no value type", x.Name)
	}
	if err := c.exprAs(x.Value, t); err != nil {
		return err
	}
	slot := c.locals.declare(x.Name, t)
	c.e.LocalSet(slot.Index)
	return nil
}

func (c *compiler) assign(x *ast.AssignStmt) error {
	switch target := x.Target.(type) {
	case *ast.Ident:
		if slot, ok := c.locals.lookup(target.Name); ok {
			if err := c.exprAs(x.Value, slot.Type); err != nil {
				return err
			}
			c.e.LocalSet(slot.Index)
			return nil
		}
		if c.receiver != "" && target.Name != SelfName {
			if _, ok := c.receiverPathType(target.Name); ok {
				return c.unsupported(x.Pos, "member assignment")
			}
		}
		return c.fail(target.Pos, errors.KindUnknownIdentifier, "assignment to unknown identifier %s", target.Name)
	case *ast.MemberExpr:
		return c.unsupported(x.Pos, "member assignment")
	default:
		return c.unsupported(x.Pos, "assignment target")
	}
}

func (c *compiler) ret(x *ast.ReturnStmt) error {
	switch {
	case x.Value == nil && !c.result.IsVoid():
		return c.fail(x.Pos, errors.KindTypeMismatch, "bare return in function returning %s", c.result)
	case x.Value != nil && c.result.IsVoid():
		return c.fail(x.Pos, errors.KindTypeMismatch, "return with a value in function without result")
	case x.Value != nil:
		if err := c.exprAs(x.Value, c.result); err != nil {
			return err
		}
	}
	c.e.Return()
	return nil
}

// while lowers to
//
//	block            ;; break target
//	  loop           ;; continue target
//	    cond; i32.eqz; br_if 1
//	    body
//	    br 0
//	  end
//	end
func (c *compiler) while(x *ast.WhileStmt) error {
	brk := c.ctrl.open(frameBlock)
	c.e.Block(emit.BlockVoid)
	cont := c.ctrl.open(frameLoop)
	c.e.Loop(emit.BlockVoid)

	if err := c.exprAs(x.Cond, ast.BoolType); err != nil {
		return err
	}
	c.e.Op(wasm.OpI32Eqz).BrIf(c.ctrl.depth(brk))

	if err := c.loopBody(x.Body, LoopContext{BreakDepth: brk, ContinueDepth: cont}); err != nil {
		return err
	}
	c.e.Br(c.ctrl.depth(cont))

	c.closeFrames(2)
	return nil
}

// loop is while true without the condition test.
func (c *compiler) loop(x *ast.LoopStmt) error {
	brk := c.ctrl.open(frameBlock)
	c.e.Block(emit.BlockVoid)
	cont := c.ctrl.open(frameLoop)
	c.e.Loop(emit.BlockVoid)

	if err := c.loopBody(x.Body, LoopContext{BreakDepth: brk, ContinueDepth: cont}); err != nil {
		return err
	}
	c.e.Br(c.ctrl.depth(cont))

	c.closeFrames(2)
	return nil
}

// forRange lowers for v in start..end with an exclusive bound evaluated
// once. continue exits the inner block so the increment still runs:
//
//	v = start; limit = end
//	block
//	  loop
//	    v >= limit; br_if 1
//	    block body end  ;; continue target
//	    v = v + 1
//	    br 0
//	  end
//	end
func (c *compiler) forRange(x *ast.ForStmt) error {
	t := c.operandType(x.Start, x.End)
	if t.IsVoid() {
		t = ast.I64Type
	}
	if !t.IsInteger() {
		return c.fail(x.Pos, errors.KindTypeMismatch, "range bounds must be integers, got %s", t)
	}

	c.locals.push()
	defer c.locals.pop()

	if err := c.exprAs(x.Start, t); err != nil {
		return err
	}
	counter := c.locals.declare(x.Var, t)
	c.e.LocalSet(counter.Index)
	if err := c.exprAs(x.End, t); err != nil {
		return err
	}
	limit := c.locals.temp(t)
	c.e.LocalSet(limit.Index)

	ops := opsFor(t)
	brk := c.ctrl.open(frameBlock)
	c.e.Block(emit.BlockVoid)
	top := c.ctrl.open(frameLoop)
	c.e.Loop(emit.BlockVoid)

	c.e.LocalGet(counter.Index).LocalGet(limit.Index).Op(ops.ge).BrIf(c.ctrl.depth(brk))

	cont := c.ctrl.open(frameBlock)
	c.e.Block(emit.BlockVoid)
	if err := c.loopBody(x.Body, LoopContext{BreakDepth: brk, ContinueDepth: cont}); err != nil {
		return err
	}
	c.closeFrames(1)

	c.e.LocalGet(counter.Index)
	c.constInt(t, 1)
	c.e.Op(ops.add).LocalSet(counter.Index)
	c.e.Br(c.ctrl.depth(top))

	c.closeFrames(2)
	return nil
}

func (c *compiler) loopBody(body []ast.Stmt, ctx LoopContext) error {
	c.ctrl.pushLoop(ctx)
	c.locals.push()
	err := c.stmts(body)
	c.locals.pop()
	c.ctrl.popLoop()
	return err
}

func (c *compiler) closeFrames(n int) {
	for i := 0; i < n; i++ {
		c.ctrl.close()
		c.e.End()
	}
}
