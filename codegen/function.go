package codegen

import (
	"fmt"

	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/internal/emit"
	"github.com/wippyai/wasm-compiler/wasm"
	"go.uber.org/zap"
)

// SelfName is the name of the implicit receiver inside methods.
const SelfName = "self"

// FunctionBody is the compiled form of one function.
type FunctionBody struct {
	Name   string
	Type   wasm.FuncType
	Locals []wasm.ValType // declared locals beyond the parameters
	Instrs []wasm.Instruction
}

// Encode converts the body into a code section entry.
func (b *FunctionBody) Encode() wasm.FuncBody {
	return wasm.FuncBody{
		Locals: wasm.CompactLocals(b.Locals),
		Code:   wasm.EncodeInstructions(b.Instrs),
	}
}

// String returns the disassembled body.
func (b *FunctionBody) String() string {
	return fmt.Sprintf("func %s %s\n%s", b.Name, b.Type, wasm.Disassemble(b.Instrs))
}

// compiler holds the state of a single function compilation. It is created
// per call and never shared.
type compiler struct {
	env      *Env
	name     string
	receiver string
	result   ast.Type
	e        *emit.Emitter
	locals   *locals
	ctrl     controlStack
}

// CompileFunction lowers a free function or method. Methods receive the
// receiver pointer in slot 0. Errors carry the qualified function name and
// the source position of the failing node.
func CompileFunction(fn *ast.FuncDecl, env *Env) (*FunctionBody, error) {
	c := &compiler{
		env:    env,
		name:   fn.QualifiedName(),
		result: fn.Result,
		e:      emit.NewEmitter(),
		locals: newLocals(),
	}

	if fn.IsMethod() {
		if !env.Registry.Contains(fn.Receiver) {
			return nil, c.fail(fn.Pos, errors.KindUnknownType, "receiver type %s is not a record", fn.Receiver)
		}
		c.receiver = fn.Receiver
		c.locals.param(SelfName, ast.RecordType(fn.Receiver))
	}
	for _, p := range fn.Params {
		if p.Type.IsVoid() {
			return nil, c.fail(p.Pos, errors.KindTypeMismatch, "parameter %s has no value type", p.Name)
		}
		c.locals.param(p.Name, p.Type)
	}

	if err := c.body(fn.Body); err != nil {
		return nil, err
	}

	out := &FunctionBody{
		Name:   c.name,
		Type:   Signature(fn),
		Locals: c.locals.declared(),
		Instrs: c.e.Instrs(),
	}
	Logger().Debug("function compiled",
		zap.String("function", out.Name),
		zap.String("type", out.Type.String()),
		zap.Int("locals", len(out.Locals)),
		zap.Int("instructions", len(out.Instrs)))
	return out, nil
}

// body compiles the top-level statements. A trailing expression statement
// with a value is the implicit return value; a function with a result and
// no tail ends in unreachable, which only executes if a path forgot to
// return.
func (c *compiler) body(stmts []ast.Stmt) error {
	var tail ast.Expr
	if !c.result.IsVoid() && len(stmts) > 0 {
		if es, ok := stmts[len(stmts)-1].(*ast.ExprStmt); ok && !c.typeOf(es.X).IsVoid() {
			tail = es.X
			stmts = stmts[:len(stmts)-1]
		}
	}
	if err := c.stmts(stmts); err != nil {
		return err
	}
	switch {
	case tail != nil:
		if err := c.exprAs(tail, c.result); err != nil {
			return err
		}
	case !c.result.IsVoid():
		c.e.Unreachable()
	}
	c.e.End()
	return nil
}

func (c *compiler) fail(pos ast.Pos, kind errors.Kind, format string, args ...any) error {
	return errors.New(errors.PhaseCodegen, kind).
		Decl(c.name).
		Pos(errors.Position(pos)).
		Detail(format, args...).
		Build()
}

func (c *compiler) unsupported(pos ast.Pos, construct string) error {
	return errors.New(errors.PhaseCodegen, errors.KindUnsupported).
		Decl(c.name).
		Pos(errors.Position(pos)).
		Value(construct).
		Detail("%s", construct).
		Build()
}

func (c *compiler) mismatch(pos ast.Pos, want, got ast.Type) error {
	return errors.New(errors.PhaseCodegen, errors.KindTypeMismatch).
		Decl(c.name).
		Pos(errors.Position(pos)).
		Value(got.String()).
		Detail("expected %s, got %s", want, got).
		Build()
}
