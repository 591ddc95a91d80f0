package codegen_test

import (
	"testing"

	"github.com/wippyai/wasm-compiler/alloc"
	"github.com/wippyai/wasm-compiler/assembler"
	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/codegen"
	"github.com/wippyai/wasm-compiler/layout"
	"github.com/wippyai/wasm-compiler/wasm"
)

// AST shorthands. Positions are set only where a test inspects them.

func lit(v int64) ast.Expr { return &ast.IntLit{Value: v} }
func flit(v float64) ast.Expr { return &ast.FloatLit{Value: v} }
func boolean(v bool) ast.Expr { return &ast.BoolLit{Value: v} }
func id(name string) ast.Expr { return &ast.Ident{Name: name} }

func bin(op ast.BinaryOp, l, r ast.Expr) ast.Expr {
	return &ast.BinaryExpr{Op: op, Left: l, Right: r}
}

func ret(e ast.Expr) ast.Stmt { return &ast.ReturnStmt{Value: e} }
func let(name string, e ast.Expr) ast.Stmt { return &ast.LetStmt{Name: name, Value: e} }
func expr(e ast.Expr) ast.Stmt { return &ast.ExprStmt{X: e} }

func assign(name string, e ast.Expr) ast.Stmt {
	return &ast.AssignStmt{Target: id(name), Value: e}
}

func while(cond ast.Expr, body ...ast.Stmt) ast.Stmt {
	return &ast.WhileStmt{Cond: cond, Body: body}
}

func ifThen(cond ast.Expr, then []ast.Stmt, els []ast.Stmt) ast.Expr {
	x := &ast.IfExpr{Cond: cond, Then: &ast.BlockExpr{Stmts: then}}
	if els != nil {
		x.Else = &ast.BlockExpr{Stmts: els}
	}
	return x
}

func param(name string, t ast.Type) ast.Param { return ast.Param{Name: name, Type: t} }

func fn(name string, params []ast.Param, result ast.Type, body ...ast.Stmt) ast.FuncDecl {
	return ast.FuncDecl{Name: name, Params: params, Result: result, Body: body}
}

func field(name string, t ast.Type) ast.FieldDecl { return ast.FieldDecl{Name: name, Type: t} }

// newEnv lays out prog's records, installs an allocator and registers
// every function, method and constructor in the order the driver does.
func newEnv(t *testing.T, prog *ast.Program) *codegen.Env {
	t.Helper()
	reg, err := layout.Compute(prog.Records)
	if err != nil {
		t.Fatalf("layout.Compute: %v", err)
	}
	b := assembler.New(nil)
	var imports []codegen.FuncRef
	for i := range prog.Imports {
		imp := &prog.Imports[i]
		ref := codegen.ImportRef(imp, 0)
		idx, err := b.AddImport(imp.Module, imp.Name, ref.Type)
		if err != nil {
			t.Fatalf("AddImport: %v", err)
		}
		ref.Index = idx
		imports = append(imports, ref)
	}
	h, err := alloc.Install(b, alloc.DefaultHeapBase, alloc.DefaultInitialPages)
	if err != nil {
		t.Fatalf("alloc.Install: %v", err)
	}
	env := codegen.NewEnv(prog, reg, h)
	for _, ref := range imports {
		env.AddFunction(ref)
	}

	next := uint32(b.NumFunctions())
	for i := range prog.Functions {
		env.AddFunction(codegen.NewFuncRef(&prog.Functions[i], next))
		next++
	}
	for i := range prog.Records {
		rec := &prog.Records[i]
		for j := range rec.Methods {
			env.AddMethod(rec.Name, codegen.NewFuncRef(&rec.Methods[j], next))
			next++
		}
	}
	for i := range prog.Records {
		l, _ := reg.Get(prog.Records[i].Name)
		env.AddConstructor(l.TypeName, env.ConstructorRef(l, next))
		next++
	}
	return env
}

func compile(t *testing.T, prog *ast.Program, f *ast.FuncDecl) *codegen.FunctionBody {
	t.Helper()
	body, err := codegen.CompileFunction(f, newEnv(t, prog))
	if err != nil {
		t.Fatalf("CompileFunction(%s): %v", f.QualifiedName(), err)
	}
	return body
}

// branchDepths returns the label immediates of br and br_if in order.
func branchDepths(instrs []wasm.Instruction) []uint32 {
	var depths []uint32
	for _, in := range instrs {
		if in.Opcode == wasm.OpBr || in.Opcode == wasm.OpBrIf {
			depths = append(depths, in.Imm.(wasm.BranchImm).LabelIdx)
		}
	}
	return depths
}

func opcodes(instrs []wasm.Instruction) []byte {
	ops := make([]byte, len(instrs))
	for i, in := range instrs {
		ops[i] = in.Opcode
	}
	return ops
}

func hasOpcode(instrs []wasm.Instruction, op byte) bool {
	for _, in := range instrs {
		if in.Opcode == op {
			return true
		}
	}
	return false
}

func memargs(instrs []wasm.Instruction, op byte) []wasm.MemoryImm {
	var out []wasm.MemoryImm
	for _, in := range instrs {
		if in.Opcode == op {
			out = append(out, in.Imm.(wasm.MemoryImm))
		}
	}
	return out
}
