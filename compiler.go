package wasmcompiler

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-compiler/alloc"
	"github.com/wippyai/wasm-compiler/assembler"
	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/codegen"
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/layout"
)

// Compiler turns programs into binary modules. A Compiler holds only its
// configuration; Compile may be called concurrently.
type Compiler struct {
	cfg Config
}

// Result is a successfully compiled program.
type Result struct {
	// Binary is the encoded, validated module.
	Binary []byte

	// Layouts holds the memory layout of every record.
	Layouts *layout.Registry

	// Functions are the compiled bodies in function index order, starting
	// with the first user function after alloc and reset.
	Functions []*codegen.FunctionBody
}

// New creates a compiler with the default configuration.
func New() *Compiler {
	return NewWithConfig(nil)
}

// NewWithConfig creates a compiler. A nil cfg uses defaults.
func NewWithConfig(cfg *Config) *Compiler {
	c := &Compiler{}
	if cfg != nil {
		c.cfg = *cfg
	}
	return c
}

// Config returns a copy of the compiler's configuration.
func (c *Compiler) Config() Config {
	return c.cfg
}

type jobKind int

const (
	jobFunction jobKind = iota
	jobMethod
	jobConstructor
)

// job is one function body to generate. Its index is fixed before any
// worker starts so output order never depends on scheduling.
type job struct {
	kind   jobKind
	fn     *ast.FuncDecl
	record string
	name   string
	index  uint32
}

// Compile lays out records, installs the allocator, compiles every
// function and assembles the module. Function errors are collected from
// all functions and returned together; no binary is produced when any
// stage fails.
func (c *Compiler) Compile(ctx context.Context, prog *ast.Program) (*Result, error) {
	if prog == nil {
		return nil, errors.InvalidInput(errors.PhaseCodegen, "nil program")
	}

	reg, err := layout.Compute(prog.Records)
	if err != nil {
		return nil, err
	}

	b := assembler.New(&assembler.Config{
		ModuleName:       prog.Name,
		MemoryExportName: c.cfg.MemoryExportName,
		MaxPages:         c.cfg.MaxPages,
		EmitNames:        c.cfg.EmitNames,
	})

	imports := make([]codegen.FuncRef, 0, len(prog.Imports))
	names := make(map[string]struct{}, len(prog.Imports))
	for i := range prog.Imports {
		imp := &prog.Imports[i]
		if _, dup := names[imp.Name]; dup || imp.Name == alloc.AllocName || imp.Name == alloc.ResetName {
			return nil, duplicateName(imp.Name, "import %s.%s reuses the name %s", imp.Module, imp.Name, imp.Name)
		}
		names[imp.Name] = struct{}{}
		ref := codegen.ImportRef(imp, 0)
		idx, err := b.AddImport(imp.Module, imp.Name, ref.Type)
		if err != nil {
			return nil, err
		}
		ref.Index = idx
		imports = append(imports, ref)
	}

	h, err := alloc.Install(b, c.cfg.heapBase(), c.cfg.initialPages())
	if err != nil {
		return nil, err
	}
	b.SetMemoryPages(h.MemoryPages())

	env := codegen.NewEnv(prog, reg, h)
	for _, ref := range imports {
		env.AddFunction(ref)
	}
	jobs, err := declare(prog, reg, env, b, names)
	if err != nil {
		return nil, err
	}

	bodies, err := c.compileAll(ctx, jobs, env)
	if err != nil {
		return nil, err
	}
	for i, body := range bodies {
		if err := b.SetBody(jobs[i].index, body.Locals, body.Instrs); err != nil {
			return nil, err
		}
	}

	if !c.cfg.DisableAllocatorExport {
		if err := b.ExportFunction(alloc.AllocName, h.AllocFunc()); err != nil {
			return nil, err
		}
		if err := b.ExportFunction(alloc.ResetName, h.ResetFunc()); err != nil {
			return nil, err
		}
	}
	for _, j := range jobs {
		if err := b.ExportFunction(j.name, j.index); err != nil {
			return nil, err
		}
	}

	bin, err := b.Build()
	if err != nil {
		return nil, err
	}
	Logger().Info("program compiled",
		zap.String("module", prog.Name),
		zap.Int("records", reg.Len()),
		zap.Int("functions", len(bodies)),
		zap.Int("bytes", len(bin)))

	return &Result{Binary: bin, Layouts: reg, Functions: bodies}, nil
}

// declare assigns function indices: free functions in declaration order,
// then methods by record and method order, then one constructor per
// record. Every entry is registered in env before compilation starts. The
// allocator and import names are reserved.
func declare(prog *ast.Program, reg *layout.Registry, env *codegen.Env, b *assembler.Builder, imports map[string]struct{}) ([]job, error) {
	var jobs []job
	seen := map[string]struct{}{alloc.AllocName: {}, alloc.ResetName: {}}
	for name := range imports {
		seen[name] = struct{}{}
	}
	add := func(j job) error {
		if _, dup := seen[j.name]; dup {
			return duplicateName(j.name, "function %s declared twice", j.name)
		}
		seen[j.name] = struct{}{}
		jobs = append(jobs, j)
		return nil
	}

	for i := range prog.Functions {
		fn := &prog.Functions[i]
		idx := b.DeclareFunction(fn.Name, codegen.Signature(fn))
		env.AddFunction(codegen.NewFuncRef(fn, idx))
		if err := add(job{kind: jobFunction, fn: fn, name: fn.Name, index: idx}); err != nil {
			return nil, err
		}
	}
	for i := range prog.Records {
		rec := &prog.Records[i]
		for j := range rec.Methods {
			fn := &rec.Methods[j]
			if fn.Receiver != rec.Name {
				m := *fn
				m.Receiver = rec.Name
				fn = &m
			}
			name := fn.QualifiedName()
			idx := b.DeclareFunction(name, codegen.Signature(fn))
			env.AddMethod(rec.Name, codegen.NewFuncRef(fn, idx))
			if err := add(job{kind: jobMethod, fn: fn, record: rec.Name, name: name, index: idx}); err != nil {
				return nil, err
			}
		}
	}
	for i := range prog.Records {
		l, _ := reg.Get(prog.Records[i].Name)
		ref := env.ConstructorRef(l, 0)
		ref.Index = b.DeclareFunction(ref.Name, ref.Type)
		env.AddConstructor(l.TypeName, ref)
		if err := add(job{kind: jobConstructor, record: l.TypeName, name: ref.Name, index: ref.Index}); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func duplicateName(name, format string, args ...any) error {
	return errors.New(errors.PhaseAssemble, errors.KindDuplicateExport).
		Decl(name).
		Detail(format, args...).
		Build()
}

// compileAll runs the jobs on a fixed pool of workers. Results and errors
// are stored by job position, so the combined error lists failures in
// function index order regardless of which worker finished first.
func (c *Compiler) compileAll(ctx context.Context, jobs []job, env *codegen.Env) ([]*codegen.FunctionBody, error) {
	bodies := make([]*codegen.FunctionBody, len(jobs))
	errs := make([]error, len(jobs))

	next := make(chan int)
	var wg sync.WaitGroup
	workers := min(c.cfg.workers(), len(jobs))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				bodies[i], errs[i] = compileJob(jobs[i], env)
			}
		}()
	}
	for i := range jobs {
		next <- i
	}
	close(next)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var combined error
	for _, err := range errs {
		combined = multierr.Append(combined, err)
	}
	if combined != nil {
		Logger().Debug("function compilation failed",
			zap.Int("errors", len(multierr.Errors(combined))))
		return nil, combined
	}
	return bodies, nil
}

func compileJob(j job, env *codegen.Env) (*codegen.FunctionBody, error) {
	switch j.kind {
	case jobConstructor:
		return codegen.CompileConstructor(j.record, env)
	default:
		return codegen.CompileFunction(j.fn, env)
	}
}
