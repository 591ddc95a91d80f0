package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-compiler/errors"
)

// Sentinels for errors.Is checks.
var (
	ErrTrap          = errors.Sentinel(errors.PhaseRuntime, errors.KindTrap)
	ErrNotFound      = errors.Sentinel(errors.PhaseRuntime, errors.KindNotFound)
	ErrInvalidModule = errors.Sentinel(errors.PhaseRuntime, errors.KindInvalidModule)
	ErrInstantiation = errors.Sentinel(errors.PhaseRuntime, errors.KindInstantiation)
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

// WazeroEngine loads and runs compiled modules on a wazero runtime.
// Host modules registered on the engine are visible to every module it
// loads afterwards.
type WazeroEngine struct {
	runtime wazero.Runtime
	hosts   map[string]api.Module
	hostsMu sync.Mutex
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &WazeroEngine{runtime: runtime, hosts: make(map[string]api.Module)}, nil
}

// HostFunc is a Go function exported to guests under a host module.
// Params and Results are the wasm signature the guest imports it with.
type HostFunc struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	Func    api.GoModuleFunc
}

// RegisterHostModule instantiates a host module named module exporting
// funcs. It must be called before loading modules that import from it.
func (e *WazeroEngine) RegisterHostModule(ctx context.Context, module string, funcs []HostFunc) error {
	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()

	if _, ok := e.hosts[module]; ok {
		return errors.New(errors.PhaseRuntime, errors.KindInstantiation).
			Value(module).
			Detail("host module %q already registered", module).
			Build()
	}

	builder := e.runtime.NewHostModuleBuilder(module)
	for _, hf := range funcs {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(hf.Func, hf.Params, hf.Results).
			Export(hf.Name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return errors.Instantiation(err)
	}
	e.hosts[module] = mod

	Logger().Debug("host module registered",
		zap.String("module", module),
		zap.Int("functions", len(funcs)))
	return nil
}

// LoadModule compiles a binary module for instantiation.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidModule, err, "compile failed")
	}
	return &WazeroModule{engine: e, compiled: compiled}, nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Export describes one exported function of a module.
type Export struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// WazeroModule is a compiled WASM module
type WazeroModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
}

// Exports lists the exported functions sorted by name.
func (m *WazeroModule) Exports() []Export {
	defs := m.compiled.ExportedFunctions()
	out := make([]Export, 0, len(defs))
	for name, def := range defs {
		out = append(out, Export{
			Name:    name,
			Params:  def.ParamTypes(),
			Results: def.ResultTypes(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Export returns the exported function called name.
func (m *WazeroModule) Export(name string) (Export, bool) {
	def, ok := m.compiled.ExportedFunctions()[name]
	if !ok {
		return Export{}, false
	}
	return Export{Name: name, Params: def.ParamTypes(), Results: def.ResultTypes()}, true
}

// Instantiate creates a fresh instance with its own memory and globals.
// Instances are anonymous, so a module can be instantiated any number of
// times.
func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	instance, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	inst := &WazeroInstance{
		instance:  instance,
		funcCache: make(map[string]api.Function),
	}
	if mem := instance.Memory(); mem != nil {
		inst.memory = &WazeroMemory{mem: mem}
	}
	return inst, nil
}

func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// WazeroInstance is an instantiated module. It is not safe for concurrent
// calls.
type WazeroInstance struct {
	instance  api.Module
	memory    *WazeroMemory
	funcCache map[string]api.Function
}

func (i *WazeroInstance) getExportedFunction(name string) api.Function {
	if fn, ok := i.funcCache[name]; ok {
		return fn
	}
	fn := i.instance.ExportedFunction(name)
	if fn != nil {
		i.funcCache[name] = fn
	}
	return fn
}

// Call invokes the export called name with raw wasm values. A trap inside
// the guest is reported as an errors.KindTrap error.
func (i *WazeroInstance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := i.getExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	if want := len(fn.Definition().ParamTypes()); want != len(args) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Decl(name).
			Detail("%s takes %d arguments, got %d", name, want, len(args)).
			Build()
	}
	results, err := fn.Call(ctx, args...)
	if err != nil {
		Logger().Debug("call trapped", zap.String("export", name), zap.Error(err))
		return nil, errors.Trap(name, err)
	}
	return results, nil
}

// CallI64 calls an export returning one i64.
func (i *WazeroInstance) CallI64(ctx context.Context, name string, args ...uint64) (int64, error) {
	v, err := i.callOne(ctx, name, api.ValueTypeI64, args)
	return int64(v), err
}

// CallI32 calls an export returning one i32.
func (i *WazeroInstance) CallI32(ctx context.Context, name string, args ...uint64) (int32, error) {
	v, err := i.callOne(ctx, name, api.ValueTypeI32, args)
	return api.DecodeI32(v), err
}

// CallF64 calls an export returning one f64.
func (i *WazeroInstance) CallF64(ctx context.Context, name string, args ...uint64) (float64, error) {
	v, err := i.callOne(ctx, name, api.ValueTypeF64, args)
	return api.DecodeF64(v), err
}

func (i *WazeroInstance) callOne(ctx context.Context, name string, want api.ValueType, args []uint64) (uint64, error) {
	fn := i.getExportedFunction(name)
	if fn == nil {
		return 0, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	results := fn.Definition().ResultTypes()
	if len(results) != 1 || results[0] != want {
		return 0, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Decl(name).
			Detail("%s returns %v, not a single %s", name, valueTypeNames(results), api.ValueTypeName(want)).
			Build()
	}
	out, err := i.Call(ctx, name, args...)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Global returns the current value of an exported global.
func (i *WazeroInstance) Global(name string) (uint64, bool) {
	g := i.instance.ExportedGlobal(name)
	if g == nil {
		return 0, false
	}
	return g.Get(), true
}

// Memory returns the instance's linear memory, or nil if it has none.
func (i *WazeroInstance) Memory() *WazeroMemory {
	return i.memory
}

// MemorySize returns the current linear memory size in bytes, or 0 if no memory.
func (i *WazeroInstance) MemorySize() uint32 {
	if i.memory == nil {
		return 0
	}
	return i.memory.Size()
}

func (i *WazeroInstance) Close(ctx context.Context) error {
	var err error
	if i.instance != nil {
		err = i.instance.Close(ctx)
		i.instance = nil
	}
	i.funcCache = nil
	i.memory = nil
	return err
}

func valueTypeNames(types []api.ValueType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return names
}
