package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	wasmcompiler "github.com/wippyai/wasm-compiler"
	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/engine"
)

func main() {
	var (
		inFile      = flag.String("in", "", "Path to program JSON")
		outFile     = flag.String("out", "", "Output wasm file (default: input name with .wasm)")
		funcName    = flag.String("call", "", "Function to call after compiling (optional)")
		argList     = flag.String("args", "", "Call arguments (comma-separated)")
		list        = flag.Bool("list", false, "List exported functions and exit")
		dump        = flag.Bool("dump", false, "Print compiled function bodies")
		names       = flag.Bool("names", false, "Emit a name section")
		workers     = flag.Int("workers", 0, "Compilation workers (0 = GOMAXPROCS)")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *inFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: dolc -in <prog.json> [-out prog.wasm] [-dump] [-names]")
		fmt.Fprintln(os.Stderr, "       dolc -in <prog.json> -list")
		fmt.Fprintln(os.Stderr, "       dolc -in <prog.json> -call name [-args 1,2]")
		fmt.Fprintln(os.Stderr, "       dolc -in <prog.json> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		wasmcompiler.SetLogger(logger)
		engine.SetLogger(logger.Named("engine"))
	}

	cfg := &wasmcompiler.Config{Workers: *workers, EmitNames: *names}
	res, err := compile(*inFile, cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(*inFile, res.Binary); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(res, *inFile, *outFile, *funcName, *argList, *list, *dump); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func compile(inFile string, cfg *wasmcompiler.Config) (*wasmcompiler.Result, error) {
	f, err := os.Open(inFile)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	defer f.Close()

	prog, err := ast.DecodeJSON(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if prog.Name == "" {
		prog.Name = strings.TrimSuffix(filepath.Base(inFile), filepath.Ext(inFile))
	}
	return wasmcompiler.NewWithConfig(cfg).Compile(context.Background(), prog)
}

// printError prints every error combined into err on its own line.
func printError(err error) {
	errs := multierr.Errors(err)
	if len(errs) <= 1 {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "%d errors:\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  %v\n", e)
	}
}

func run(res *wasmcompiler.Result, inFile, outFile, funcName, argList string, listOnly, dump bool) error {
	ctx := context.Background()

	if dump {
		for _, body := range res.Functions {
			fmt.Println(body.String())
		}
	}

	eng, err := engine.NewWazeroEngine(ctx)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close(ctx)

	// No host modules are registered; programs with imports can be listed
	// and written but not called.
	mod, err := eng.LoadModule(ctx, res.Binary)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}

	fmt.Printf("Records: %d\n", res.Layouts.Len())
	for _, name := range res.Layouts.Names() {
		l, _ := res.Layouts.Get(name)
		fmt.Printf("  %s size=%d align=%d\n", name, l.Size, l.Alignment)
	}
	fmt.Printf("\nExported functions:\n")
	for _, exp := range mod.Exports() {
		fmt.Printf("  %s\n", formatExport(exp))
	}

	if listOnly {
		return nil
	}

	if outFile == "" {
		outFile = strings.TrimSuffix(inFile, filepath.Ext(inFile)) + ".wasm"
	}
	if err := os.WriteFile(outFile, res.Binary, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outFile, err)
	}
	fmt.Printf("\nWrote %s (%d bytes)\n", outFile, len(res.Binary))

	if funcName == "" {
		return nil
	}
	exp, ok := mod.Export(funcName)
	if !ok {
		return fmt.Errorf("no exported function %q", funcName)
	}
	var fields []string
	if argList != "" {
		fields = strings.Split(argList, ",")
	}
	args, err := parseArgs(fields, exp.Params)
	if err != nil {
		return err
	}

	instance, err := mod.Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer instance.Close(ctx)

	fmt.Printf("\nCalling %s(%s)...\n", funcName, strings.Join(fields, ", "))
	results, err := instance.Call(ctx, funcName, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("Result: %s\n", formatResults(results, exp.Results))
	return nil
}

func formatExport(exp engine.Export) string {
	params := make([]string, len(exp.Params))
	for i, p := range exp.Params {
		params[i] = api.ValueTypeName(p)
	}
	result := ""
	if len(exp.Results) > 0 {
		result = " -> " + api.ValueTypeName(exp.Results[0])
	}
	return exp.Name + "(" + strings.Join(params, ", ") + ")" + result
}

// parseArgs encodes decimal argument strings at the export's param types.
func parseArgs(fields []string, types []api.ValueType) ([]uint64, error) {
	if len(fields) != len(types) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(types), len(fields))
	}
	args := make([]uint64, len(fields))
	for i, s := range fields {
		v, err := parseValue(strings.TrimSpace(s), types[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func parseValue(s string, t api.ValueType) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		switch s {
		case "true":
			return 1, nil
		case "false":
			return 0, nil
		}
		v, err := strconv.ParseInt(s, 10, 32)
		return api.EncodeI32(int32(v)), err
	case api.ValueTypeI64:
		v, err := strconv.ParseInt(s, 10, 64)
		return api.EncodeI64(v), err
	case api.ValueTypeF32:
		v, err := strconv.ParseFloat(s, 32)
		return api.EncodeF32(float32(v)), err
	case api.ValueTypeF64:
		v, err := strconv.ParseFloat(s, 64)
		return api.EncodeF64(v), err
	default:
		return 0, fmt.Errorf("unsupported type %s", api.ValueTypeName(t))
	}
}

func formatResults(results []uint64, types []api.ValueType) string {
	if len(results) == 0 {
		return "()"
	}
	out := make([]string, len(results))
	for i, r := range results {
		switch types[i] {
		case api.ValueTypeI32:
			out[i] = strconv.FormatInt(int64(api.DecodeI32(r)), 10)
		case api.ValueTypeI64:
			out[i] = strconv.FormatInt(int64(r), 10)
		case api.ValueTypeF32:
			out[i] = strconv.FormatFloat(float64(api.DecodeF32(r)), 'g', -1, 32)
		case api.ValueTypeF64:
			out[i] = strconv.FormatFloat(api.DecodeF64(r), 'g', -1, 64)
		default:
			out[i] = strconv.FormatUint(r, 10)
		}
	}
	return strings.Join(out, ", ")
}
