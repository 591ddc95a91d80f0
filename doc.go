// Package wasmcompiler compiles type-checked record-language programs to
// WebAssembly binary modules.
//
// A program is a set of record declarations (with single inheritance),
// fieldless enums, host imports and functions. Compilation runs in four
// stages, each in its own package:
//
//	wasmcompiler/        Root package: Compiler, Config, Result
//	├── ast/             Program tree and its JSON interchange form
//	├── layout/          Record memory layouts, parent fields first
//	├── alloc/           Bump allocator emitted into every module
//	├── codegen/         Function bodies as structured wasm instructions
//	├── assembler/       Type, function, global and export sections
//	├── wasm/            Binary encoding, decoding and validation
//	├── engine/          wazero wrapper for running compiled modules
//	└── errors/          Structured error types for every stage
//
// # Quick Start
//
//	prog, err := ast.DecodeJSON(f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := wasmcompiler.New().Compile(ctx, prog)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("out.wasm", res.Binary, 0o644)
//
// # Module Shape
//
// Every module defines one memory exported as "memory", the allocator
// functions alloc(size, align) and reset(), and one export per function:
// free functions by name, methods as "Type.method" taking the receiver
// pointer first, and a constructor "new_Type" per record taking its fields
// in layout order. Records are i32 pointers into linear memory.
//
// Imports come first in the function index space, then alloc and reset,
// then user functions, methods and constructors in declaration order.
// Output is deterministic for a given program regardless of
// Config.Workers.
//
// # Errors
//
// Errors are *errors.Error values carrying the stage, a kind and the
// failing declaration. When functions fail to compile, Compile reports
// every failure, combined with go.uber.org/multierr, and no binary:
//
//	for _, err := range multierr.Errors(err) {
//	    fmt.Println(err)
//	}
//
// # Logging
//
// Packages log through zap and are silent by default. SetLogger installs a
// logger for the compiler and all stages.
package wasmcompiler
