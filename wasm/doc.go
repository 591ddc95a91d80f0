// Package wasm models and encodes the subset of the WebAssembly binary format
// produced by the compiler.
//
// The module model covers the type, import, function, memory, global,
// export and code sections. Instructions are limited to the MVP numeric,
// memory, variable and structured control opcodes.
//
// # Encoding
//
//	m := &wasm.Module{
//	    Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI64}}},
//	    Funcs: []uint32{0},
//	    Code: []wasm.FuncBody{{Code: wasm.EncodeInstructions([]wasm.Instruction{
//	        {Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: 42}},
//	        {Opcode: wasm.OpEnd},
//	    })}},
//	}
//	data := m.Encode()
//
// # Parsing
//
// ParseModule reads back modules written by Encode. It is used by tests and
// by the CLI dump mode; it is not a general purpose decoder.
//
//	parsed, err := wasm.ParseModuleValidate(data)
//
// # Validation
//
// Validate checks index bounds, export uniqueness, memory limits, global
// initializers and the structured nesting of every body, including that
// every br/br_if depth refers to an open frame. Operand stack typing is left
// to the runtime.
package wasm
