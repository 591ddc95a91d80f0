// Package engine runs compiled modules on wazero.
//
// It is the execution side of the compiler's round trip: tests and the
// dolc CLI load a binary, instantiate it and call its exports with raw
// wasm values.
//
//	WazeroEngine   - owns a wazero runtime and registered host modules
//	WazeroModule   - a compiled binary, instantiable any number of times
//	WazeroInstance - one instance with its own memory and globals
//
// Host imports are provided by registering a host module before loading:
//
//	eng.RegisterHostModule(ctx, "env", []engine.HostFunc{{
//	    Name:   "log",
//	    Params: []api.ValueType{api.ValueTypeI64},
//	    Func:   func(ctx context.Context, m api.Module, stack []uint64) { ... },
//	}})
//
// Guest traps, including unreachable from a non-exhaustive match or a
// failed allocation, surface as errors matching ErrTrap.
package engine
