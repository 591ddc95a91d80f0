// Package codegen lowers type-checked functions to WebAssembly instructions.
//
// Each function is compiled independently against a shared, read-only Env
// that holds the record layouts, the allocator handle and the function
// table. The compiler keeps a stack of open control frames so break and
// continue resolve to relative branch depths:
//
//	while c { body }   block; loop; c; i32.eqz; br_if 1; body; br 0; end; end
//	loop { body }      block; loop; body; br 0; end; end
//	for v in a..b      v = a; block; loop; v >= b; br_if 1;
//	                   block body end; v += 1; br 0; end; end
//
// Records are pointers into linear memory. Field reads are single loads
// with the field offset in the memarg; struct literals call the allocator
// and trap on its zero failure sentinel.
//
// Methods take the receiver as parameter 0. Inside a method a bare
// identifier that is not a local resolves to a receiver field, and
// self.a.b walks nested record fields.
//
// Numeric literals take the type the context expects, so 1 in an f64
// position is emitted as f64.const 1. Where no context exists integer
// literals are i64 and float literals f64.
//
// Logical && and || evaluate both operands and combine them with i32.and
// and i32.or. Operands are expected to be free of side effects.
package codegen
