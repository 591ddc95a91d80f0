// Package errors provides structured error types for the compiler.
//
// Errors are categorized by Phase (which stage failed) and Kind (error
// category). The Error type carries the failing declaration, field path,
// source position and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCodegen, errors.KindUnknownField).
//		Decl("Counter.increment").
//		Path("Counter", "total").
//		At(12, 4).
//		Detail("record Counter has no field %q", "total").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Unsupported(errors.PhaseCodegen, "lambda")
//
// errors.Is compares Phase and Kind only, so a bare Sentinel value matches
// every error of its category regardless of detail.
package errors
