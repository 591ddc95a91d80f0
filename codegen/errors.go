package codegen

import "github.com/wippyai/wasm-compiler/errors"

// Sentinels for errors.Is checks.
var (
	ErrUnsupported         = errors.Sentinel(errors.PhaseCodegen, errors.KindUnsupported)
	ErrBreakOutsideLoop    = errors.Sentinel(errors.PhaseCodegen, errors.KindBreakOutsideLoop)
	ErrContinueOutsideLoop = errors.Sentinel(errors.PhaseCodegen, errors.KindContinueOutsideLoop)
	ErrUnknownIdentifier   = errors.Sentinel(errors.PhaseCodegen, errors.KindUnknownIdentifier)
	ErrUnknownFunction     = errors.Sentinel(errors.PhaseCodegen, errors.KindUnknownFunction)
	ErrUnknownType         = errors.Sentinel(errors.PhaseCodegen, errors.KindUnknownType)
	ErrUnknownField        = errors.Sentinel(errors.PhaseCodegen, errors.KindUnknownField)
	ErrMissingField        = errors.Sentinel(errors.PhaseCodegen, errors.KindMissingField)
	ErrTypeMismatch        = errors.Sentinel(errors.PhaseCodegen, errors.KindTypeMismatch)
	ErrArityMismatch       = errors.Sentinel(errors.PhaseCodegen, errors.KindArityMismatch)
)
