package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which compiler stage produced the error
type Phase string

const (
	PhaseLayout   Phase = "layout"   // record layout computation
	PhaseAlloc    Phase = "alloc"    // allocator installation
	PhaseCodegen  Phase = "codegen"  // function lowering
	PhaseAssemble Phase = "assemble" // module assembly
	PhaseDecode   Phase = "decode"   // AST interchange decoding
	PhaseRuntime  Phase = "runtime"  // executing compiled modules
)

// Kind categorizes the error
type Kind string

const (
	// layout
	KindCyclicInheritance    Kind = "cyclic_inheritance"
	KindUnknownParent        Kind = "unknown_parent"
	KindDuplicateField       Kind = "duplicate_field"
	KindDuplicateType        Kind = "duplicate_type"
	KindUnsupportedFieldType Kind = "unsupported_field_type"

	// alloc
	KindInvalidConfig Kind = "invalid_config"

	// codegen
	KindUnsupported         Kind = "unsupported"
	KindBreakOutsideLoop    Kind = "break_outside_loop"
	KindContinueOutsideLoop Kind = "continue_outside_loop"
	KindUnknownIdentifier   Kind = "unknown_identifier"
	KindUnknownFunction     Kind = "unknown_function"
	KindUnknownType         Kind = "unknown_type"
	KindUnknownField        Kind = "unknown_field"
	KindMissingField        Kind = "missing_field"
	KindTypeMismatch        Kind = "type_mismatch"
	KindArityMismatch       Kind = "arity_mismatch"

	// assemble
	KindMissingBody     Kind = "missing_body"
	KindDuplicateExport Kind = "duplicate_export"
	KindInvalidModule   Kind = "invalid_module"

	// decode and runtime
	KindInvalidData   Kind = "invalid_data"
	KindInvalidInput  Kind = "invalid_input"
	KindNotFound      Kind = "not_found"
	KindInstantiation Kind = "instantiation"
	KindTrap          Kind = "trap"
)

// Position is a 1-based source location. The zero value means unknown.
type Position struct {
	Line   int
	Column int
}

// IsValid reports whether the position carries a line number.
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Error is the structured error type used by every compiler stage
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Decl   string // declaration being compiled, e.g. "sum" or "Counter.increment"
	Detail string
	Path   []string
	Pos    Position
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Decl != "" {
		b.WriteString(" in ")
		b.WriteString(e.Decl)
	}
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	if e.Pos.IsValid() {
		b.WriteString(" (")
		b.WriteString(e.Pos.String())
		b.WriteByte(')')
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Only Phase and Kind are
// compared, so package-level sentinels match any error of their category.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// WithDecl returns a copy of e attributed to decl unless it already names one.
func (e *Error) WithDecl(decl string) *Error {
	if e.Decl != "" {
		return e
	}
	c := *e
	c.Decl = decl
	return &c
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Decl sets the declaration name
func (b *Builder) Decl(name string) *Builder {
	b.err.Decl = name
	return b
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// At sets the source position
func (b *Builder) At(line, column int) *Builder {
	b.err.Pos = Position{Line: line, Column: column}
	return b
}

// Pos sets the source position from a Position value
func (b *Builder) Pos(p Position) *Builder {
	b.err.Pos = p
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinel returns a bare error usable as an errors.Is target
func Sentinel(phase Phase, kind Kind) *Error {
	return &Error{Phase: phase, Kind: kind}
}

// Convenience constructors for common error patterns

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, construct string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: construct,
		Value:  construct,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Value:  name,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Trap creates a runtime trap error for a call into the named export
func Trap(export string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindTrap,
		Detail: fmt.Sprintf("call %q trapped", export),
		Value:  export,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
