package ast

import "strings"

// TypeKind enumerates the static types the checker attaches to expressions.
type TypeKind int

const (
	Void TypeKind = iota
	I32
	I64
	F32
	F64
	Bool
	String
	Record
	Enum
)

// Type is a resolved static type. Name is set for Record and Enum.
type Type struct {
	Name string
	Kind TypeKind
}

// Common types.
var (
	VoidType   = Type{Kind: Void}
	I32Type    = Type{Kind: I32}
	I64Type    = Type{Kind: I64}
	F32Type    = Type{Kind: F32}
	F64Type    = Type{Kind: F64}
	BoolType   = Type{Kind: Bool}
	StringType = Type{Kind: String}
)

// RecordType returns the type of a pointer to the named record.
func RecordType(name string) Type {
	return Type{Kind: Record, Name: name}
}

// EnumType returns the type of the named enum.
func EnumType(name string) Type {
	return Type{Kind: Enum, Name: name}
}

// IsVoid reports whether t produces no value.
func (t Type) IsVoid() bool { return t.Kind == Void }

// IsFloat reports whether t is f32 or f64.
func (t Type) IsFloat() bool { return t.Kind == F32 || t.Kind == F64 }

// IsInteger reports whether t is i32 or i64.
func (t Type) IsInteger() bool { return t.Kind == I32 || t.Kind == I64 }

func (t Type) String() string {
	switch t.Kind {
	case Void:
		return "void"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Record:
		return t.Name
	case Enum:
		return "enum:" + t.Name
	default:
		return "unknown"
	}
}

// ParseType parses the textual form used in the JSON interchange: a
// primitive name, "enum:Name", "record:Name" or a bare record name.
func ParseType(s string) Type {
	switch s {
	case "", "void", "()":
		return VoidType
	case "i32":
		return I32Type
	case "i64", "int":
		return I64Type
	case "f32":
		return F32Type
	case "f64", "float":
		return F64Type
	case "bool":
		return BoolType
	case "string":
		return StringType
	}
	if name, ok := strings.CutPrefix(s, "enum:"); ok {
		return EnumType(name)
	}
	if name, ok := strings.CutPrefix(s, "record:"); ok {
		return RecordType(name)
	}
	return RecordType(s)
}
