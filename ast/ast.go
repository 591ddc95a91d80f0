package ast

import "fmt"

// Pos is a 1-based source position. The zero value means unknown.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is embedded by every AST node to carry its position.
type Node struct {
	Pos Pos
}

// Position returns the node's source position.
func (n Node) Position() Pos { return n.Pos }

// Typed is embedded by expressions to carry their checker-assigned type.
type Typed struct {
	Type Type
}

// StaticType returns the checker-assigned type of the expression.
func (t Typed) StaticType() Type { return t.Type }

// Program is a whole type-checked compilation unit.
type Program struct {
	Name      string
	Records   []RecordDecl
	Enums     []EnumDecl
	Imports   []ImportDecl
	Functions []FuncDecl
}

// RecordDecl declares a record type with an optional parent and methods.
type RecordDecl struct {
	Node
	Name    string
	Parent  string
	Fields  []FieldDecl
	Methods []FuncDecl
}

type FieldDecl struct {
	Node
	Name string
	Type Type
}

// EnumDecl declares a fieldless enum. Variants are numbered from zero.
type EnumDecl struct {
	Node
	Name     string
	Variants []string
}

// ImportDecl declares a host function. Calls use Name.
type ImportDecl struct {
	Node
	Module string
	Name   string
	Params []Param
	Result Type
}

// FuncDecl is a free function, or a method when Receiver names a record.
type FuncDecl struct {
	Node
	Name     string
	Receiver string
	Params   []Param
	Result   Type
	Body     []Stmt
}

// IsMethod reports whether the function takes an implicit receiver.
func (f *FuncDecl) IsMethod() bool { return f.Receiver != "" }

// QualifiedName returns "Type.method" for methods and Name otherwise.
func (f *FuncDecl) QualifiedName() string {
	if f.Receiver != "" {
		return f.Receiver + "." + f.Name
	}
	return f.Name
}

type Param struct {
	Node
	Name string
	Type Type
}

// Stmt is implemented by all statement nodes.
type Stmt interface {
	Position() Pos
	stmtNode()
}

// Expr is implemented by all expression nodes.
type Expr interface {
	Position() Pos
	StaticType() Type
	exprNode()
}

// Statements

type LetStmt struct {
	Node
	Name  string
	Type  Type
	Value Expr
}

// AssignStmt stores Value into Target, an Ident or a MemberExpr.
type AssignStmt struct {
	Node
	Target Expr
	Value  Expr
}

// ReturnStmt returns Value, which is nil for a bare return.
type ReturnStmt struct {
	Node
	Value Expr
}

type ExprStmt struct {
	Node
	X Expr
}

type WhileStmt struct {
	Node
	Cond Expr
	Body []Stmt
}

// ForStmt iterates Var over the half-open range [Start, End).
type ForStmt struct {
	Node
	Var   string
	Start Expr
	End   Expr
	Body  []Stmt
}

type LoopStmt struct {
	Node
	Body []Stmt
}

type BreakStmt struct {
	Node
}

type ContinueStmt struct {
	Node
}

func (*LetStmt) stmtNode()      {}
func (*AssignStmt) stmtNode()   {}
func (*ReturnStmt) stmtNode()   {}
func (*ExprStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()    {}
func (*ForStmt) stmtNode()      {}
func (*LoopStmt) stmtNode()     {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}

// Expressions

type IntLit struct {
	Node
	Typed
	Value int64
}

type FloatLit struct {
	Node
	Typed
	Value float64
}

type BoolLit struct {
	Node
	Typed
	Value bool
}

type StringLit struct {
	Node
	Typed
	Value string
}

type CharLit struct {
	Node
	Typed
	Value rune
}

type NullLit struct {
	Node
	Typed
}

// Ident reads a local, a parameter, or inside a method a receiver field.
// "self" names the receiver itself and "self.x" a receiver field.
type Ident struct {
	Node
	Typed
	Name string
}

type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
	OpRem BinaryOp = "%"
	OpEq  BinaryOp = "=="
	OpNe  BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpLe  BinaryOp = "<="
	OpGt  BinaryOp = ">"
	OpGe  BinaryOp = ">="
	OpAnd BinaryOp = "&&"
	OpOr  BinaryOp = "||"
)

// IsComparison reports whether op yields a bool from two operands.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

type BinaryExpr struct {
	Node
	Typed
	Op    BinaryOp
	Left  Expr
	Right Expr
}

type UnaryOp string

const (
	OpNeg UnaryOp = "-"
	OpNot UnaryOp = "!"
)

type UnaryExpr struct {
	Node
	Typed
	Op UnaryOp
	X  Expr
}

// CallExpr calls a free function or host import by name.
type CallExpr struct {
	Node
	Typed
	Func string
	Args []Expr
}

// MethodCallExpr calls Method statically on the receiver's record type.
type MethodCallExpr struct {
	Node
	Typed
	Receiver Expr
	Method   string
	Args     []Expr
}

// IfExpr is a conditional. Else is nil, a *BlockExpr or a nested *IfExpr.
type IfExpr struct {
	Node
	Typed
	Cond Expr
	Then *BlockExpr
	Else Expr
}

// BlockExpr runs Stmts and yields Tail when present.
type BlockExpr struct {
	Node
	Typed
	Stmts []Stmt
	Tail  Expr
}

type MatchExpr struct {
	Node
	Typed
	Scrutinee Expr
	Arms      []MatchArm
}

type MatchArm struct {
	Node
	Pattern Pattern
	Body    Expr
}

// MemberExpr reads Field from the record X points to.
type MemberExpr struct {
	Node
	Typed
	X     Expr
	Field string
}

// StructLit allocates and initializes a record.
type StructLit struct {
	Node
	Typed
	TypeName string
	Fields   []FieldInit
}

type FieldInit struct {
	Node
	Name  string
	Value Expr
}

// EnumVariantExpr is a fieldless variant such as Color.Red.
type EnumVariantExpr struct {
	Node
	Typed
	Enum    string
	Variant string
}

// Forms the checker accepts but code generation does not lower.

type LambdaExpr struct {
	Node
	Typed
	Params []Param
	Body   Expr
}

type CastExpr struct {
	Node
	Typed
	X  Expr
	To Type
}

type TryExpr struct {
	Node
	Typed
	X Expr
}

type QuoteExpr struct {
	Node
	Typed
	X Expr
}

type EvalExpr struct {
	Node
	Typed
	X Expr
}

type ReflectExpr struct {
	Node
	Typed
	TypeName string
}

type MacroExpr struct {
	Node
	Typed
	Name string
	Args []Expr
}

type ListLit struct {
	Node
	Typed
	Elems []Expr
}

type TupleLit struct {
	Node
	Typed
	Elems []Expr
}

func (*IntLit) exprNode()          {}
func (*FloatLit) exprNode()        {}
func (*BoolLit) exprNode()         {}
func (*StringLit) exprNode()       {}
func (*CharLit) exprNode()         {}
func (*NullLit) exprNode()         {}
func (*Ident) exprNode()           {}
func (*BinaryExpr) exprNode()      {}
func (*UnaryExpr) exprNode()       {}
func (*CallExpr) exprNode()        {}
func (*MethodCallExpr) exprNode()  {}
func (*IfExpr) exprNode()          {}
func (*BlockExpr) exprNode()       {}
func (*MatchExpr) exprNode()       {}
func (*MemberExpr) exprNode()      {}
func (*StructLit) exprNode()       {}
func (*EnumVariantExpr) exprNode() {}
func (*LambdaExpr) exprNode()      {}
func (*CastExpr) exprNode()        {}
func (*TryExpr) exprNode()         {}
func (*QuoteExpr) exprNode()       {}
func (*EvalExpr) exprNode()        {}
func (*ReflectExpr) exprNode()     {}
func (*MacroExpr) exprNode()       {}
func (*ListLit) exprNode()         {}
func (*TupleLit) exprNode()        {}

// Pattern is implemented by match patterns.
type Pattern interface {
	Position() Pos
	patternNode()
}

// LiteralPattern matches when the scrutinee equals Value, an int, bool,
// float or enum variant literal.
type LiteralPattern struct {
	Node
	Value Expr
}

type WildcardPattern struct {
	Node
}

// BindPattern matches anything and binds the scrutinee to Name.
type BindPattern struct {
	Node
	Name string
}

// ConstructorPattern destructures a variant. It is not lowered.
type ConstructorPattern struct {
	Node
	Name string
	Args []Pattern
}

func (*LiteralPattern) patternNode()     {}
func (*WildcardPattern) patternNode()    {}
func (*BindPattern) patternNode()        {}
func (*ConstructorPattern) patternNode() {}

// Record returns the record with the given name.
func (p *Program) Record(name string) (*RecordDecl, bool) {
	for i := range p.Records {
		if p.Records[i].Name == name {
			return &p.Records[i], true
		}
	}
	return nil, false
}

// Enum returns the enum with the given name.
func (p *Program) Enum(name string) (*EnumDecl, bool) {
	for i := range p.Enums {
		if p.Enums[i].Name == name {
			return &p.Enums[i], true
		}
	}
	return nil, false
}

// VariantIndex returns the discriminant of variant, or -1.
func (e *EnumDecl) VariantIndex(variant string) int {
	for i, v := range e.Variants {
		if v == variant {
			return i
		}
	}
	return -1
}
