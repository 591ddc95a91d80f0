package ast

import (
	"encoding/json"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/wasm-compiler/errors"
)

// DecodeJSON reads a program in the JSON interchange form. Every statement,
// expression and pattern is an object tagged with "kind"; positions are
// optional "line" and "col" members.
//
//	{"name": "demo",
//	 "functions": [{"name": "one", "result": "i64",
//	   "body": [{"kind": "return", "value": {"kind": "int", "value": 1}}]}]}
func DecodeJSON(r io.Reader) (*Program, error) {
	var raw jsonProgram
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "parse program json")
	}
	d := &decoder{}
	prog := d.program(&raw)
	if d.err != nil {
		return nil, d.err
	}
	return prog, nil
}

type jsonProgram struct {
	Name      string       `json:"name"`
	Records   []jsonRecord `json:"records"`
	Enums     []jsonEnum   `json:"enums"`
	Imports   []jsonImport `json:"imports"`
	Functions []jsonFunc   `json:"functions"`
}

type jsonPos struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

func (p jsonPos) pos() Pos { return Pos{Line: p.Line, Column: p.Col} }

type jsonRecord struct {
	jsonPos
	Name    string      `json:"name"`
	Parent  string      `json:"parent"`
	Fields  []jsonParam `json:"fields"`
	Methods []jsonFunc  `json:"methods"`
}

type jsonEnum struct {
	jsonPos
	Name     string   `json:"name"`
	Variants []string `json:"variants"`
}

type jsonImport struct {
	jsonPos
	Module string      `json:"module"`
	Name   string      `json:"name"`
	Params []jsonParam `json:"params"`
	Result string      `json:"result"`
}

type jsonFunc struct {
	jsonPos
	Name   string            `json:"name"`
	Params []jsonParam       `json:"params"`
	Result string            `json:"result"`
	Body   []json.RawMessage `json:"body"`
}

type jsonParam struct {
	jsonPos
	Name string `json:"name"`
	Type string `json:"type"`
}

// jsonNode is the union of all members used by statements, expressions and
// patterns. Only the members relevant to Kind are read.
type jsonNode struct {
	jsonPos
	Kind      string            `json:"kind"`
	Type      string            `json:"type"`
	Name      string            `json:"name"`
	Value     json.RawMessage   `json:"value"`
	Target    json.RawMessage   `json:"target"`
	Expr      json.RawMessage   `json:"expr"`
	Cond      json.RawMessage   `json:"cond"`
	Then      json.RawMessage   `json:"then"`
	Else      json.RawMessage   `json:"else"`
	Body      json.RawMessage   `json:"body"`
	Var       string            `json:"var"`
	Start     json.RawMessage   `json:"start"`
	End       json.RawMessage   `json:"end"`
	Op        string            `json:"op"`
	Left      json.RawMessage   `json:"left"`
	Right     json.RawMessage   `json:"right"`
	Operand   json.RawMessage   `json:"operand"`
	Func      string            `json:"func"`
	Args      []json.RawMessage `json:"args"`
	Receiver  json.RawMessage   `json:"receiver"`
	Method    string            `json:"method"`
	Stmts     []json.RawMessage `json:"stmts"`
	Tail      json.RawMessage   `json:"tail"`
	Scrutinee json.RawMessage   `json:"scrutinee"`
	Arms      []jsonArm         `json:"arms"`
	Object    json.RawMessage   `json:"object"`
	Field     string            `json:"field"`
	TypeName  string            `json:"type_name"`
	Fields    []jsonFieldInit   `json:"fields"`
	Enum      string            `json:"enum"`
	Variant   string            `json:"variant"`
	Params    []jsonParam       `json:"params"`
	To        string            `json:"to"`
	Elems     []json.RawMessage `json:"elems"`
}

type jsonArm struct {
	jsonPos
	Pattern json.RawMessage `json:"pattern"`
	Body    json.RawMessage `json:"body"`
}

type jsonFieldInit struct {
	jsonPos
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// decoder keeps the first error and a path for error reporting.
type decoder struct {
	err  error
	path []string
}

func (d *decoder) push(seg string) { d.path = append(d.path, seg) }
func (d *decoder) pop()            { d.path = d.path[:len(d.path)-1] }

func (d *decoder) fail(p jsonPos, format string, args ...any) {
	if d.err != nil {
		return
	}
	path := append([]string(nil), d.path...)
	d.err = errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path(path...).
		At(p.Line, p.Col).
		Detail(format, args...).
		Build()
}

func (d *decoder) program(raw *jsonProgram) *Program {
	prog := &Program{Name: raw.Name}
	for i, r := range raw.Records {
		d.push("records")
		d.push(strconv.Itoa(i))
		rec := RecordDecl{Node: Node{Pos: r.pos()}, Name: r.Name, Parent: r.Parent}
		for _, f := range r.Fields {
			rec.Fields = append(rec.Fields, FieldDecl{Node: Node{Pos: f.pos()}, Name: f.Name, Type: ParseType(f.Type)})
		}
		for j := range r.Methods {
			d.push("methods")
			d.push(strconv.Itoa(j))
			m := d.function(&r.Methods[j])
			m.Receiver = r.Name
			rec.Methods = append(rec.Methods, m)
			d.pop()
			d.pop()
		}
		prog.Records = append(prog.Records, rec)
		d.pop()
		d.pop()
	}
	for _, e := range raw.Enums {
		prog.Enums = append(prog.Enums, EnumDecl{Node: Node{Pos: e.pos()}, Name: e.Name, Variants: e.Variants})
	}
	for _, imp := range raw.Imports {
		prog.Imports = append(prog.Imports, ImportDecl{
			Node:   Node{Pos: imp.pos()},
			Module: imp.Module,
			Name:   imp.Name,
			Params: params(imp.Params),
			Result: ParseType(imp.Result),
		})
	}
	for i := range raw.Functions {
		d.push("functions")
		d.push(strconv.Itoa(i))
		prog.Functions = append(prog.Functions, d.function(&raw.Functions[i]))
		d.pop()
		d.pop()
	}
	return prog
}

func params(in []jsonParam) []Param {
	var out []Param
	for _, p := range in {
		out = append(out, Param{Node: Node{Pos: p.pos()}, Name: p.Name, Type: ParseType(p.Type)})
	}
	return out
}

func (d *decoder) function(f *jsonFunc) FuncDecl {
	fn := FuncDecl{
		Node:   Node{Pos: f.pos()},
		Name:   f.Name,
		Params: params(f.Params),
		Result: ParseType(f.Result),
	}
	if fn.Name == "" {
		d.fail(f.jsonPos, "function without a name")
	}
	fn.Body = d.stmts(f.Body)
	return fn
}

func (d *decoder) node(raw json.RawMessage) (*jsonNode, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	var n jsonNode
	if err := json.Unmarshal(raw, &n); err != nil {
		d.fail(jsonPos{}, "malformed node: %v", err)
		return nil, false
	}
	return &n, true
}

func (d *decoder) stmts(raws []json.RawMessage) []Stmt {
	var out []Stmt
	for i, raw := range raws {
		d.push(strconv.Itoa(i))
		if s := d.stmt(raw); s != nil {
			out = append(out, s)
		}
		d.pop()
	}
	return out
}

func (d *decoder) stmt(raw json.RawMessage) Stmt {
	n, ok := d.node(raw)
	if !ok {
		d.fail(jsonPos{}, "missing statement")
		return nil
	}
	node := Node{Pos: n.pos()}
	switch n.Kind {
	case "let":
		return &LetStmt{Node: node, Name: n.Name, Type: ParseType(n.Type), Value: d.expr(n.Value, "value")}
	case "assign":
		return &AssignStmt{Node: node, Target: d.expr(n.Target, "target"), Value: d.expr(n.Value, "value")}
	case "return":
		ret := &ReturnStmt{Node: node}
		if len(n.Value) > 0 && string(n.Value) != "null" {
			ret.Value = d.expr(n.Value, "value")
		}
		return ret
	case "expr":
		return &ExprStmt{Node: node, X: d.expr(n.Expr, "expr")}
	case "while":
		return &WhileStmt{Node: node, Cond: d.expr(n.Cond, "cond"), Body: d.body(n.Body)}
	case "for":
		return &ForStmt{Node: node, Var: n.Var, Start: d.expr(n.Start, "start"), End: d.expr(n.End, "end"), Body: d.body(n.Body)}
	case "loop":
		return &LoopStmt{Node: node, Body: d.body(n.Body)}
	case "break":
		return &BreakStmt{Node: node}
	case "continue":
		return &ContinueStmt{Node: node}
	case "":
		d.fail(n.jsonPos, "statement without kind")
	default:
		// Expressions in statement position, e.g. a bare if.
		return &ExprStmt{Node: node, X: d.exprNode(n)}
	}
	return nil
}

func (d *decoder) body(raw json.RawMessage) []Stmt {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(raw, &raws); err != nil {
		d.fail(jsonPos{}, "body must be an array: %v", err)
		return nil
	}
	d.push("body")
	defer d.pop()
	return d.stmts(raws)
}

func (d *decoder) expr(raw json.RawMessage, field string) Expr {
	d.push(field)
	defer d.pop()
	n, ok := d.node(raw)
	if !ok {
		d.fail(jsonPos{}, "missing expression")
		return nil
	}
	return d.exprNode(n)
}

func (d *decoder) exprs(raws []json.RawMessage, field string) []Expr {
	out := make([]Expr, 0, len(raws))
	for i, raw := range raws {
		out = append(out, d.expr(raw, field+"."+strconv.Itoa(i)))
	}
	return out
}

func (d *decoder) typeOr(s string, def Type) Type {
	if s == "" {
		return def
	}
	return ParseType(s)
}

func (d *decoder) exprNode(n *jsonNode) Expr {
	node := Node{Pos: n.pos()}
	switch n.Kind {
	case "int":
		v, err := strconv.ParseInt(string(n.Value), 10, 64)
		if err != nil {
			d.fail(n.jsonPos, "invalid int literal %s", n.Value)
		}
		return &IntLit{Node: node, Typed: Typed{d.typeOr(n.Type, I64Type)}, Value: v}
	case "float":
		v, err := strconv.ParseFloat(string(n.Value), 64)
		if err != nil {
			d.fail(n.jsonPos, "invalid float literal %s", n.Value)
		}
		return &FloatLit{Node: node, Typed: Typed{d.typeOr(n.Type, F64Type)}, Value: v}
	case "bool":
		var v bool
		if err := json.Unmarshal(n.Value, &v); err != nil {
			d.fail(n.jsonPos, "invalid bool literal %s", n.Value)
		}
		return &BoolLit{Node: node, Typed: Typed{BoolType}, Value: v}
	case "string":
		var v string
		_ = json.Unmarshal(n.Value, &v)
		return &StringLit{Node: node, Typed: Typed{StringType}, Value: v}
	case "char":
		var v string
		_ = json.Unmarshal(n.Value, &v)
		r, _ := utf8.DecodeRuneInString(v)
		return &CharLit{Node: node, Typed: Typed{I32Type}, Value: r}
	case "null":
		return &NullLit{Node: node, Typed: Typed{d.typeOr(n.Type, VoidType)}}
	case "ident":
		return &Ident{Node: node, Typed: Typed{ParseType(n.Type)}, Name: n.Name}
	case "binary":
		op := BinaryOp(n.Op)
		left, right := d.expr(n.Left, "left"), d.expr(n.Right, "right")
		typ := ParseType(n.Type)
		switch {
		case op.IsComparison() || op == OpAnd || op == OpOr:
			typ = BoolType
		case n.Type == "" && left != nil:
			typ = left.StaticType()
		}
		return &BinaryExpr{Node: node, Typed: Typed{typ}, Op: op, Left: left, Right: right}
	case "unary":
		x := d.expr(n.Operand, "operand")
		typ := ParseType(n.Type)
		if n.Type == "" && x != nil {
			typ = x.StaticType()
		}
		return &UnaryExpr{Node: node, Typed: Typed{typ}, Op: UnaryOp(n.Op), X: x}
	case "call":
		return &CallExpr{Node: node, Typed: Typed{ParseType(n.Type)}, Func: n.Func, Args: d.exprs(n.Args, "args")}
	case "method_call":
		return &MethodCallExpr{Node: node, Typed: Typed{ParseType(n.Type)},
			Receiver: d.expr(n.Receiver, "receiver"), Method: n.Method, Args: d.exprs(n.Args, "args")}
	case "if":
		ife := &IfExpr{Node: node, Typed: Typed{ParseType(n.Type)}, Cond: d.expr(n.Cond, "cond"), Then: d.block(n.Then, "then")}
		if len(n.Else) > 0 && string(n.Else) != "null" {
			ife.Else = d.expr(n.Else, "else")
		}
		return ife
	case "block":
		return d.blockNode(n)
	case "match":
		m := &MatchExpr{Node: node, Typed: Typed{ParseType(n.Type)}, Scrutinee: d.expr(n.Scrutinee, "scrutinee")}
		for i, arm := range n.Arms {
			d.push("arms")
			d.push(strconv.Itoa(i))
			m.Arms = append(m.Arms, MatchArm{
				Node:    Node{Pos: arm.pos()},
				Pattern: d.pattern(arm.Pattern),
				Body:    d.expr(arm.Body, "body"),
			})
			d.pop()
			d.pop()
		}
		return m
	case "member":
		return &MemberExpr{Node: node, Typed: Typed{ParseType(n.Type)}, X: d.expr(n.Object, "object"), Field: n.Field}
	case "struct":
		lit := &StructLit{Node: node, Typed: Typed{RecordType(n.TypeName)}, TypeName: n.TypeName}
		for _, f := range n.Fields {
			lit.Fields = append(lit.Fields, FieldInit{Node: Node{Pos: f.pos()}, Name: f.Name, Value: d.expr(f.Value, f.Name)})
		}
		return lit
	case "enum_variant":
		return &EnumVariantExpr{Node: node, Typed: Typed{EnumType(n.Enum)}, Enum: n.Enum, Variant: n.Variant}
	case "lambda":
		return &LambdaExpr{Node: node, Typed: Typed{ParseType(n.Type)}, Params: params(n.Params), Body: d.optExpr(n.Body)}
	case "cast":
		return &CastExpr{Node: node, Typed: Typed{ParseType(n.To)}, X: d.expr(n.Expr, "expr"), To: ParseType(n.To)}
	case "try":
		return &TryExpr{Node: node, Typed: Typed{ParseType(n.Type)}, X: d.expr(n.Expr, "expr")}
	case "quote":
		return &QuoteExpr{Node: node, Typed: Typed{ParseType(n.Type)}, X: d.optExpr(n.Expr)}
	case "eval":
		return &EvalExpr{Node: node, Typed: Typed{ParseType(n.Type)}, X: d.optExpr(n.Expr)}
	case "reflect":
		return &ReflectExpr{Node: node, Typed: Typed{ParseType(n.Type)}, TypeName: n.TypeName}
	case "macro":
		return &MacroExpr{Node: node, Typed: Typed{ParseType(n.Type)}, Name: n.Name, Args: d.exprs(n.Args, "args")}
	case "list":
		return &ListLit{Node: node, Typed: Typed{ParseType(n.Type)}, Elems: d.exprs(n.Elems, "elems")}
	case "tuple":
		return &TupleLit{Node: node, Typed: Typed{ParseType(n.Type)}, Elems: d.exprs(n.Elems, "elems")}
	default:
		d.fail(n.jsonPos, "unknown expression kind %q", n.Kind)
		return nil
	}
}

func (d *decoder) optExpr(raw json.RawMessage) Expr {
	if _, ok := d.node(raw); !ok {
		return nil
	}
	return d.expr(raw, "expr")
}

func (d *decoder) block(raw json.RawMessage, field string) *BlockExpr {
	d.push(field)
	defer d.pop()
	n, ok := d.node(raw)
	if !ok {
		d.fail(jsonPos{}, "missing block")
		return nil
	}
	return d.blockNode(n)
}

func (d *decoder) blockNode(n *jsonNode) *BlockExpr {
	b := &BlockExpr{Node: Node{Pos: n.pos()}, Stmts: d.stmts(n.Stmts)}
	if len(n.Tail) > 0 && string(n.Tail) != "null" {
		b.Tail = d.expr(n.Tail, "tail")
		b.Type = b.Tail.StaticType()
	}
	if n.Type != "" {
		b.Type = ParseType(n.Type)
	}
	return b
}

func (d *decoder) pattern(raw json.RawMessage) Pattern {
	d.push("pattern")
	defer d.pop()
	n, ok := d.node(raw)
	if !ok {
		d.fail(jsonPos{}, "missing pattern")
		return nil
	}
	node := Node{Pos: n.pos()}
	switch n.Kind {
	case "literal":
		return &LiteralPattern{Node: node, Value: d.expr(n.Value, "value")}
	case "wildcard":
		return &WildcardPattern{Node: node}
	case "bind":
		return &BindPattern{Node: node, Name: n.Name}
	case "constructor":
		p := &ConstructorPattern{Node: node, Name: n.Name}
		for _, a := range n.Args {
			p.Args = append(p.Args, d.pattern(a))
		}
		return p
	default:
		d.fail(n.jsonPos, "unknown pattern kind %q", n.Kind)
		return nil
	}
}
