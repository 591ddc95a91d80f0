package layout

import (
	stderrors "errors"

	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/internal/graph"
	"go.uber.org/zap"
)

// Sentinels for errors.Is checks.
var (
	ErrCyclicInheritance    = errors.Sentinel(errors.PhaseLayout, errors.KindCyclicInheritance)
	ErrUnknownParent        = errors.Sentinel(errors.PhaseLayout, errors.KindUnknownParent)
	ErrDuplicateField       = errors.Sentinel(errors.PhaseLayout, errors.KindDuplicateField)
	ErrDuplicateType        = errors.Sentinel(errors.PhaseLayout, errors.KindDuplicateType)
	ErrUnsupportedFieldType = errors.Sentinel(errors.PhaseLayout, errors.KindUnsupportedFieldType)
)

// Registry maps record names to layouts. It is read-only once returned by
// Compute and safe for concurrent use.
type Registry struct {
	layouts map[string]*Layout
	order   []string
}

// Get returns the layout for name.
func (r *Registry) Get(name string) (*Layout, bool) {
	l, ok := r.layouts[name]
	return l, ok
}

func (r *Registry) Contains(name string) bool {
	_, ok := r.layouts[name]
	return ok
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Names returns type names in registration order: parents before children,
// otherwise declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Ancestors returns name followed by its parent chain up to the root.
func (r *Registry) Ancestors(name string) []string {
	var chain []string
	for name != "" {
		l, ok := r.layouts[name]
		if !ok {
			break
		}
		chain = append(chain, name)
		name = l.Parent
	}
	return chain
}

// Compute lays out every record declaration. Parents are processed before
// children. The first error aborts and no registry is returned.
func Compute(decls []ast.RecordDecl) (*Registry, error) {
	byName := make(map[string]*ast.RecordDecl, len(decls))
	g := graph.New()
	for i := range decls {
		d := &decls[i]
		if !g.AddNode(d.Name) {
			return nil, errors.New(errors.PhaseLayout, errors.KindDuplicateType).
				Decl(d.Name).
				Pos(errors.Position(d.Pos)).
				Detail("record %s declared more than once", d.Name).
				Build()
		}
		byName[d.Name] = d
	}
	for i := range decls {
		if p := decls[i].Parent; p != "" {
			g.AddDependency(decls[i].Name, p)
		}
	}

	order, err := g.Sort()
	if err != nil {
		return nil, sortError(err, byName)
	}

	reg := &Registry{
		layouts: make(map[string]*Layout, len(decls)),
		order:   make([]string, 0, len(decls)),
	}
	for _, name := range order {
		l, err := computeOne(byName[name], reg)
		if err != nil {
			return nil, err
		}
		reg.layouts[name] = l
		reg.order = append(reg.order, name)
		Logger().Debug("layout computed",
			zap.String("type", name),
			zap.Uint32("size", l.Size),
			zap.Uint32("align", l.Alignment),
			zap.Int("fields", len(l.Fields)))
	}
	return reg, nil
}

func computeOne(d *ast.RecordDecl, reg *Registry) (*Layout, error) {
	l := &Layout{TypeName: d.Name, Parent: d.Parent}
	var offset uint32
	maxAlign := uint32(1)

	if d.Parent != "" {
		parent, ok := reg.Get(d.Parent)
		if !ok {
			return nil, errors.New(errors.PhaseLayout, errors.KindUnknownParent).
				Decl(d.Name).
				Pos(errors.Position(d.Pos)).
				Detail("parent %s is not registered", d.Parent).
				Build()
		}
		l.Fields = append(l.Fields, parent.Fields...)
		l.Inherited = len(parent.Fields)
		if n := len(parent.Fields); n > 0 {
			offset = parent.Fields[n-1].End()
		}
		maxAlign = parent.Alignment
	}

	for _, fd := range d.Fields {
		if idx := indexOf(l.Fields, fd.Name); idx >= 0 {
			detail := "field declared twice"
			if idx < l.Inherited {
				detail = "field already inherited from " + d.Parent
			}
			return nil, errors.New(errors.PhaseLayout, errors.KindDuplicateField).
				Decl(d.Name).
				Path(d.Name, fd.Name).
				Pos(errors.Position(fd.Pos)).
				Detail("%s", detail).
				Build()
		}
		ft, ok := FromType(fd.Type)
		if !ok {
			return nil, errors.New(errors.PhaseLayout, errors.KindUnsupportedFieldType).
				Decl(d.Name).
				Path(d.Name, fd.Name).
				Pos(errors.Position(fd.Pos)).
				Value(fd.Type.String()).
				Detail("type %s has no field representation", fd.Type).
				Build()
		}
		offset = AlignTo(offset, ft.Align())
		l.Fields = append(l.Fields, Field{Name: fd.Name, Type: ft, Offset: offset})
		offset += ft.Size()
		if ft.Align() > maxAlign {
			maxAlign = ft.Align()
		}
	}

	l.Alignment = maxAlign
	l.Size = AlignTo(offset, maxAlign)
	return l, nil
}

func indexOf(fields []Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func sortError(err error, byName map[string]*ast.RecordDecl) error {
	var missing *graph.MissingError
	if stderrors.As(err, &missing) {
		d := byName[missing.Node]
		return errors.New(errors.PhaseLayout, errors.KindUnknownParent).
			Decl(missing.Node).
			Pos(errors.Position(d.Pos)).
			Value(missing.Dep).
			Detail("parent %s is not declared", missing.Dep).
			Build()
	}
	var cycle *graph.CycleError
	if stderrors.As(err, &cycle) {
		first := cycle.Cycle[0]
		return errors.New(errors.PhaseLayout, errors.KindCyclicInheritance).
			Decl(first).
			Pos(errors.Position(byName[first].Pos)).
			Path(cycle.Cycle...).
			Cause(err).
			Build()
	}
	return errors.Wrap(errors.PhaseLayout, errors.KindInvalidData, err, "order records")
}
