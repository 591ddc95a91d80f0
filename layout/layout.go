package layout

import "hash/fnv"

// Field is a laid-out record field.
type Field struct {
	Name   string
	Type   FieldType
	Offset uint32
}

// End returns the offset just past the field.
func (f Field) End() uint32 {
	return f.Offset + f.Type.Size()
}

// Layout is the memory shape of one record type. When Parent is set the
// first Inherited fields are an exact copy of the parent's fields.
type Layout struct {
	TypeName  string
	Parent    string
	Fields    []Field
	Size      uint32
	Alignment uint32
	Inherited int
}

// Field returns the field called name.
func (l *Layout) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldOffset returns the byte offset of the field called name.
func (l *Layout) FieldOffset(name string) (uint32, bool) {
	f, ok := l.Field(name)
	return f.Offset, ok
}

func (l *Layout) FieldCount() int {
	return len(l.Fields)
}

func (l *Layout) IsEmpty() bool {
	return len(l.Fields) == 0
}

// OwnFields returns the fields declared by the type itself.
func (l *Layout) OwnFields() []Field {
	return l.Fields[l.Inherited:]
}

// PointerOffsets returns the offsets of all pointer fields in layout order.
func (l *Layout) PointerOffsets() []uint32 {
	var offsets []uint32
	for _, f := range l.Fields {
		if f.Type.IsReference() {
			offsets = append(offsets, f.Offset)
		}
	}
	return offsets
}

// HasReferences reports whether any field holds a pointer.
func (l *Layout) HasReferences() bool {
	for _, f := range l.Fields {
		if f.Type.IsReference() {
			return true
		}
	}
	return false
}

// TypeID returns a stable 32-bit FNV-1a hash of the type name.
func (l *Layout) TypeID() uint32 {
	return TypeID(l.TypeName)
}

// TypeID hashes a type name with FNV-1a.
func TypeID(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}

// IsDescendantOf reports whether the type inherits, directly or not, from
// ancestor. A type is not its own descendant.
func (l *Layout) IsDescendantOf(r *Registry, ancestor string) bool {
	for p := l.Parent; p != ""; {
		if p == ancestor {
			return true
		}
		parent, ok := r.Get(p)
		if !ok {
			return false
		}
		p = parent.Parent
	}
	return false
}
