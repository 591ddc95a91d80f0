// Package layout computes the linear-memory shape of record types.
//
// Each field is placed at the next offset aligned to its own size. A record
// with a parent starts with an exact copy of the parent's fields, so a
// pointer to a child can be read through the parent's layout:
//
//	reg, err := layout.Compute(program.Records)
//	p3, _ := reg.Get("Point3D")
//	off, _ := p3.FieldOffset("z") // 16 when Point is {x: i64, y: i64}
//
// A layout's size is rounded up to its alignment, the largest field
// alignment (at least 1).
package layout
