package codegen

import (
	"github.com/wippyai/wasm-compiler/ast"
	"github.com/wippyai/wasm-compiler/wasm"
)

// LocalSlot is a wasm local bound to a source name.
type LocalSlot struct {
	Type  ast.Type
	Index uint32
}

// locals tracks parameter and local slots of one function. Names are
// lexically scoped: a let inside a block shadows outer bindings until the
// block ends. Slots are never reused.
type locals struct {
	scopes  []map[string]LocalSlot
	types   []wasm.ValType // declared locals beyond params
	nparams uint32
}

func newLocals() *locals {
	return &locals{scopes: []map[string]LocalSlot{{}}}
}

// param binds the next parameter slot.
func (l *locals) param(name string, t ast.Type) LocalSlot {
	slot := LocalSlot{Index: l.nparams, Type: t}
	l.nparams++
	if name != "" {
		l.scopes[len(l.scopes)-1][name] = slot
	}
	return slot
}

// declare allocates a new local slot and binds name in the innermost scope.
func (l *locals) declare(name string, t ast.Type) LocalSlot {
	slot := l.temp(t)
	l.scopes[len(l.scopes)-1][name] = slot
	return slot
}

// temp allocates an unnamed scratch slot.
func (l *locals) temp(t ast.Type) LocalSlot {
	vt, ok := ValType(t)
	if !ok {
		vt = wasm.ValI32
	}
	slot := LocalSlot{Index: l.nparams + uint32(len(l.types)), Type: t}
	l.types = append(l.types, vt)
	return slot
}

func (l *locals) lookup(name string) (LocalSlot, bool) {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if slot, ok := l.scopes[i][name]; ok {
			return slot, true
		}
	}
	return LocalSlot{}, false
}

func (l *locals) push() { l.scopes = append(l.scopes, map[string]LocalSlot{}) }
func (l *locals) pop()  { l.scopes = l.scopes[:len(l.scopes)-1] }

// declared returns the types of non-parameter locals in slot order.
func (l *locals) declared() []wasm.ValType {
	return l.types
}
