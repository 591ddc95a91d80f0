package wasm

import "fmt"

// MemoryMaxPages32 is the largest page count a 32-bit memory may declare.
const MemoryMaxPages32 = 65536

// Validate checks the module for structural validity: index bounds,
// export uniqueness, memory limits and the control structure of every body.
// It does not type-check the operand stack.
func (m *Module) Validate() error {
	if err := m.validateTypeIndices(); err != nil {
		return err
	}
	if err := m.validateExports(); err != nil {
		return err
	}
	if err := m.validateCodeCount(); err != nil {
		return err
	}
	if err := m.validateMemoryLimits(); err != nil {
		return err
	}
	if err := m.validateGlobals(); err != nil {
		return err
	}
	return m.validateBodies()
}

// ParseModuleValidate parses a WebAssembly binary and validates it.
func ParseModuleValidate(data []byte) (*Module, error) {
	m, err := ParseModule(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) validateTypeIndices() error {
	numTypes := uint32(len(m.Types))
	for i, typeIdx := range m.Funcs {
		if typeIdx >= numTypes {
			return fmt.Errorf("function %d references invalid type index %d (have %d types)", i, typeIdx, numTypes)
		}
	}
	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc && imp.Desc.TypeIdx >= numTypes {
			return fmt.Errorf("import %d (%s.%s) references invalid type index %d", i, imp.Module, imp.Name, imp.Desc.TypeIdx)
		}
	}
	return nil
}

func (m *Module) validateExports() error {
	numFuncs := uint32(m.NumFuncs())
	numMemories := uint32(m.NumImportedMemories() + len(m.Memories))
	numGlobals := uint32(m.NumGlobals())

	seen := make(map[string]bool, len(m.Exports))
	for i, exp := range m.Exports {
		if seen[exp.Name] {
			return fmt.Errorf("duplicate export name %q at index %d", exp.Name, i)
		}
		seen[exp.Name] = true

		var limit uint32
		switch exp.Kind {
		case KindFunc:
			limit = numFuncs
		case KindMemory:
			limit = numMemories
		case KindGlobal:
			limit = numGlobals
		default:
			return fmt.Errorf("export %d (%s) has unsupported kind %d", i, exp.Name, exp.Kind)
		}
		if exp.Idx >= limit {
			return fmt.Errorf("export %d (%s) references invalid index %d", i, exp.Name, exp.Idx)
		}
	}
	return nil
}

func (m *Module) validateCodeCount() error {
	if len(m.Code) != len(m.Funcs) {
		return fmt.Errorf("code section has %d entries but function section has %d",
			len(m.Code), len(m.Funcs))
	}
	return nil
}

func (m *Module) validateMemoryLimits() error {
	if m.NumImportedMemories()+len(m.Memories) > 1 {
		return fmt.Errorf("at most one memory is supported")
	}
	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindMemory && imp.Desc.Memory != nil {
			if err := validateMemoryType(imp.Desc.Memory, i, "imported memory"); err != nil {
				return err
			}
		}
	}
	for i := range m.Memories {
		if err := validateMemoryType(&m.Memories[i], i, "memory"); err != nil {
			return err
		}
	}
	return nil
}

func validateMemoryType(mem *MemoryType, idx int, prefix string) error {
	if mem.Limits.Min > MemoryMaxPages32 {
		return fmt.Errorf("%s %d: min pages %d exceeds maximum %d",
			prefix, idx, mem.Limits.Min, MemoryMaxPages32)
	}
	if mem.Limits.Max != nil {
		if *mem.Limits.Max > MemoryMaxPages32 {
			return fmt.Errorf("%s %d: max pages %d exceeds maximum %d",
				prefix, idx, *mem.Limits.Max, MemoryMaxPages32)
		}
		if *mem.Limits.Max < mem.Limits.Min {
			return fmt.Errorf("%s %d: max pages %d below min %d",
				prefix, idx, *mem.Limits.Max, mem.Limits.Min)
		}
	}
	return nil
}

func (m *Module) validateGlobals() error {
	for i, g := range m.Globals {
		instrs, err := DecodeInstructions(g.Init)
		if err != nil {
			return fmt.Errorf("global %d init: %w", i, err)
		}
		if len(instrs) != 2 || instrs[1].Opcode != OpEnd {
			return fmt.Errorf("global %d init: expected a single constant", i)
		}
		var want ValType
		switch instrs[0].Opcode {
		case OpI32Const:
			want = ValI32
		case OpI64Const:
			want = ValI64
		case OpF32Const:
			want = ValF32
		case OpF64Const:
			want = ValF64
		default:
			return fmt.Errorf("global %d init: unsupported %s", i, OpcodeName(instrs[0].Opcode))
		}
		if want != g.Type.ValType {
			return fmt.Errorf("global %d init: %s constant for %s global", i, want, g.Type.ValType)
		}
	}
	return nil
}

func (m *Module) validateBodies() error {
	numImported := m.NumImportedFuncs()
	for i, body := range m.Code {
		ft := &m.Types[m.Funcs[i]]
		if err := m.validateBody(ft, body); err != nil {
			return fmt.Errorf("function %d: %w", numImported+i, err)
		}
	}
	return nil
}

// validateBody checks structured nesting, branch depths and index operands.
func (m *Module) validateBody(ft *FuncType, body FuncBody) error {
	instrs, err := DecodeInstructions(body.Code)
	if err != nil {
		return err
	}

	numLocals := uint64(len(ft.Params))
	for _, l := range body.Locals {
		numLocals += uint64(l.Count)
	}
	numFuncs := uint32(m.NumFuncs())
	numGlobals := uint32(m.NumGlobals())
	hasMemory := m.NumImportedMemories()+len(m.Memories) > 0

	// depth counts open frames including the implicit function frame
	depth := 1
	for pc, instr := range instrs {
		if depth == 0 {
			return fmt.Errorf("instruction %d (%s) after final end", pc, instr)
		}
		switch instr.Opcode {
		case OpBlock, OpLoop, OpIf:
			depth++
		case OpElse:
			if depth < 2 {
				return fmt.Errorf("instruction %d: else outside if", pc)
			}
		case OpEnd:
			depth--
		case OpBr, OpBrIf:
			label := instr.Imm.(BranchImm).LabelIdx
			if int(label) >= depth {
				return fmt.Errorf("instruction %d: %s targets depth %d with %d open frames", pc, instr, label, depth)
			}
		case OpCall:
			if idx := instr.Imm.(CallImm).FuncIdx; idx >= numFuncs {
				return fmt.Errorf("instruction %d: call to invalid function %d", pc, idx)
			}
		case OpLocalGet, OpLocalSet, OpLocalTee:
			if idx := instr.Imm.(LocalImm).LocalIdx; uint64(idx) >= numLocals {
				return fmt.Errorf("instruction %d: %s out of range (%d locals)", pc, instr, numLocals)
			}
		case OpGlobalGet, OpGlobalSet:
			idx := instr.Imm.(GlobalImm).GlobalIdx
			if idx >= numGlobals {
				return fmt.Errorf("instruction %d: %s out of range", pc, instr)
			}
			if instr.Opcode == OpGlobalSet && !m.GetGlobalType(idx).Mutable {
				return fmt.Errorf("instruction %d: global.set on immutable global %d", pc, idx)
			}
		case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
			OpI32Store, OpI64Store, OpF32Store, OpF64Store,
			OpMemorySize, OpMemoryGrow:
			if !hasMemory {
				return fmt.Errorf("instruction %d: %s without a memory", pc, instr)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("body has %d unterminated frames", depth)
	}
	return nil
}
