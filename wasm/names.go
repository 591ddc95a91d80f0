package wasm

import (
	"sort"

	"github.com/wippyai/wasm-compiler/wasm/internal/binary"
)

const (
	nameSubsectionModule    = 0
	nameSubsectionFunctions = 1
)

// NameSection builds the "name" custom section with one function-name
// subsection. Runtimes use it to label stack traces.
func NameSection(moduleName string, funcNames map[uint32]string) CustomSection {
	w := binary.NewWriter()
	if moduleName != "" {
		sub := binary.NewWriter()
		sub.WriteName(moduleName)
		w.Byte(nameSubsectionModule)
		w.WriteVec(sub.Bytes())
	}

	idxs := make([]uint32, 0, len(funcNames))
	for idx := range funcNames {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

	sub := binary.NewWriter()
	sub.WriteU32(uint32(len(idxs)))
	for _, idx := range idxs {
		sub.WriteU32(idx)
		sub.WriteName(funcNames[idx])
	}
	w.Byte(nameSubsectionFunctions)
	w.WriteVec(sub.Bytes())

	return CustomSection{Name: "name", Data: w.Bytes()}
}
