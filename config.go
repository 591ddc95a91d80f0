package wasmcompiler

import (
	"runtime"

	"github.com/wippyai/wasm-compiler/alloc"
)

// Config controls module generation. The zero value is usable.
type Config struct {
	// HeapBase is the first address handed out by alloc. Addresses below
	// it are reserved. 0 means alloc.DefaultHeapBase (1024).
	HeapBase uint32

	// InitialPages is the initial memory size in 64 KiB pages.
	// 0 means alloc.DefaultInitialPages.
	InitialPages uint32

	// MaxPages bounds memory growth. 0 leaves memory unbounded up to the
	// runtime's own limit.
	MaxPages uint32

	// Workers is the number of goroutines compiling functions.
	// 0 means GOMAXPROCS.
	Workers int

	// MemoryExportName overrides the name the memory is exported under.
	MemoryExportName string

	// DisableAllocatorExport keeps alloc and reset out of the export
	// section. They are still present and called by struct literals.
	DisableAllocatorExport bool

	// EmitNames adds a name section with function names for debuggers.
	EmitNames bool
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() *Config {
	return &Config{}
}

func (c *Config) heapBase() uint32 {
	if c.HeapBase == 0 {
		return alloc.DefaultHeapBase
	}
	return c.HeapBase
}

func (c *Config) initialPages() uint32 {
	if c.InitialPages == 0 {
		return alloc.DefaultInitialPages
	}
	return c.InitialPages
}

func (c *Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
