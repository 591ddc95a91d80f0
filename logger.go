package wasmcompiler

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-compiler/alloc"
	"github.com/wippyai/wasm-compiler/assembler"
	"github.com/wippyai/wasm-compiler/codegen"
	"github.com/wippyai/wasm-compiler/layout"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the compiler's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the compiler's logger and the loggers of every
// compilation stage.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
	layout.SetLogger(l.Named("layout"))
	alloc.SetLogger(l.Named("alloc"))
	codegen.SetLogger(l.Named("codegen"))
	assembler.SetLogger(l.Named("assembler"))
}
