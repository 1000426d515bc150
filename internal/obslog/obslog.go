// Package obslog provides the structured logging used by the parallel
// runner, the training spec and the CLI. It is the structural equivalent
// of spdlog in the original engine: leveled, low-allocation, and shared by
// reference across every component that needs to report progress or
// warnings from inside worker goroutines.
package obslog

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide structured logger. verbose raises the level
// to debug; jsonOutput switches the encoder from console to JSON, which is
// useful when the CLI is invoked from another tool.
func New(verbose, jsonOutput bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "ts"

	var enc zapcore.Encoder
	if jsonOutput {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)

	return zap.New(core)
}

// Nop returns a logger that discards everything, for tests and library
// callers that don't want output.
func Nop() *zap.Logger { return zap.NewNop() }

// CLILogger is a thin printf-style wrapper for messages that are purely
// user-facing banners (help text, version strings) rather than structured
// operational events.
type CLILogger struct {
	Verbose   bool
	DebugMode bool
}

// NewCLILogger creates a CLILogger.
func NewCLILogger(verbose, debug bool) *CLILogger {
	return &CLILogger{Verbose: verbose, DebugMode: debug}
}

func (l *CLILogger) Info(format string, args ...any) {
	if l.Verbose {
		fmt.Printf("[INFO] %s: %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	}
}

func (l *CLILogger) Debug(format string, args ...any) {
	if l.DebugMode {
		fmt.Printf("[DEBUG] %s: %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	}
}

func (l *CLILogger) Warn(format string, args ...any) {
	fmt.Printf("[WARN] %s: %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
}

func (l *CLILogger) Error(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[ERROR] %s: %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
}
