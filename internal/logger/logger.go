// Package logger provides leveled logging for the lexcite pipeline.
//
// Info, Warn and Error always print unless quiet mode is on; Debug prints
// only in verbose mode. Output goes to stderr so the MCP server can own
// stdout.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	quiet   bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetQuiet suppresses Info and Section output. Warnings and errors still print.
func SetQuiet(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// SetOutput sets the output writer.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func write(prefix, format string, args ...any) {
	fmt.Fprintf(output, prefix+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		write("[DEBUG] ", format, args...)
	}
}

// Section prints a stage header.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if !quiet {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints progress and counts.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !quiet {
		write("[INFO] ", format, args...)
	}
}

// Warn prints a recoverable problem, such as a skipped item.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	write("[WARN] ", format, args...)
}

// Error prints a problem that needs operator attention.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	write("[ERROR] ", format, args...)
}
