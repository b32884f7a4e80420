// Package logger writes verbose diagnostics for artifact-organizer.
// Messages are dropped unless verbose mode is on (the --verbose flag), so
// the regular progress output stays as the only output by default.
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
	out     io.Writer = os.Stderr
)

// SetVerbose turns verbose logging on or off.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether verbose logging is on.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects log output. It defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Debug logs a formatted debug message.
func Debug(format string, args ...any) {
	logf("DEBUG", format, args...)
}

// Warn logs a formatted warning.
func Warn(format string, args ...any) {
	logf("WARN", format, args...)
}

// logf holds the write lock so concurrent callers never interleave writes
// to the same output.
func logf(level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !verbose {
		return
	}
	fmt.Fprintf(out, "[%s] %s\n", level, fmt.Sprintf(format, args...))
}
