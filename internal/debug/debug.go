// Package debug provides leveled stderr output for the crashaudit CLI.
// Debug output is gated on CRASHAUDIT_DEBUG or the --verbose flag; normal
// informational output can be silenced with --quiet.
package debug

import (
	"fmt"
	"os"
)

var (
	enabled     = os.Getenv("CRASHAUDIT_DEBUG") != ""
	verboseMode = false
	quietMode   = false
)

// Enabled reports whether debug output is active.
func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output.
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output).
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled.
func IsQuiet() bool {
	return quietMode
}

// Logf writes debug output to stderr when verbose/debug mode is on.
func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Warnf always writes a warning to stderr, regardless of quiet mode.
// Warnings are part of the tool's contract (skipped commits, corrupt
// cache, cache-only fallback) and must stay visible.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format, args...)
}

// PrintNormal prints informational output unless quiet mode is enabled.
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}
