// Package monitoring carries the diagnostic logger and the Prometheus
// collectors used by the neighbour-list packages.
package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var verbose atomic.Bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose enables or disables Debugf output.
func SetVerbose(on bool) {
	verbose.Store(on)
}

// Debugf forwards to Logf only when verbose output is enabled. Per-build
// details (method choice, grid sizes, off-grid counts) are logged here so a
// simulation loop that rebuilds every few steps stays quiet by default.
func Debugf(format string, v ...interface{}) {
	if verbose.Load() {
		Logf(format, v...)
	}
}
