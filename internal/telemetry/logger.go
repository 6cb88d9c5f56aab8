// Package telemetry carries the server's ambient logging and metrics.
// Logging keeps the teacher's emoji-banner voice (app/app.go, core/engine.go)
// behind per-subsystem prefixes; metrics replace the teacher's raw
// atomic.Uint64 counters (core/pool_stats.go) with real Prometheus
// collectors, grounded on mercator-hq-jupiter and marmos91-dittofs's use of
// github.com/prometheus/client_golang.
package telemetry

import "log"

// Logger wraps the stdlib logger with a fixed subsystem prefix, matching
// the teacher's bracketed-tag convention ("[worker-pool] ...",
// "[slidecache] ...") while keeping calls terse at call sites.
type Logger struct {
	prefix string
}

// NewLogger returns a Logger that prefixes every line with "[subsystem] ".
func NewLogger(subsystem string) *Logger {
	return &Logger{prefix: "[" + subsystem + "] "}
}

func (l *Logger) Printf(format string, args ...any) {
	log.Printf(l.prefix+format, args...)
}

func (l *Logger) Println(args ...any) {
	log.Println(append([]any{l.prefix}, args...)...)
}

// Banner logs a startup banner line in the teacher's emoji-led style
// (see app/app.go's "🚀 iris-restful starting on ..." banner).
func (l *Logger) Banner(emoji, format string, args ...any) {
	log.Printf(l.prefix+emoji+" "+format, args...)
}
