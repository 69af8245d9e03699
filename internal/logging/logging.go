// Package logging gives the emulation core a single injectable log sink
// for the traces spec §9 calls for ("unimplemented registers... log
// channel with a severity but never halt the core"). It is grounded on
// original_source/Core/Log.h's severity-tagged printf trace
// (emu::Log::Type Debug/Info/Warning/Error fanned out to a listener list)
// but adapted onto the teacher's actual Go idiom: cmd/gones/main.go and
// internal/app/app.go both just reach for the standard log package and a
// bracketed component tag ("[APP_DEBUG] ..."). Rather than reintroduce a
// global listener-list singleton, every component that wants to trace
// takes a Sink at construction time, defaulting to log.Default() — per
// spec §9, "log listeners are an optional injected sink, not global."
package logging

import "log"

// Severity mirrors original_source/Core/Log.h's emu::Log::Type.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "?"
	}
}

// Sink is the injectable log target. *log.Logger satisfies it without
// adaptation, so log.Default() is a valid Sink out of the box.
type Sink interface {
	Printf(format string, args ...any)
}

// Default returns the standard library's process-wide logger, used by
// components constructed without an explicit Sink.
func Default() Sink { return log.Default() }

// Logger tags every message with a component name before handing it to a
// Sink — the same "[COMPONENT] message" shape as the teacher's call
// sites, just routed through an injected Sink instead of the bare log
// package.
type Logger struct {
	component string
	sink      Sink
}

// New returns a Logger that prefixes messages with component and writes
// to sink. A nil sink falls back to Default().
func New(component string, sink Sink) Logger {
	if sink == nil {
		sink = Default()
	}
	return Logger{component: component, sink: sink}
}

// Tracef logs one message at severity sev. It never blocks or returns an
// error: per spec §7, traces are not errors and must never halt the core.
func (l Logger) Tracef(sev Severity, format string, args ...any) {
	if l.sink == nil {
		return
	}
	l.sink.Printf("[%s] %s: "+format, append([]any{l.component, sev.String()}, args...)...)
}
