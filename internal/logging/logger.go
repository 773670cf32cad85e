// Package logging provides the narrow logger interface used by every
// subsystem in this node, plus a default implementation backed by the
// standard library.
package logging

import (
	"fmt"
	"io"
	"log"
)

const calldepth = 3

// Logger is implemented by anything that can record leveled messages.
// Subsystems depend on this interface rather than a concrete logger so
// tests can swap in a silent or buffering implementation.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
}

// StdLogger is the default Logger, writing level-prefixed lines to the
// given writer. Debug output is suppressed unless ToggleDebug(true) is
// called.
type StdLogger struct {
	*log.Logger
	debug bool
}

// NewStdLogger builds a StdLogger writing to w, with a component tag
// (e.g. the node id) included on every line.
func NewStdLogger(w io.Writer, tag string) *StdLogger {
	return &StdLogger{
		Logger: log.New(w, fmt.Sprintf("[%s] ", tag), log.LstdFlags),
	}
}

func level(prefix, message string) string {
	return fmt.Sprintf("[%s]: %s", prefix, message)
}

func (l *StdLogger) Info(v ...interface{}) {
	_ = l.Output(calldepth, level("INFO", fmt.Sprint(v...)))
}

func (l *StdLogger) Infof(format string, v ...interface{}) {
	_ = l.Output(calldepth, level("INFO", fmt.Sprintf(format, v...)))
}

func (l *StdLogger) Warn(v ...interface{}) {
	_ = l.Output(calldepth, level("WARN", fmt.Sprint(v...)))
}

func (l *StdLogger) Warnf(format string, v ...interface{}) {
	_ = l.Output(calldepth, level("WARN", fmt.Sprintf(format, v...)))
}

func (l *StdLogger) Error(v ...interface{}) {
	_ = l.Output(calldepth, level("ERROR", fmt.Sprint(v...)))
}

func (l *StdLogger) Errorf(format string, v ...interface{}) {
	_ = l.Output(calldepth, level("ERROR", fmt.Sprintf(format, v...)))
}

func (l *StdLogger) Debug(v ...interface{}) {
	if l.debug {
		_ = l.Output(calldepth, level("DEBUG", fmt.Sprint(v...)))
	}
}

func (l *StdLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		_ = l.Output(calldepth, level("DEBUG", fmt.Sprintf(format, v...)))
	}
}

// ToggleDebug enables or disables Debug/Debugf output, returning the
// new state.
func (l *StdLogger) ToggleDebug(value bool) bool {
	l.debug = value
	return l.debug
}

// Noop is a Logger that discards everything, useful in tests that
// don't care about log output.
type Noop struct{}

func (Noop) Info(v ...interface{})                    {}
func (Noop) Infof(format string, v ...interface{})    {}
func (Noop) Warn(v ...interface{})                    {}
func (Noop) Warnf(format string, v ...interface{})    {}
func (Noop) Error(v ...interface{})                   {}
func (Noop) Errorf(format string, v ...interface{})   {}
func (Noop) Debug(v ...interface{})                   {}
func (Noop) Debugf(format string, v ...interface{})   {}
