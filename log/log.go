// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package log provides simple level logging for the vault. Log output
// is implemented by an Outputter, which by default writes to Go's
// standard logging package. Embedding applications (e.g., a UI that
// keeps its own log window) install their own Outputter with
// SetOutputter so that vault output is unified with theirs.
//
// The vault never logs secrets: master passwords, plaintexts, derived
// keys and ciphertexts stay out of log messages at every level.
package log

import (
	"fmt"
	"sync/atomic"
)

// An Outputter provides a destination for leveled log output.
type Outputter interface {
	// Level returns the level at which the outputter is accepting
	// messages.
	Level() Level

	// Output writes the provided message to the outputter at the
	// provided calldepth and level. The message is dropped by
	// the outputter if it is not logging at the desired level.
	Output(calldepth int, level Level, s string) error
}

type holder struct{ Outputter }

var out atomic.Pointer[holder]

func init() {
	out.Store(&holder{gologOutputter{}})
}

// SetOutputter provides a new outputter for use in the log package.
// It returns the old outputter.
func SetOutputter(newOut Outputter) Outputter {
	return out.Swap(&holder{newOut}).Outputter
}

// GetOutputter returns the current outputter used by the log package.
func GetOutputter() Outputter {
	return out.Load().Outputter
}

// At returns whether the logger is currently logging at the provided level.
func At(level Level) bool {
	return level <= GetOutputter().Level()
}

// Output outputs a log message to the current outputter at the provided
// level and call depth.
func Output(calldepth int, level Level, s string) error {
	return GetOutputter().Output(calldepth+1, level, s)
}

// A Level is a log verbosity level. Increasing levels decrease in
// priority and increase in verbosity: if the outputter is logging at
// level L, then all messages with level M <= L are outputted.
type Level int

const (
	// Off never outputs messages.
	Off = Level(-3)
	// Error outputs error messages.
	Error = Level(-2)
	// Info outputs informational messages. This is the standard
	// logging level.
	Info = Level(0)
	// Debug outputs messages intended for debugging and development,
	// e.g., per-step transaction progress.
	Debug = Level(1)
)

// String returns the string representation of the level l.
func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Error:
		return "error"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		if l < 0 {
			panic("invalid log level")
		}
		return fmt.Sprintf("debug%d", l)
	}
}

// Print formats a message in the manner of fmt.Sprint and outputs it
// at level l to the current outputter.
func (l Level) Print(v ...interface{}) {
	if At(l) {
		Output(2, l, fmt.Sprint(v...))
	}
}

// Printf formats a message in the manner of fmt.Sprintf and outputs
// it at level l to the current outputter.
func (l Level) Printf(format string, v ...interface{}) {
	if At(l) {
		Output(2, l, fmt.Sprintf(format, v...))
	}
}

// Print formats a message in the manner of fmt.Sprint
// and outputs it at the Info level to the current outputter.
func Print(v ...interface{}) {
	if At(Info) {
		Output(2, Info, fmt.Sprint(v...))
	}
}

// Printf formats a message in the manner of fmt.Sprintf
// and outputs it at the Info level to the current outputter.
func Printf(format string, v ...interface{}) {
	if At(Info) {
		Output(2, Info, fmt.Sprintf(format, v...))
	}
}

// Panicf formats a message in the manner of fmt.Sprintf, outputs it
// at the error level to the current outputter and then panics.
func Panicf(format string, v ...interface{}) {
	s := fmt.Sprintf(format, v...)
	Output(2, Error, s)
	panic(s)
}
