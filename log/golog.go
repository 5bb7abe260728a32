// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package log

import (
	"flag"
	"fmt"
	golog "log"
	"sync/atomic"
)

var golevel atomic.Int32

// AddFlags registers the -log level flag with the provided flag set.
func AddFlags(fs *flag.FlagSet) {
	fs.Var(new(logFlag), "log", "set log level (off, error, info, debug)")
}

// SetLevel sets the log level for the Go standard logger.
func SetLevel(level Level) {
	golevel.Store(int32(level))
}

// ParseLevel parses one of "off", "error", "info" or "debug".
func ParseLevel(level string) (Level, error) {
	switch level {
	case "off":
		return Off, nil
	case "error":
		return Error, nil
	case "info":
		return Info, nil
	case "debug":
		return Debug, nil
	default:
		return Off, fmt.Errorf("invalid log level %q", level)
	}
}

type logFlag string

func (f logFlag) String() string {
	return string(f)
}

func (f *logFlag) Set(level string) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	*f = logFlag(level)
	SetLevel(l)
	return nil
}

// Get implements flag.Getter.
func (logFlag) Get() interface{} {
	return Level(golevel.Load())
}

type gologOutputter struct{}

func (gologOutputter) Level() Level { return Level(golevel.Load()) }

func (gologOutputter) Output(calldepth int, level Level, s string) error {
	if Level(golevel.Load()) < level {
		return nil
	}
	return golog.Output(calldepth+1, level.String()+": "+s)
}
