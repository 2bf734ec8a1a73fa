// Package logger is a process-wide structured logger. Calls made before Init
// are dropped.
package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

type Options struct {
	Level     string
	Output    io.Writer
	Timestamp bool
}

var current atomic.Pointer[log.Logger]

// Init installs the global logger. An empty or unknown level means info.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	current.Store(log.NewWithOptions(out, log.Options{
		ReportTimestamp: opts.Timestamp,
		Level:           ParseLevel(opts.Level),
		Prefix:          "episim",
	}))
}

func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func Debug(msg string, keyvals ...any) {
	if l := current.Load(); l != nil {
		l.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...any) {
	if l := current.Load(); l != nil {
		l.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...any) {
	if l := current.Load(); l != nil {
		l.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...any) {
	if l := current.Load(); l != nil {
		l.Error(msg, keyvals...)
	}
}
