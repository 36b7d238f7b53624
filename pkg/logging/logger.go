// Package logging provides the line-oriented, prefix-scoped logger used
// across emuman's scanning, planning, and materializing components. It
// mirrors the teacher's logging design: a nil *Logger is always safe to
// call, so components can be handed a possibly-disabled logger without
// checking for nil at every call site.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

// Logger is the main logger type. It remains functional (but silent) if
// nil, and is safe for concurrent use since it only ever wraps the
// standard library logger.
type Logger struct {
	prefix string
}

// RootLogger is the root logger from which all other loggers derive.
var RootLogger = &Logger{}

func init() {
	log.SetOutput(os.Stderr)
	log.SetFlags(0)
}

// Sublogger creates a new logger scoped under name (e.g. "scan",
// "materialize", "split").
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{prefix: prefix}
}

func (l *Logger) output(line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(3, line)
}

// Println logs informational output with fmt.Println semantics.
func (l *Logger) Println(v ...interface{}) {
	if l != nil {
		l.output(fmt.Sprintln(v...))
	}
}

// Printf logs informational output with fmt.Printf semantics.
func (l *Logger) Printf(format string, v ...interface{}) {
	if l != nil {
		l.output(fmt.Sprintf(format, v...))
	}
}

// Warn logs a non-fatal problem (e.g. a LinkFallback or a swallowed
// xattr I/O error) with a yellow "Warning:" prefix.
func (l *Logger) Warn(err error) {
	if l != nil {
		l.output(color.YellowString("Warning: %v", err))
	}
}

// Error logs a per-file or per-game failure with a red "Error:" prefix.
func (l *Logger) Error(err error) {
	if l != nil {
		l.output(color.RedString("Error: %v", err))
	}
}

// Writer returns an io.Writer that logs each line written to it via
// Println. Useful for piping subprocess or stream output through the
// logger.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return io.Discard
	}
	return &lineWriter{logger: l}
}

// lineWriter buffers partial lines and forwards complete ones to a
// Logger, the same way the teacher's writer type does.
type lineWriter struct {
	logger *Logger
	buffer []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buffer = append(w.buffer, p...)
	for {
		index := -1
		for i, b := range w.buffer {
			if b == '\n' {
				index = i
				break
			}
		}
		if index == -1 {
			break
		}
		w.logger.Println(string(w.buffer[:index]))
		w.buffer = w.buffer[index+1:]
	}
	return len(p), nil
}
