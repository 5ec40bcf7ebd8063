// Package logging builds the loggers the CLI and daemon hand to the engine.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a stderr logger with the given prefix.
func New(prefix string) *log.Logger {
	return log.New(os.Stderr, prefix, log.LstdFlags)
}

// NewRotating returns a logger writing to a size-rotated file, mirrored to
// stderr. Long-running daemon mode uses this so the log cannot grow without
// bound.
func NewRotating(path, prefix string) *log.Logger {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	return log.New(io.MultiWriter(os.Stderr, rotator), prefix, log.LstdFlags)
}
