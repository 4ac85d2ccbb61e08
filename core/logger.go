package core

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// NewLogger returns a new pre-configured logger
func NewLogger(level uint32) *log.Logger {
	logger := log.New()

	logger.SetFormatter(&log.TextFormatter{})

	logger.SetLevel(log.Level(level))

	return logger
}

// NewNopLogger returns a logger that discards everything, used when sessions are built by tests.
func NewNopLogger() *log.Logger {
	logger := NewLogger(uint32(log.PanicLevel))
	logger.SetOutput(io.Discard)
	return logger
}
