// Package logger builds the process-wide zerolog logger for authd.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup returns a JSON logger at info level, or a console logger at debug
// level when dev is set.
func Setup(dev bool) zerolog.Logger {
	return New(os.Stderr, dev)
}

// New is Setup with an explicit destination.
func New(w io.Writer, dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out: w,
			FormatTimestamp: func(any) string {
				return time.Now().Format(time.RFC3339)
			},
		}).With().Caller().Logger()
	}
	return logger
}
