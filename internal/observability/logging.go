// Package observability provides structured logging and tracing shared by
// every package in the world engine.
package observability

import (
	"io"
	"log"
	"os"

	"github.com/rs/zerolog"
)

// InitLogger configures the global zerolog logger. logPath == "" logs to
// stdout in console-writer form (development); otherwise logs are written as
// JSON lines to the given file, matching the teacher's dev/prod split.
func InitLogger(logPath, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var w io.Writer
	if logPath == "" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	} else {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		w = f
	}

	logger := zerolog.New(w).With().Timestamp().Caller().Logger()
	log.SetOutput(logger)
	log.SetFlags(0)
	return logger, nil
}
