// Package logging configures the global zerolog logger for all
// ChillTask entrypoints.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger. Level comes from config ("debug",
// "info", "warn", "error"); unknown values fall back to info. When
// pretty is true, output goes through the console writer instead of
// raw JSON.
func Setup(level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}
