package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnv is read when no level is passed to Init.
const LevelEnv = "MISSION_UPLOADER_LOG_LEVEL"

// Init initializes the global logger. level is one of trace, debug, info,
// warn, error (default: info); when empty MISSION_UPLOADER_LOG_LEVEL is used.
// Output goes to stderr as console text so it does not mix with results on
// stdout.
func Init(level string) {
	InitWriter(level, os.Stderr)
}

// InitWriter is Init with an explicit output.
func InitWriter(level string, out io.Writer) {
	if level == "" {
		level = os.Getenv(LevelEnv)
	}
	zerolog.SetGlobalLevel(ParseLevel(level))
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
