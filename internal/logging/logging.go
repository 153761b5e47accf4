// Package logging performs one-time process-wide zerolog setup, the same
// role the teacher's clay.InitLogger() plays in its cobra
// PersistentPreRun hook.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls the global logger's format and verbosity.
type Options struct {
	// Level is one of "trace", "debug", "info", "warn", "error". Defaults
	// to "info" when empty.
	Level string
	// Pretty selects a human-readable console writer instead of JSON.
	// Intended for interactive CLI use; daemonised runs should leave it
	// false.
	Pretty bool
	Writer io.Writer
}

// Init configures the global zerolog logger. Safe to call more than once;
// the last call wins, matching the teacher's re-init-after-flag-parse
// pattern in PersistentPreRun.
func Init(opts Options) error {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

func parseLevel(s string) (zerolog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(s))
}

// Component returns a child logger tagged with a "component" field, the
// idiom used throughout the core (contextbuilder, apiclient,
// compressionworker, tokentracker, events).
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
