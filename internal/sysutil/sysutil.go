// Package sysutil holds process bootstrap helpers for cmd/server: global
// logger setup and build version resolution.
package sysutil

import (
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel configures the global zerolog level from a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal,
// panic. Anything else means info.
func SetLogLevel(lvl string) zerolog.Level {
	l := zerolog.InfoLevel
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		l = zerolog.DebugLevel
	case "warn", "warning":
		l = zerolog.WarnLevel
	case "error":
		l = zerolog.ErrorLevel
	case "fatal":
		l = zerolog.FatalLevel
	case "panic":
		l = zerolog.PanicLevel
	}
	zerolog.SetGlobalLevel(l)
	return l
}

// SetupLogger replaces the global logger. Pretty output uses a console
// writer for local development; otherwise lines are JSON with RFC3339
// millisecond timestamps. A nil out means stderr.
func SetupLogger(out io.Writer, level string, pretty bool, service, version string) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	SetLogLevel(level)
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
	return log.Logger
}

// BuildVersion resolves the running version: APP_VERSION, then the module
// version or VCS revision stamped by the Go toolchain, then "dev".
func BuildVersion() string {
	var modVersion, revision string
	if bi, ok := debug.ReadBuildInfo(); ok {
		if bi.Main.Version != "(devel)" {
			modVersion = bi.Main.Version
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 12 {
				revision = s.Value[:12]
			}
		}
	}
	return FirstNonEmpty(os.Getenv("APP_VERSION"), modVersion, revision, "dev")
}

// FirstNonEmpty returns the first value that is not blank, or "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
