// Package logging builds the prefixed component loggers.  They are gommon
// loggers, the same type echo uses, so the admin API and the TCP side write
// in one format.
package logging

import (
	"io"
	"strings"

	"github.com/labstack/gommon/log"
)

const header = "${time_rfc3339} ${level} ${prefix} ${short_file}:${line}"

// ParseLevel maps debug, info, warn, error and off to a gommon level.
// Anything else is info.
func ParseLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	}
	return log.INFO
}

// New returns a logger tagged with prefix at the given level.
func New(prefix, level string) *log.Logger {
	l := log.New(prefix)
	l.SetHeader(header)
	l.SetLevel(ParseLevel(level))
	return l
}

// Discard returns a logger that writes nowhere, for tests.
func Discard(prefix string) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(io.Discard)
	return l
}
