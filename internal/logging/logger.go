// Package logging wraps the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"strings"

	clog "github.com/charmbracelet/log"
)

// L is the package-level logger. Components derive prefixed children with With.
var L = clog.New(os.Stderr)

// Configure sets level and output format for L. Unknown levels fall back to info.
func Configure(w io.Writer, level, format string) {
	if w != nil {
		L.SetOutput(w)
	}
	lvl, err := clog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = clog.InfoLevel
	}
	L.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "json":
		L.SetFormatter(clog.JSONFormatter)
	case "logfmt":
		L.SetFormatter(clog.LogfmtFormatter)
	default:
		L.SetFormatter(clog.TextFormatter)
	}
	L.SetReportTimestamp(true)
}

// With returns a child logger tagged with prefix.
func With(prefix string) *clog.Logger {
	return L.WithPrefix(prefix)
}
