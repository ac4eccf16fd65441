// Package logging provides structured logging for tdata-reader.
//
// The tool has exactly one logging need: progress and format-quirk
// diagnostics on stderr, keeping stdout clean for extracted data. A
// single constructor covers it; tests pass their own writer.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// levels maps the accepted config names onto slog levels. Unknown names
// fall back to info.
var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New builds a logger writing to w. Level is one of debug, info, warn,
// error; format is text or json.
func New(level, format string, w io.Writer) *slog.Logger {
	lvl, ok := levels[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Nop returns a logger that discards all output.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Common attribute keys for consistent logging.
const (
	KeyFile      = "file"
	KeyPath      = "path"
	KeyAccount   = "account"
	KeyStep      = "step"
	KeyKind      = "kind"
	KeyVersion   = "version"
	KeySize      = "size"
	KeyError     = "error"
	KeyComponent = "component"
	KeyCount     = "count"
)
