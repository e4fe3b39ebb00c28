// Package logging configures the process-wide slog logger and provides
// request-scoped and security-event helpers.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdobak/go-xerrors"
)

// Initialize installs a JSON logger on stdout as the slog default. The level
// comes from LOGGING_LEVEL (debug, info, warn, error; info when unset).
func Initialize() {
	slog.SetDefault(New(os.Stdout, os.Getenv("LOGGING_LEVEL")))
}

// New returns a JSON logger writing to w. Error attributes are rendered as a
// group with the message and, when one was captured, the stack trace.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: replaceAttr,
	}))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	if err, ok := a.Value.Any().(error); ok {
		a.Value = errorValue(err)
	}
	return a
}

type frame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

// errorValue renders err as {msg, trace}. trace is omitted for errors that
// carry no stack.
func errorValue(err error) slog.Value {
	attrs := []slog.Attr{slog.String("msg", err.Error())}

	trace := xerrors.StackTrace(err)
	if len(trace) == 0 {
		return slog.GroupValue(attrs...)
	}

	frames := trace.Frames()
	out := make([]frame, 0, len(frames))
	for _, f := range frames {
		out = append(out, frame{
			Func:   filepath.Base(f.Function),
			Source: filepath.Join(filepath.Base(filepath.Dir(f.File)), filepath.Base(f.File)),
			Line:   f.Line,
		})
	}
	return slog.GroupValue(append(attrs, slog.Any("trace", out))...)
}

// WrapError prefixes err with msg and records the caller's stack.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return xerrors.Newf("%s: %v", msg, xerrors.WithStackTrace(err, 1))
}
