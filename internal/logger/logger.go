package logger

import (
	"context"
	"io"
	"log/slog"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for daemon log files (lumberjack semantics).
const (
	DefaultMaxSizeMB  = 5
	DefaultMaxBackups = 1
	DefaultMaxAgeDays = 7
)

// Config describes a daemon's log file rotation.
type Config struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileWriter returns a rotating writer for path.
func (c Config) FileWriter(path string) io.WriteCloser {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// NewCLI builds the logger for interactive commands: colored level prefixes,
// no timestamps.
func NewCLI(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewColorTextHandler(w, &slog.HandlerOptions{Level: level}, false))
}

// NewDaemon builds the logger for detached processes: plain timestamped text
// into the given writer.
func NewDaemon(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ColorTextHandler wraps slog.TextHandler to prefix messages with an ANSI
// colored level tag.
type ColorTextHandler struct {
	*slog.TextHandler
	showTime bool
}

func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, showTime bool) *ColorTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	if !showTime {
		inner := opts.ReplaceAttr
		opts = &slog.HandlerOptions{
			Level:     opts.Level,
			AddSource: opts.AddSource,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if len(groups) == 0 && a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				if inner != nil {
					return inner(groups, a)
				}
				return a
			},
		}
	}
	return &ColorTextHandler{
		TextHandler: slog.NewTextHandler(w, opts),
		showTime:    showTime,
	}
}

func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	var colorCode string
	switch r.Level {
	case slog.LevelDebug:
		colorCode = "\033[36m"
	case slog.LevelInfo:
		colorCode = "\033[32m"
	case slog.LevelWarn:
		colorCode = "\033[33m"
	case slog.LevelError:
		colorCode = "\033[31m"
	default:
		colorCode = "\033[0m"
	}
	r.Message = colorCode + r.Level.String() + "\033[0m  " + r.Message
	return h.TextHandler.Handle(ctx, r)
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
