// Package logger builds the slog loggers used across tgrelay.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

type config struct {
	level   slog.Level
	leveler *slog.LevelVar
	pretty  bool
	json    bool
	source  bool
	writers []io.Writer
}

// New creates a *slog.Logger. Without options it writes slog text records at
// Info level to os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(c)
	}

	var w io.Writer
	switch len(c.writers) {
	case 0:
		w = os.Stdout
	case 1:
		w = c.writers[0]
	default:
		w = io.MultiWriter(c.writers...)
	}

	var leveler slog.Leveler = c.level
	if c.leveler != nil {
		leveler = c.leveler
	}

	var handler slog.Handler
	switch {
	case c.json:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: leveler, AddSource: c.source})
	case c.pretty:
		// The charm handler filters by its own level, so it is opened fully
		// and gated by the shared leveler instead.
		handler = &levelGate{
			leveler: leveler,
			next: charmlog.NewWithOptions(w, charmlog.Options{
				Level:           charmlog.DebugLevel,
				ReportTimestamp: true,
				ReportCaller:    c.source,
			}),
		}
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: leveler, AddSource: c.source})
	}

	return slog.New(handler)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type levelGate struct {
	leveler slog.Leveler
	next    slog.Handler
}

func (g *levelGate) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= g.leveler.Level() && g.next.Enabled(ctx, level)
}

func (g *levelGate) Handle(ctx context.Context, r slog.Record) error {
	return g.next.Handle(ctx, r)
}

func (g *levelGate) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelGate{leveler: g.leveler, next: g.next.WithAttrs(attrs)}
}

func (g *levelGate) WithGroup(name string) slog.Handler {
	return &levelGate{leveler: g.leveler, next: g.next.WithGroup(name)}
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
