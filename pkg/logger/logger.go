// Package logger provides the structured logger shared by every component.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// Logger wraps a logrus entry pre-populated with the component name.
type Logger struct {
	*logrus.Entry
}

// Config controls logger output.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

// New builds a logger for the named component.
func New(component string, cfg Config) *Logger {
	base := logrus.New()

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	base.SetOutput(out)

	if strings.EqualFold(cfg.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	return &Logger{Entry: base.WithField("component", component)}
}

// NewDefault returns an info-level text logger writing to stderr.
func NewDefault(component string) *Logger {
	return New(component, Config{})
}

// NewDiscard returns a logger that drops everything. Useful in tests.
func NewDiscard() *Logger {
	return New("discard", Config{Output: io.Discard})
}

// Named returns a child logger for a sub-component sharing the same output.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", component)}
}

// WithContext attaches the logger to ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or fallback when none is set.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return fallback
}
