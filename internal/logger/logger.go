// Package logger configures the application logrus logger and carries
// request scoped fields through context.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey string

const requestIDKey ctxKey = "requestID"

var std = logrus.New()

// New builds a logger from cfg. The returned closer releases the log file,
// if any, and is safe to call when output is stdout only.
func New(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	var closer io.Closer = nopCloser{}
	var writers []io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		writers = append(writers, os.Stdout)
	case "file", "both":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		closer = rotating
		writers = append(writers, rotating)
		if strings.EqualFold(cfg.Output, "both") {
			writers = append(writers, os.Stdout)
		}
	default:
		return nil, nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
	l.SetOutput(io.MultiWriter(writers...))
	return l, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetDefault replaces the logger returned by L and FromContext.
func SetDefault(l *logrus.Logger) {
	if l != nil {
		std = l
	}
}

// L returns the process wide logger.
func L() *logrus.Logger { return std }

// WithRequestID stores a request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FromContext returns an entry carrying the request and user ids found in ctx.
func FromContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(std).WithContext(ctx)
	if id := RequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	if uid, ok := auth.UserIDFromContext(ctx); ok {
		entry = entry.WithField("user_id", uid)
	}
	return entry
}
