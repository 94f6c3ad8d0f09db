package xlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/michael-freling/ml-artifact-store/internal/config"
)

// New creates a logger which writes JSON lines into a file under the log directory.
// In development, logs are also written to console in a human readable format.
// The returned file must be closed by the caller.
func New(conf config.Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(conf.LogDirectory, 0755); err != nil {
		return nil, nil, fmt.Errorf("os.MkdirAll: %w", err)
	}

	logFilePath := filepath.Join(conf.LogDirectory, string(conf.Environment)+".log")
	file, err := os.OpenFile(
		logFilePath,
		os.O_RDWR|os.O_APPEND|os.O_CREATE,
		0644,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("os.OpenFile: %w", err)
	}

	var handler slog.Handler
	switch conf.Environment {
	case config.EnvironmentDevelopment:
		handler = fanout{
			tint.NewHandler(console, &tint.Options{
				Level:      slog.LevelDebug,
				TimeFormat: time.Kitchen,
				NoColor:    !isTerminal(console),
			}),
			slog.NewJSONHandler(file, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		}
	default:
		handler = slog.NewJSONHandler(file, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return slog.New(handler), file, nil
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd())
}

// fanout sends a record to every handler enabled for its level
type fanout []slog.Handler

func (handlers fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (handlers fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	result := make(fanout, 0, len(handlers))
	for _, handler := range handlers {
		result = append(result, handler.WithAttrs(attrs))
	}
	return result
}

func (handlers fanout) WithGroup(name string) slog.Handler {
	result := make(fanout, 0, len(handlers))
	for _, handler := range handlers {
		result = append(result, handler.WithGroup(name))
	}
	return result
}
