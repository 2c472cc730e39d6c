package logger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config controls logger initialization.
// Level accepts debug/info/warn/error; an empty level means info.
// Environment selects the handler: "prod"/"production" writes JSON,
// everything else text.
type Config struct {
	Level       string
	Environment string
	WithSource  bool
}

var (
	global *slog.Logger
	once   sync.Once
)

func levelFromString(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level: " + level)
	}
}

// New builds a slog.Logger from cfg without touching the global instance.
func New(cfg Config) (*slog.Logger, error) {
	lvl, err := levelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl, AddSource: cfg.WithSource}
	var handler slog.Handler
	env := strings.ToLower(cfg.Environment)
	if env == "prod" || env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	}

	return slog.New(handler), nil
}

// Init sets up the global logger. Repeated calls return the first instance.
func Init(cfg Config) (*slog.Logger, error) {
	var initErr error
	once.Do(func() {
		global, initErr = New(cfg)
	})
	return global, initErr
}

// L returns the global logger; panics when Init was never called.
func L() *slog.Logger {
	if global == nil {
		panic("logger.Init must be called before logger.L")
	}
	return global
}

// LogAIRequest records one AI provider round trip as a structured event.
// provider: openai/gemini/elevenlabs; operation: classify/summarize/transcribe/speak.
func LogAIRequest(logger *slog.Logger, provider, operation string, durationMs int64, err error) {
	attrs := []slog.Attr{
		slog.String("provider", provider),
		slog.String("operation", operation),
		slog.Int64("duration_ms", durationMs),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		logger.LogAttrs(context.Background(), slog.LevelError, "AI request failed", attrs...)
	} else {
		logger.LogAttrs(context.Background(), slog.LevelInfo, "AI request completed", attrs...)
	}
}
