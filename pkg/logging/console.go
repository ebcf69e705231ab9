package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// Level names a console log level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Levels lists every console level in increasing severity.
var Levels = []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}

// Console is the host logging capability: one single-argument writer per
// level. Missing levels are no-ops.
type Console map[Level]func(msg string)

// NopConsole returns a console that discards everything.
func NopConsole() Console {
	return Console{}.Normalize()
}

// Normalize returns a copy with every level populated.
func (c Console) Normalize() Console {
	out := make(Console, len(Levels))
	for _, level := range Levels {
		if fn := c[level]; fn != nil {
			out[level] = fn
			continue
		}
		out[level] = func(string) {}
	}
	return out
}

// Log writes msg at level. Unknown levels are dropped.
func (c Console) Log(level Level, msg string) {
	if fn := c[level]; fn != nil {
		fn(msg)
	}
}

// Debug writes at debug level.
func (c Console) Debug(msg string) { c.Log(LevelDebug, msg) }

// Info writes at info level.
func (c Console) Info(msg string) { c.Log(LevelInfo, msg) }

// Warn writes at warn level.
func (c Console) Warn(msg string) { c.Log(LevelWarn, msg) }

// Error writes at error level.
func (c Console) Error(msg string) { c.Log(LevelError, msg) }

// ZerologConsole adapts a zerolog logger.
func ZerologConsole(logger zerolog.Logger) Console {
	return Console{
		LevelDebug: func(msg string) { logger.Debug().Msg(msg) },
		LevelInfo:  func(msg string) { logger.Info().Msg(msg) },
		LevelWarn:  func(msg string) { logger.Warn().Msg(msg) },
		LevelError: func(msg string) { logger.Error().Msg(msg) },
	}
}

// SlogConsole adapts a slog logger. A nil logger uses slog.Default().
func SlogConsole(logger *slog.Logger) Console {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()
	write := func(level slog.Level) func(string) {
		return func(msg string) { logger.Log(ctx, level, msg) }
	}
	return Console{
		LevelDebug: write(slog.LevelDebug),
		LevelInfo:  write(slog.LevelInfo),
		LevelWarn:  write(slog.LevelWarn),
		LevelError: write(slog.LevelError),
	}
}
