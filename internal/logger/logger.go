package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Constants for different environment types.
const (
	EnvLocal   = "local"
	EnvDev     = "development"
	EnvProd    = "production"
	EnvConsole = "console"
)

// Setup initializes and returns a logger based on the environment provided.
// A nil writer logs to stderr; debug forces the debug level in every environment.
func Setup(env string, out io.Writer, debug bool) *slog.Logger {
	if out == nil {
		out = os.Stderr
	}

	level := func(def slog.Level) slog.Level {
		if debug {
			return slog.LevelDebug
		}
		return def
	}
	dropTime := func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey {
			return slog.Attr{}
		}
		return a
	}

	var log *slog.Logger

	switch env {
	case EnvLocal:
		log = slog.New(
			slog.NewTextHandler(out, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case EnvDev:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{
				Level: level(slog.LevelInfo),
			}),
		)
	case EnvProd:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{
				Level:       level(slog.LevelWarn),
				ReplaceAttr: dropTime,
			}),
		)
	case EnvConsole:
		zl := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
		log = NewSlog(&zl, level(slog.LevelInfo))
	default:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{
				Level:       level(slog.LevelError),
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production, console"))
	}

	return log
}
