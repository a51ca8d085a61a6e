// Package logger builds the application slog.Logger for a given environment.
package logger

import (
	"os"

	"golang.org/x/exp/slog"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/config"
)

// New returns a logger tuned for env: human-readable debug output locally,
// JSON elsewhere, info level in prod.
func New(env string) *slog.Logger {
	switch env {
	case config.EnvLocal:
		return setupPrettySlog()
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return setupPrettySlog()
	}
}

func setupPrettySlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
