package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger tags the configured global logger with app and reinstalls it.
// Call after logging.Configure.
func InitLogger(app string) zerolog.Logger {
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// Component derives a logger for one subsystem of a live session.
func Component(base zerolog.Logger, component, sessionID string) zerolog.Logger {
	ctx := base.With().Str("component", component)
	if sessionID != "" {
		ctx = ctx.Str("session", sessionID)
	}
	return ctx.Logger()
}
