package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogBackend is the development fallback when neither RABBITMQ_URL nor
// SMTP_HOST is configured: events are logged instead of delivered.
type LogBackend struct {
	Logger zerolog.Logger
}

func (b LogBackend) Name() string {
	return "log"
}

func (b LogBackend) Deliver(_ context.Context, evt Event) error {
	b.Logger.Info().
		Str("type", string(evt.Type)).
		Str("email", evt.Email).
		Str("url", evt.URL).
		Msg("notification (log backend)")
	return nil
}
