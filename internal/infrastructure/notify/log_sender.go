package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/healthvault/auth-service/internal/core/ports"
)

// LogSender writes passcodes to the log instead of mailing them. Development only.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, n ports.Notification) error {
	s.log.Warn().
		Str("email", n.Email).
		Str("purpose", string(n.Purpose)).
		Str("code", n.Code).
		Msg("passcode (log transport, not delivered)")
	return nil
}
