package ports

import (
	"context"

	"github.com/healthvault/auth-service/internal/core/domain"
)

// Notification is a passcode to be delivered out of band.
type Notification struct {
	Email   string
	Code    string
	Purpose domain.Purpose
}

// Notifier delivers passcodes. A nil error means the transport accepted
// the message.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
