package notification

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeEmailVerification   Type = "email_verification"
	TypePasswordReset       Type = "password_reset"
	TypeAccountLocked       Type = "account_locked"
	TypeProfessionalUpgrade Type = "professional_upgrade"
)

// Event is one outbound notification. ID doubles as the idempotency key, so
// retried deliveries of the same event collapse while distinct events for the
// same user do not.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	URL        string    `json:"url,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

var eventIDNamespace = uuid.MustParse("2f3c1a74-9d6e-4c05-8b0a-d41f7b5c9e21")

// StableID names the event by what it announces, not by when it was built.
// Verification and reset events carry a per-issuance token in the URL, so a
// new token yields a new id while redispatches of the same one collapse.
func (e Event) StableID() uuid.UUID {
	return uuid.NewSHA1(eventIDNamespace, []byte(string(e.Type)+"|"+e.UserID.String()+"|"+e.URL))
}
