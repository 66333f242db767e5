package status

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"user-hub/internal/domain/user"
	"user-hub/internal/notification"
)

var (
	ErrForbidden = errors.New("forbidden")
	ErrInternal  = errors.New("internal error")
)

// Service owns the professional-status flag. It is the only code path that
// writes it; the profile path cannot express it at all.
type Service struct {
	users    user.Repository
	notifier notification.Notifier
	baseURL  string

	now func() time.Time
}

func NewService(users user.Repository, notifier notification.Notifier, baseURL string) *Service {
	return &Service{
		users:    users,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

// SetProfessional flips the flag for managers/admins. Setting the flag to its
// current value is an idempotent no-op: the record is returned unchanged and
// no notification goes out, so at-least-once clients can retry safely.
func (s *Service) SetProfessional(ctx context.Context, actor user.Actor, targetID uuid.UUID, professional bool) (user.User, error) {
	if !actor.CanManageUsers() {
		return user.User{}, ErrForbidden
	}

	usr, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, ErrInternal
	}

	if usr.IsProfessional == professional {
		return sanitizeUser(usr), nil
	}

	changedAt := s.now().UTC()
	usr.IsProfessional = professional
	usr.ProfessionalStatusUpdatedAt = &changedAt

	updated, err := s.users.Update(ctx, usr)
	if err != nil {
		if errors.Is(err, user.ErrVersionConflict) {
			return user.User{}, user.ErrVersionConflict
		}
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, ErrInternal
	}

	// Only the upgrade is announced; a downgrade sends nothing. The flag is
	// already committed, so a failed notification never rolls it back.
	if professional {
		s.notifier.Dispatch(notification.Event{
			Type:   notification.TypeProfessionalUpgrade,
			UserID: updated.ID,
			Email:  updated.Email,
			Name:   updated.DisplayName(),
			URL:    s.baseURL + "/api/v1/users/" + updated.ID.String(),
		})
	}

	return sanitizeUser(updated), nil
}

func sanitizeUser(u user.User) user.User {
	u.PasswordHash = ""
	u.VerificationToken = ""
	u.PasswordResetToken = ""
	return u
}
