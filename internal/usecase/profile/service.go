package profile

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"user-hub/internal/domain/user"
	"user-hub/internal/notification"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrInternal     = errors.New("internal error")
)

// UpdateInput is the complete set of fields the profile path may touch.
// Role, professional status, verification state and password are not
// representable here; they change only through their dedicated flows.
type UpdateInput struct {
	Nickname           *string
	FirstName          *string
	LastName           *string
	Bio                *string
	ProfilePictureURL  *string
	GithubProfileURL   *string
	LinkedinProfileURL *string

	// Email may only be set by managers/admins editing another user.
	Email *string
}

func (in UpdateInput) empty() bool {
	return in.Nickname == nil && in.FirstName == nil && in.LastName == nil &&
		in.Bio == nil && in.ProfilePictureURL == nil && in.GithubProfileURL == nil &&
		in.LinkedinProfileURL == nil && in.Email == nil
}

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries field-level detail to the HTTP boundary.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

type Service struct {
	users    user.Repository
	notifier notification.Notifier
	baseURL  string
}

func NewService(users user.Repository, notifier notification.Notifier, baseURL string) *Service {
	return &Service{
		users:    users,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (user.User, error) {
	usr, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, ErrInternal
	}
	return sanitizeUser(usr), nil
}

// Update applies a partial patch to the target's profile. The caller must be
// the owner or hold a managing role; only the permitted fields move, and the
// whole patch lands in one version-guarded write.
func (s *Service) Update(ctx context.Context, actor user.Actor, targetID uuid.UUID, in UpdateInput) (user.User, error) {
	if !actor.Owns(targetID) && !actor.CanManageUsers() {
		return user.User{}, ErrForbidden
	}
	if in.empty() {
		return user.User{}, ErrInvalidInput
	}
	if err := validate(in); err != nil {
		return user.User{}, err
	}
	if in.Email != nil && !actor.CanManageUsers() {
		// Owners change their email through re-verification, not the
		// profile patch.
		return user.User{}, ErrForbidden
	}

	usr, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, ErrInternal
	}

	prevEmail := usr.Email
	apply(&usr, in)

	updated, err := s.users.Update(ctx, usr)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound),
			errors.Is(err, user.ErrVersionConflict),
			errors.Is(err, user.ErrDuplicateEmail):
			return user.User{}, err
		default:
			return user.User{}, ErrInternal
		}
	}

	// A changed address dropped back to unverified; the new inbox gets its
	// confirmation link right away.
	if updated.Email != prevEmail {
		s.notifier.Dispatch(notification.Event{
			Type:   notification.TypeEmailVerification,
			UserID: updated.ID,
			Email:  updated.Email,
			Name:   updated.DisplayName(),
			URL:    s.baseURL + "/api/v1/auth/verify-email/" + updated.ID.String() + "/" + updated.VerificationToken,
		})
	}

	return sanitizeUser(updated), nil
}

func apply(u *user.User, in UpdateInput) {
	if in.Nickname != nil {
		u.Nickname = strings.TrimSpace(*in.Nickname)
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Bio != nil {
		u.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.ProfilePictureURL != nil {
		u.ProfilePictureURL = strings.TrimSpace(*in.ProfilePictureURL)
	}
	if in.GithubProfileURL != nil {
		u.GithubProfileURL = strings.TrimSpace(*in.GithubProfileURL)
	}
	if in.LinkedinProfileURL != nil {
		u.LinkedinProfileURL = strings.TrimSpace(*in.LinkedinProfileURL)
	}
	if in.Email != nil {
		next := strings.ToLower(strings.TrimSpace(*in.Email))
		if next != u.Email {
			u.Email = next
			// A changed address must be proven again.
			u.EmailVerified = false
			u.VerificationToken = uuid.NewString()
		}
	}
}

func validate(in UpdateInput) error {
	var fields []FieldError

	checkURL := func(name string, val *string) {
		if val == nil {
			return
		}
		raw := strings.TrimSpace(*val)
		if raw == "" {
			return
		}
		if !isValidHTTPURL(raw) {
			fields = append(fields, FieldError{Field: name, Reason: "must be a valid http(s) URL"})
		}
	}

	checkURL("profile_picture_url", in.ProfilePictureURL)
	checkURL("github_profile_url", in.GithubProfileURL)
	checkURL("linkedin_profile_url", in.LinkedinProfileURL)

	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		at := strings.Index(email, "@")
		if email == "" || at <= 0 || at >= len(email)-1 {
			fields = append(fields, FieldError{Field: "email", Reason: "must be a valid email address"})
		}
	}

	if in.Nickname != nil && len(strings.TrimSpace(*in.Nickname)) > 64 {
		fields = append(fields, FieldError{Field: "nickname", Reason: "must be at most 64 characters"})
	}
	if in.Bio != nil && len(strings.TrimSpace(*in.Bio)) > 2000 {
		fields = append(fields, FieldError{Field: "bio", Reason: "must be at most 2000 characters"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func sanitizeUser(u user.User) user.User {
	u.PasswordHash = ""
	u.VerificationToken = ""
	u.PasswordResetToken = ""
	return u
}
