package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"user-hub/internal/domain/user"
	"user-hub/internal/notification"
)

var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidInput           = errors.New("invalid input")
	ErrAccountLocked          = errors.New("account locked")
	ErrInvalidToken           = errors.New("invalid token")
	ErrTokenExpired           = errors.New("token expired")
	ErrInternal               = errors.New("internal error")
)

const (
	passwordResetTTL      = time.Hour
	conflictRetryAttempts = 3
)

type RegisterInput struct {
	Email     string
	Password  string
	Nickname  string
	FirstName string
	LastName  string
}

type LoginInput struct {
	Email    string
	Password string
}

// LoginGuard is the lockout policy; the redis-backed implementation lives in
// infrastructure/cache.
type LoginGuard interface {
	IsLocked(ctx context.Context, email string) (bool, error)
	RegisterFailure(ctx context.Context, email string) (bool, error)
	Reset(ctx context.Context, email string) error
}

type Service struct {
	users    user.Repository
	guard    LoginGuard
	notifier notification.Notifier
	baseURL  string

	now func() time.Time
}

func NewService(users user.Repository, guard LoginGuard, notifier notification.Notifier, baseURL string) *Service {
	return &Service{
		users:    users,
		guard:    guard,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	email := normalizeEmail(in.Email)
	if !isValidEmail(email) {
		return user.User{}, ErrInvalidInput
	}
	if !isValidPassword(in.Password) {
		return user.User{}, ErrInvalidInput
	}

	// Cheap pre-check before the bcrypt work; the unique constraint on the
	// insert stays the authority when two registrations race.
	if exists, err := s.users.ExistsByEmail(ctx, email); err == nil && exists {
		return user.User{}, ErrEmailAlreadyRegistered
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, ErrInternal
	}

	u := user.User{
		ID:                uuid.New(),
		Email:             email,
		PasswordHash:      string(hash),
		Nickname:          strings.TrimSpace(in.Nickname),
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		Role:              user.RoleUser,
		VerificationToken: uuid.NewString(),
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return user.User{}, ErrEmailAlreadyRegistered
		}
		return user.User{}, ErrInternal
	}

	created, err := s.users.GetByID(ctx, u.ID)
	if err != nil {
		return user.User{}, ErrInternal
	}

	s.notifier.Dispatch(notification.Event{
		Type:   notification.TypeEmailVerification,
		UserID: created.ID,
		Email:  created.Email,
		Name:   created.DisplayName(),
		URL:    s.baseURL + "/api/v1/auth/verify-email/" + created.ID.String() + "/" + u.VerificationToken,
	})

	return sanitizeUser(created), nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (user.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return user.User{}, ErrInvalidCredentials
	}

	locked, err := s.guard.IsLocked(ctx, email)
	if err == nil && locked {
		return user.User{}, ErrAccountLocked
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrInvalidCredentials
		}
		return user.User{}, ErrInternal
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		tripped, gErr := s.guard.RegisterFailure(ctx, email)
		if gErr == nil && tripped {
			s.notifier.Dispatch(notification.Event{
				Type:   notification.TypeAccountLocked,
				UserID: u.ID,
				Email:  u.Email,
				Name:   u.DisplayName(),
			})
		}
		return user.User{}, ErrInvalidCredentials
	}

	_ = s.guard.Reset(ctx, email)
	_ = s.users.UpdateLastLogin(ctx, u.ID, s.now().UTC())

	return sanitizeUser(u), nil
}

// VerifyEmail is idempotent: re-verifying an already verified account is not
// an error, a wrong token is.
func (s *Service) VerifyEmail(ctx context.Context, userID uuid.UUID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}

	for attempt := 0; attempt < conflictRetryAttempts; attempt++ {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return user.ErrNotFound
			}
			return ErrInternal
		}

		if u.EmailVerified {
			return nil
		}
		if u.VerificationToken == "" || u.VerificationToken != token {
			return ErrInvalidToken
		}

		u.EmailVerified = true
		u.VerificationToken = ""

		_, err = s.users.Update(ctx, u)
		if err == nil {
			return nil
		}
		if errors.Is(err, user.ErrVersionConflict) {
			continue
		}
		return ErrInternal
	}

	return ErrInternal
}

// RequestPasswordReset never reveals whether the email is registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return ErrInternal
	}

	token := uuid.NewString()
	expires := s.now().UTC().Add(passwordResetTTL)

	for attempt := 0; attempt < conflictRetryAttempts; attempt++ {
		u.PasswordResetToken = token
		u.PasswordResetExpiresAt = &expires

		if _, err := s.users.Update(ctx, u); err != nil {
			if errors.Is(err, user.ErrVersionConflict) {
				if u, err = s.users.GetByID(ctx, u.ID); err == nil {
					continue
				}
			}
			return ErrInternal
		}

		s.notifier.Dispatch(notification.Event{
			Type:   notification.TypePasswordReset,
			UserID: u.ID,
			Email:  u.Email,
			Name:   u.DisplayName(),
			URL:    s.baseURL + "/reset-password/" + u.ID.String() + "/" + token,
		})
		return nil
	}

	return ErrInternal
}

func (s *Service) ConfirmPasswordReset(ctx context.Context, userID uuid.UUID, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	if !isValidPassword(newPassword) {
		return ErrInvalidInput
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.ErrNotFound
		}
		return ErrInternal
	}

	if u.PasswordResetToken == "" || u.PasswordResetToken != token {
		return ErrInvalidToken
	}
	if u.PasswordResetExpiresAt == nil || s.now().UTC().After(*u.PasswordResetExpiresAt) {
		return ErrTokenExpired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return ErrInternal
	}

	u.PasswordHash = string(hash)
	u.PasswordResetToken = ""
	u.PasswordResetExpiresAt = nil

	if _, err := s.users.Update(ctx, u); err != nil {
		return ErrInternal
	}

	_ = s.guard.Reset(ctx, u.Email)
	return nil
}

func normalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	return strings.ToLower(email)
}

func isValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

func isValidPassword(pw string) bool {
	return len(strings.TrimSpace(pw)) >= 8
}

func sanitizeUser(u user.User) user.User {
	u.PasswordHash = ""
	u.VerificationToken = ""
	u.PasswordResetToken = ""
	return u
}
