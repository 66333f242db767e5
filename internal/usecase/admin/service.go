package admin

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"user-hub/internal/domain/user"
)

var (
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrInternal       = errors.New("internal error")
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type CreateInput struct {
	Email     string
	Password  string
	Nickname  string
	FirstName string
	LastName  string
	Role      string
}

type ListResult struct {
	Users  []user.User
	Total  int64
	Limit  int
	Offset int
}

// Service is the manager/admin view over the user store.
type Service struct {
	users user.Repository
}

func NewService(users user.Repository) *Service {
	return &Service{users: users}
}

func (s *Service) Get(ctx context.Context, actor user.Actor, id uuid.UUID) (user.User, error) {
	if !actor.CanManageUsers() {
		return user.User{}, ErrForbidden
	}
	usr, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, ErrInternal
	}
	return sanitizeUser(usr), nil
}

func (s *Service) List(ctx context.Context, actor user.Actor, limit, offset int) (ListResult, error) {
	if !actor.CanManageUsers() {
		return ListResult{}, ErrForbidden
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	total, err := s.users.Count(ctx)
	if err != nil {
		return ListResult{}, ErrInternal
	}

	items, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return ListResult{}, ErrInternal
	}
	for i := range items {
		items[i] = sanitizeUser(items[i])
	}

	return ListResult{Users: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Create lets managers provision regular accounts; assigning an elevated role
// is admin-only. Admin-created accounts start verified since there is no
// self-service confirmation loop behind them.
func (s *Service) Create(ctx context.Context, actor user.Actor, in CreateInput) (user.User, error) {
	if !actor.CanManageUsers() {
		return user.User{}, ErrForbidden
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	at := strings.Index(email, "@")
	if email == "" || at <= 0 || at >= len(email)-1 {
		return user.User{}, ErrInvalidInput
	}
	if len(strings.TrimSpace(in.Password)) < 8 {
		return user.User{}, ErrInvalidInput
	}

	role := user.RoleUser
	if raw := strings.TrimSpace(in.Role); raw != "" {
		role = user.ParseRole(raw)
	}
	if role != user.RoleUser && !actor.IsAdmin() {
		return user.User{}, ErrForbidden
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, ErrInternal
	}

	u := user.User{
		ID:            uuid.New(),
		Email:         email,
		PasswordHash:  string(hash),
		Nickname:      strings.TrimSpace(in.Nickname),
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Role:          role,
		EmailVerified: true,
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return user.User{}, ErrDuplicateEmail
		}
		return user.User{}, ErrInternal
	}

	created, err := s.users.GetByID(ctx, u.ID)
	if err != nil {
		return user.User{}, ErrInternal
	}
	return sanitizeUser(created), nil
}

func (s *Service) Delete(ctx context.Context, actor user.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if actor.Owns(id) {
		// An admin removing their own account is almost always a mistake.
		return ErrInvalidInput
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.ErrNotFound
		}
		return ErrInternal
	}
	return nil
}

func sanitizeUser(u user.User) user.User {
	u.PasswordHash = ""
	u.VerificationToken = ""
	u.PasswordResetToken = ""
	return u
}
