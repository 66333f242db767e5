package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole normalizes a raw role string. Unknown values map to RoleUser so a
// forged or stale claim can never grant elevated access.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleManager:
		return RoleManager
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

func (r Role) CanManageUsers() bool {
	return r == RoleManager || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string

	Nickname           string
	FirstName          string
	LastName           string
	Bio                string
	ProfilePictureURL  string
	GithubProfileURL   string
	LinkedinProfileURL string

	Role                        Role
	IsProfessional              bool
	ProfessionalStatusUpdatedAt *time.Time

	EmailVerified     bool
	VerificationToken string

	PasswordResetToken     string
	PasswordResetExpiresAt *time.Time

	LastLoginAt *time.Time

	// Version guards every UPDATE; a write that loses a race is rejected
	// instead of silently overwriting the other side.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName is what notification templates address the user by.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Nickname != "" {
		return u.Nickname
	}
	return "User"
}
