package dto

import (
	"time"

	"github.com/google/uuid"

	"user-hub/internal/domain/user"
)

type UserResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	Nickname           string     `json:"nickname,omitempty"`
	FirstName          string     `json:"first_name,omitempty"`
	LastName           string     `json:"last_name,omitempty"`
	Bio                string     `json:"bio,omitempty"`
	ProfilePictureURL  string     `json:"profile_picture_url,omitempty"`
	GithubProfileURL   string     `json:"github_profile_url,omitempty"`
	LinkedinProfileURL string     `json:"linkedin_profile_url,omitempty"`
	Role               string     `json:"role"`
	IsProfessional     bool       `json:"is_professional"`
	EmailVerified      bool       `json:"email_verified"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func FromUser(u user.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		Nickname:           u.Nickname,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Bio:                u.Bio,
		ProfilePictureURL:  u.ProfilePictureURL,
		GithubProfileURL:   u.GithubProfileURL,
		LinkedinProfileURL: u.LinkedinProfileURL,
		Role:               u.Role.String(),
		IsProfessional:     u.IsProfessional,
		EmailVerified:      u.EmailVerified,
		LastLoginAt:        u.LastLoginAt,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

type UserListResponse struct {
	Items  []UserResponse `json:"items"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
