package handler

import (
	"errors"

	"user-hub/internal/delivery/http/dto"
	"user-hub/internal/delivery/http/middleware"
	"user-hub/internal/domain/user"
	"user-hub/internal/pkg/response"
	"user-hub/internal/usecase/profile"
	"user-hub/internal/ws"

	"github.com/gofiber/fiber/v3"
)

// UserHandler serves the authenticated caller's own profile.
type UserHandler struct {
	profiles *profile.Service
}

type updateProfileRequest struct {
	Nickname           *string `json:"nickname"`
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
	Bio                *string `json:"bio"`
	ProfilePictureURL  *string `json:"profile_picture_url"`
	GithubProfileURL   *string `json:"github_profile_url"`
	LinkedinProfileURL *string `json:"linkedin_profile_url"`
}

func NewUserHandler(profiles *profile.Service) *UserHandler {
	return &UserHandler{profiles: profiles}
}

func (h *UserHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Get("/me", h.Me)
	r.Put("/me", h.UpdateMe)
}

func (h *UserHandler) Me(c fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	usr, err := h.profiles.Get(c.Context(), actor.ID)
	if err != nil {
		return mapProfileError(err)
	}

	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.FromUser(usr))
}

func (h *UserHandler) UpdateMe(c fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	var req updateProfileRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	usr, err := h.profiles.Update(c.Context(), actor, actor.ID, profile.UpdateInput{
		Nickname:           req.Nickname,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Bio:                req.Bio,
		ProfilePictureURL:  req.ProfilePictureURL,
		GithubProfileURL:   req.GithubProfileURL,
		LinkedinProfileURL: req.LinkedinProfileURL,
	})
	if err != nil {
		return mapProfileError(err)
	}

	ws.NotifyUserEvent(ws.EventUserUpdated, usr.ID)

	return response.Success(c, fiber.StatusOK, "Profile updated", dto.FromUser(usr))
}

func mapProfileError(err error) error {
	var valErr *profile.ValidationError
	switch {
	case errors.As(err, &valErr):
		return middleware.NewAppError(fiber.StatusBadRequest, "Validation failed", valErr.Fields, err)
	case errors.Is(err, user.ErrNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, "User not found", nil, err)
	case errors.Is(err, user.ErrVersionConflict):
		return middleware.NewAppError(fiber.StatusConflict, "Profile was modified concurrently, retry", nil, err)
	case errors.Is(err, user.ErrDuplicateEmail):
		return middleware.NewAppError(fiber.StatusConflict, "Email already registered", nil, err)
	case errors.Is(err, profile.ErrForbidden):
		return middleware.NewAppError(fiber.StatusForbidden, "Forbidden", nil, err)
	case errors.Is(err, profile.ErrInvalidInput):
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}
