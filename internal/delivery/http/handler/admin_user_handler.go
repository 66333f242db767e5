package handler

import (
	"errors"
	"strconv"

	"user-hub/internal/delivery/http/dto"
	"user-hub/internal/delivery/http/middleware"
	"user-hub/internal/domain/user"
	"user-hub/internal/pkg/response"
	"user-hub/internal/usecase/admin"
	"user-hub/internal/usecase/profile"
	"user-hub/internal/usecase/status"
	"user-hub/internal/ws"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// AdminUserHandler serves the manager/admin user-directory routes.
type AdminUserHandler struct {
	admins   *admin.Service
	profiles *profile.Service
	statuses *status.Service
}

type createUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Nickname  string `json:"nickname"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type adminUpdateUserRequest struct {
	Email              *string `json:"email"`
	Nickname           *string `json:"nickname"`
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
	Bio                *string `json:"bio"`
	ProfilePictureURL  *string `json:"profile_picture_url"`
	GithubProfileURL   *string `json:"github_profile_url"`
	LinkedinProfileURL *string `json:"linkedin_profile_url"`
}

type professionalStatusRequest struct {
	IsProfessional bool `json:"is_professional"`
}

func NewAdminUserHandler(admins *admin.Service, profiles *profile.Service, statuses *status.Service) *AdminUserHandler {
	return &AdminUserHandler{admins: admins, profiles: profiles, statuses: statuses}
}

func (h *AdminUserHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/:id", h.Get)
	r.Put("/:id", h.Update)
	r.Delete("/:id", h.Delete)
	r.Put("/:id/professional-status", h.SetProfessionalStatus)
}

func (h *AdminUserHandler) List(c fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	limit := queryInt(c, "limit", 0)
	offset := queryInt(c, "offset", 0)

	res, err := h.admins.List(c.Context(), actor, limit, offset)
	if err != nil {
		return mapAdminError(err)
	}

	items := make([]dto.UserResponse, 0, len(res.Users))
	for _, usr := range res.Users {
		items = append(items, dto.FromUser(usr))
	}

	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.UserListResponse{
		Items:  items,
		Total:  res.Total,
		Limit:  res.Limit,
		Offset: res.Offset,
	})
}

func (h *AdminUserHandler) Create(c fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	var req createUserRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	usr, err := h.admins.Create(c.Context(), actor, admin.CreateInput{
		Email:     req.Email,
		Password:  req.Password,
		Nickname:  req.Nickname,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		return mapAdminError(err)
	}

	ws.NotifyUserEvent(ws.EventUserRegistered, usr.ID)

	return response.Success(c, fiber.StatusCreated, response.MessageCreated, dto.FromUser(usr))
}

func (h *AdminUserHandler) Get(c fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid user id", nil, err)
	}

	usr, err := h.admins.Get(c.Context(), actor, id)
	if err != nil {
		return mapAdminError(err)
	}

	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.FromUser(usr))
}

func (h *AdminUserHandler) Update(c fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid user id", nil, err)
	}

	var req adminUpdateUserRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	usr, err := h.profiles.Update(c.Context(), actor, id, profile.UpdateInput{
		Email:              req.Email,
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

func (h *AdminUserHandler) Delete(c fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid user id", nil, err)
	}

	if err := h.admins.Delete(c.Context(), actor, id); err != nil {
		return mapAdminError(err)
	}

	ws.NotifyUserEvent(ws.EventUserDeleted, id)

	return response.Success(c, fiber.StatusOK, "User deleted", nil)
}

func (h *AdminUserHandler) SetProfessionalStatus(c fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid user id", nil, err)
	}

	var req professionalStatusRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	usr, err := h.statuses.SetProfessional(c.Context(), actor, id, req.IsProfessional)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrForbidden):
			return middleware.NewAppError(fiber.StatusForbidden, "Forbidden", nil, err)
		case errors.Is(err, user.ErrNotFound):
			return middleware.NewAppError(fiber.StatusNotFound, "User not found", nil, err)
		case errors.Is(err, user.ErrVersionConflict):
			return middleware.NewAppError(fiber.StatusConflict, "Profile was modified concurrently, retry", nil, err)
		default:
			return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
		}
	}

	if usr.IsProfessional {
		ws.NotifyUserEvent(ws.EventUserUpgraded, usr.ID)
	}

	return response.Success(c, fiber.StatusOK, "Professional status updated", dto.FromUser(usr))
}

func mapAdminError(err error) error {
	switch {
	case errors.Is(err, admin.ErrForbidden):
		return middleware.NewAppError(fiber.StatusForbidden, "Forbidden", nil, err)
	case errors.Is(err, user.ErrNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, "User not found", nil, err)
	case errors.Is(err, admin.ErrDuplicateEmail):
		return middleware.NewAppError(fiber.StatusConflict, "Email already registered", nil, err)
	case errors.Is(err, admin.ErrInvalidInput):
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}

func queryInt(c fiber.Ctx, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
