package v1

import (
	"user-hub/internal/delivery/http/handler"
	"user-hub/internal/delivery/http/middleware"
	"user-hub/internal/domain/user"
	"user-hub/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type Deps struct {
	Health *handler.HealthHandler
	Auth   *handler.AuthHandler
	Users  *handler.UserHandler
	Admin  *handler.AdminUserHandler
	WS     *ws.Handler

	AuthMW *middleware.AuthMiddleware
}

func Register(r fiber.Router, deps Deps) {
	if r == nil {
		return
	}

	if deps.Auth != nil {
		deps.Auth.RegisterRoutes(r.Group("/auth"))
	}

	if deps.AuthMW == nil {
		return
	}
	protected := r.Group("", deps.AuthMW.Middleware())

	users := protected.Group("/users")

	// /users/me must be registered before the managed /users/:id routes so
	// the literal segment wins the match.
	if deps.Users != nil {
		deps.Users.RegisterRoutes(users)
	}

	if deps.Admin != nil {
		managed := users.Group("", middleware.RequireRole(user.RoleManager, user.RoleAdmin))
		deps.Admin.RegisterRoutes(managed)
	}

	if deps.WS != nil {
		deps.WS.RegisterRoutes(protected.Group("/ws", middleware.RequireRole(user.RoleManager, user.RoleAdmin)))
	}
}
