package routes

import (
	v1 "user-hub/internal/delivery/http/routes/v1"

	"github.com/gofiber/fiber/v3"
)

// Deps re-exported so callers only import the routes package.
type Deps = v1.Deps

// Registry owns the route tree. Handlers are built by the app container and
// handed in fully wired.
type Registry struct {
	deps v1.Deps
}

func NewRegistry(deps v1.Deps) *Registry {
	return &Registry{deps: deps}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.registerHealth(app)
	r.registerAPI(app)
}

func (r *Registry) registerHealth(app *fiber.App) {
	if r.deps.Health != nil {
		r.deps.Health.RegisterRoutes(app)
	}
}

func (r *Registry) registerAPI(app *fiber.App) {
	api := app.Group("/api")
	v1.Register(api.Group("/v1"), r.deps)
}
