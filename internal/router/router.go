package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mediline/telecare-api/internal/config"
	"github.com/mediline/telecare-api/internal/handler"
	"github.com/mediline/telecare-api/internal/middleware"
	"github.com/mediline/telecare-api/internal/models"
	"github.com/mediline/telecare-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler     *handler.SessionHandler
	CallHandler        *handler.CallHandler
	ChatHandler        *handler.ChatHandler
	AppointmentHandler *handler.AppointmentHandler
	TokenHandler       *handler.TokenHandler
	TriageHandler      *handler.TriageHandler
	JWTMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	staffOnly := middleware.RequireRole(models.RoleDoctor, models.RoleReception)

	if deps.SessionHandler != nil {
		sessions := api.Group("/sessions", jwtMiddleware)
		deps.SessionHandler.Register(sessions, staffOnly)
	}

	if deps.CallHandler != nil {
		calls := api.Group("/calls", jwtMiddleware)
		deps.CallHandler.Register(calls, staffOnly)
	}

	if deps.ChatHandler != nil {
		chat := api.Group("/chat", jwtMiddleware)
		deps.ChatHandler.Register(chat)
	}

	if deps.AppointmentHandler != nil {
		appointments := api.Group("/appointments", jwtMiddleware)
		deps.AppointmentHandler.Register(appointments, staffOnly)
	}

	if deps.TokenHandler != nil {
		token := api.Group("/rtc-token", jwtMiddleware)
		deps.TokenHandler.Register(token)
	}

	if deps.TriageHandler != nil {
		triage := api.Group("/triage", jwtMiddleware, middleware.RateLimit("triage", 10, time.Minute))
		deps.TriageHandler.Register(triage)
	}
}
