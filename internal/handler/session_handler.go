package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/internal/middleware"
	"github.com/mediline/telecare-api/internal/observability"
	"github.com/mediline/telecare-api/internal/service"
	"github.com/mediline/telecare-api/internal/utils"
)

// SessionHandler wires the session registry endpoints, including the
// doctor-side watch websocket that streams registry changes.
type SessionHandler struct {
	service service.SessionService
	events  service.RegistryEvents
	logger  zerolog.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service service.SessionService, events service.RegistryEvents, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		events:  events,
		logger:  logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register binds session routes under the provided router group.
func (h *SessionHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	router.Post("", h.start)
	router.Post("/heartbeat", h.heartbeat)
	router.Delete("", h.end)

	router.Get("", staffOnly, h.list)

	router.Use("/watch", staffOnly, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/watch", websocket.New(h.watch))
}

func (h *SessionHandler) start(c *fiber.Ctx) error {
	var req dto.SessionStartRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session payload")
	}
	if req.PatientEmail == "" {
		req.PatientEmail = userIDFromContext(c)
	}

	session, err := h.service.Start(requestContext(c), req)
	if err != nil {
		if errors.Is(err, service.ErrNoDoctorOnDuty) {
			return utils.SendError(c, fiber.StatusServiceUnavailable, "no doctor on duty")
		}
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to register session")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to register session")
	}

	return utils.SendSuccess(c, "session registered", session)
}

func (h *SessionHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	sessions, err := h.service.ListActive(requestContext(c), limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list sessions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list sessions")
	}

	return utils.SendSuccess(c, "active sessions", sessions)
}

func (h *SessionHandler) heartbeat(c *fiber.Ctx) error {
	email := sessionEmail(c)
	if email == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "patient_email required")
	}

	if err := h.service.Touch(requestContext(c), email); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "no active session")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to refresh session")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to refresh session")
	}

	return utils.SendSuccess(c, "session refreshed", nil)
}

func (h *SessionHandler) end(c *fiber.Ctx) error {
	email := sessionEmail(c)
	if email == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "patient_email required")
	}

	reason := strings.TrimSpace(c.Query("reason"))
	if err := h.service.End(requestContext(c), email, reason); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to end session")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to end session")
	}

	return utils.SendSuccess(c, "session ended", nil)
}

// watch streams registry changes to the doctor dashboard. The current
// registry snapshot is sent first so a reconnecting watcher never misses
// state, then every change arrives as a session event.
func (h *SessionHandler) watch(conn *websocket.Conn) {
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	events, cancel := h.events.SubscribeSessions()
	defer cancel()

	observability.RegistryWatchers().Inc()
	defer observability.RegistryWatchers().Dec()

	snapshot, err := h.service.ListActive(baseCtx, 0)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to load registry snapshot for watcher")
		_ = conn.Close()
		return
	}
	if err := conn.WriteJSON(fiber.Map{"kind": "snapshot", "sessions": snapshot}); err != nil {
		_ = conn.Close()
		return
	}

	// Reader goroutine only detects the peer closing the socket.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				_ = conn.Close()
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				_ = conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

// sessionEmail resolves the patient identity from the JSON body, query, or
// the authenticated principal, in that order.
func sessionEmail(c *fiber.Ctx) string {
	var body struct {
		PatientEmail string `json:"patient_email"`
	}
	if err := c.BodyParser(&body); err == nil && body.PatientEmail != "" {
		return strings.TrimSpace(body.PatientEmail)
	}
	if email := strings.TrimSpace(c.Query("patient_email")); email != "" {
		return email
	}
	return userIDFromContext(c)
}
