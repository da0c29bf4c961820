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
	"github.com/mediline/telecare-api/internal/models"
	"github.com/mediline/telecare-api/internal/service"
	"github.com/mediline/telecare-api/internal/utils"
)

// CallHandler wires the call lifecycle endpoints. A call is created in the
// waiting state by the patient, answered by the doctor via join, and closed
// by either side via terminate. Watchers of a channel receive every status
// change over the watch websocket.
type CallHandler struct {
	service service.CallService
	events  service.RegistryEvents
	logger  zerolog.Logger
}

// NewCallHandler constructs the handler.
func NewCallHandler(service service.CallService, events service.RegistryEvents, logger zerolog.Logger) *CallHandler {
	return &CallHandler{
		service: service,
		events:  events,
		logger:  logger.With().Str("component", "call_handler").Logger(),
	}
}

// Register binds call routes under the provided router group.
func (h *CallHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	router.Post("", h.create)
	router.Get("/waiting", staffOnly, h.listWaiting)
	router.Get("/logs", h.logs)
	router.Get("/:channelID", h.get)
	router.Post("/:channelID/join", staffOnly, h.join)
	router.Post("/:channelID/terminate", h.terminate)

	router.Use("/:channelID/watch", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			c.Locals("channel_id", c.Params("channelID"))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/:channelID/watch", websocket.New(h.watch))
}

func (h *CallHandler) create(c *fiber.Ctx) error {
	var req dto.CallCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid call payload")
	}
	if req.PatientEmail == "" {
		req.PatientEmail = userIDFromContext(c)
	}

	call, err := h.service.Create(requestContext(c), req)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to create call")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create call")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "call created", call)
}

func (h *CallHandler) get(c *fiber.Ctx) error {
	call, err := h.service.Get(requestContext(c), c.Params("channelID"))
	if err != nil {
		if errors.Is(err, service.ErrCallNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "call not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load call")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load call")
	}

	return utils.SendSuccess(c, "call", call)
}

func (h *CallHandler) listWaiting(c *fiber.Ctx) error {
	calls, err := h.service.ListWaiting(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list waiting calls")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list waiting calls")
	}

	return utils.SendSuccess(c, "waiting calls", calls)
}

func (h *CallHandler) join(c *fiber.Ctx) error {
	call, err := h.service.Join(requestContext(c), c.Params("channelID"))
	if err != nil {
		if errors.Is(err, service.ErrCallNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "call not found")
		}
		if errors.Is(err, service.ErrInvalidTransition) {
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to join call")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to join call")
	}

	return utils.SendSuccess(c, "call connected", call)
}

func (h *CallHandler) terminate(c *fiber.Ctx) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid terminate payload")
	}

	status := models.CallStatus(strings.ToLower(strings.TrimSpace(body.Status)))
	if status == "" {
		status = models.CallStatusEnded
	}

	if err := h.service.Terminate(requestContext(c), c.Params("channelID"), status); err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to terminate call")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to terminate call")
	}

	return utils.SendSuccess(c, "call terminated", nil)
}

func (h *CallHandler) logs(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("patient_email"))
	if email == "" {
		email = userIDFromContext(c)
	}
	if email == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "patient_email required")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	logs, err := h.service.Logs(requestContext(c), email, limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list call logs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list call logs")
	}

	return utils.SendSuccess(c, "call history", logs)
}

// watch streams status changes for a single call document. The current call
// state is sent first; once a terminal event followed by removal arrives the
// stream closes.
func (h *CallHandler) watch(conn *websocket.Conn) {
	channelID, _ := conn.Locals("channel_id").(string)
	if channelID == "" {
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	events, cancel := h.events.SubscribeCall(channelID)
	defer cancel()

	if call, err := h.service.Get(baseCtx, channelID); err == nil {
		if err := conn.WriteJSON(dto.CallEvent{Kind: "snapshot", ChannelID: channelID, Status: call.Status, Call: &call}); err != nil {
			_ = conn.Close()
			return
		}
	}

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
			if event.Kind == service.CallEventRemoved {
				_ = conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}
