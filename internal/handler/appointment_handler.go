package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/internal/service"
	"github.com/mediline/telecare-api/internal/utils"
)

// AppointmentHandler wires booking endpoints and the reception-controlled
// intake gate.
type AppointmentHandler struct {
	service service.AppointmentService
	logger  zerolog.Logger
}

// NewAppointmentHandler constructs the handler.
func NewAppointmentHandler(service service.AppointmentService, logger zerolog.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		logger:  logger.With().Str("component", "appointment_handler").Logger(),
	}
}

// Register binds appointment routes under the provided router group.
func (h *AppointmentHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	router.Post("", h.book)
	router.Get("", h.list)
	router.Delete("/:id", h.cancel)
	router.Get("/gate", h.gate)
	router.Put("/gate", staffOnly, h.setGate)
}

func (h *AppointmentHandler) book(c *fiber.Ctx) error {
	appointment, err := h.service.Book(requestContext(c), c.Body())
	if err != nil {
		if errors.Is(err, service.ErrIntakeClosed) {
			return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
		}
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Warn().Err(err).Msg("booking rejected")
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "appointment booked", appointment)
}

func (h *AppointmentHandler) list(c *fiber.Ctx) error {
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

	appointments, err := h.service.ListByPatient(requestContext(c), email, limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list appointments")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list appointments")
	}

	return utils.SendSuccess(c, "appointments", appointments)
}

func (h *AppointmentHandler) cancel(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid appointment id")
	}

	// Staff may cancel on behalf of any patient; patients only their own.
	email := userIDFromContext(c)
	switch userRoleFromContext(c) {
	case "doctor", "reception":
		email = ""
	}

	if err := h.service.Cancel(requestContext(c), uint(id), email); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "appointment not found")
		}
		requestLogger(h.logger, c).Warn().Err(err).Msg("failed to cancel appointment")
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	return utils.SendSuccess(c, "appointment cancelled", nil)
}

func (h *AppointmentHandler) gate(c *fiber.Ctx) error {
	gate, err := h.service.Gate(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load intake gate")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load intake gate")
	}

	return utils.SendSuccess(c, "intake gate", gate)
}

func (h *AppointmentHandler) setGate(c *fiber.Ctx) error {
	var req dto.IntakeGateUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid gate payload")
	}

	gate, err := h.service.SetGate(requestContext(c), req, userIDFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to update intake gate")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to update intake gate")
	}

	return utils.SendSuccess(c, "intake gate updated", gate)
}
