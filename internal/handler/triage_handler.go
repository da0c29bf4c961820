package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mediline/telecare-api/internal/service"
	"github.com/mediline/telecare-api/internal/utils"
)

// TriageHandler exposes the advisory urgency suggestion endpoint.
type TriageHandler struct {
	service service.TriageService
	logger  zerolog.Logger
}

// NewTriageHandler constructs the handler.
func NewTriageHandler(service service.TriageService, logger zerolog.Logger) *TriageHandler {
	return &TriageHandler{
		service: service,
		logger:  logger.With().Str("component", "triage_handler").Logger(),
	}
}

// Register binds the triage route under the provided router group.
func (h *TriageHandler) Register(router fiber.Router) {
	router.Post("", h.suggest)
}

func (h *TriageHandler) suggest(c *fiber.Ctx) error {
	var req struct {
		Complaint string `json:"complaint"`
		Age       int    `json:"age"`
		Gender    string `json:"gender"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid triage payload")
	}

	suggestion, err := h.service.Suggest(requestContext(c), req.Complaint, req.Age, req.Gender)
	if err != nil {
		if errors.Is(err, service.ErrTriageUnavailable) {
			return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
		}
		requestLogger(h.logger, c).Warn().Err(err).Msg("triage suggestion rejected")
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	return utils.SendSuccess(c, "triage suggestion", suggestion)
}
