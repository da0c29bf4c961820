package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mediline/telecare-api/internal/service"
	"github.com/mediline/telecare-api/internal/utils"
	"github.com/mediline/telecare-api/pkg/rtctoken"
)

// TokenHandler issues join credentials for the video transport.
type TokenHandler struct {
	service service.TokenService
	logger  zerolog.Logger
}

// NewTokenHandler constructs the handler.
func NewTokenHandler(service service.TokenService, logger zerolog.Logger) *TokenHandler {
	return &TokenHandler{
		service: service,
		logger:  logger.With().Str("component", "token_handler").Logger(),
	}
}

// Register binds the token route under the provided router group.
func (h *TokenHandler) Register(router fiber.Router) {
	router.Get("", h.issue)
}

func (h *TokenHandler) issue(c *fiber.Ctx) error {
	channelID := strings.TrimSpace(c.Query("channel_id"))
	if channelID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "channel_id required")
	}

	uid := strings.TrimSpace(c.Query("uid"))
	if uid == "" {
		uid = userIDFromContext(c)
	}

	role := strings.TrimSpace(c.Query("role"))
	if role == "" {
		role = rtctoken.RolePublisher
	}

	token := h.service.Issue(channelID, uid, role)
	if token.Insecure {
		requestLogger(h.logger, c).Warn().Str("channel_id", channelID).Msg("issuing insecure rtc credential")
	}

	return utils.SendSuccess(c, "rtc credential", token)
}
