package service

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/pkg/rtctoken"
)

// TokenService hands out join credentials for the video transport. When no
// signing secret is configured the service degrades to empty credentials
// instead of failing, so calls still connect in development setups; the
// response is marked insecure so clients can surface it.
type TokenService interface {
	Issue(channelID, uid, role string) dto.RTCTokenResponse
}

type tokenService struct {
	builder *rtctoken.Builder
	logger  zerolog.Logger
}

// NewTokenService constructs the credential service. builder may be nil when
// the RTC secret is not configured.
func NewTokenService(builder *rtctoken.Builder, logger zerolog.Logger) TokenService {
	return &tokenService{
		builder: builder,
		logger:  logger.With().Str("component", "token_service").Logger(),
	}
}

func (s *tokenService) Issue(channelID, uid, role string) dto.RTCTokenResponse {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = rtctoken.RolePublisher
	}

	response := dto.RTCTokenResponse{
		ChannelID: channelID,
		UID:       uid,
		Role:      role,
	}

	if s.builder == nil {
		response.Insecure = true
		s.logger.Warn().Str("channel_id", channelID).Msg("issuing unauthenticated join, rtc secret not configured")
		return response
	}

	credential, err := s.builder.Build(channelID, uid, role)
	if err != nil {
		response.Insecure = true
		s.logger.Warn().Err(err).Str("channel_id", channelID).Msg("credential build failed, degrading to unauthenticated join")
		return response
	}

	response.Token = credential
	response.ExpiresIn = int(s.builder.TTL().Seconds())
	return response
}
