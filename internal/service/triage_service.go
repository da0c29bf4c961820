package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/internal/models"
	"github.com/mediline/telecare-api/pkg/ai"
)

// ErrTriageUnavailable indicates no AI provider is configured.
var ErrTriageUnavailable = errors.New("triage assist not configured")

// TriageService produces an advisory urgency suggestion for an intake
// complaint. It never blocks session creation; failures degrade to the
// routine tier.
type TriageService interface {
	Suggest(ctx context.Context, complaint string, age int, gender string) (dto.TriageSuggestionResponse, error)
}

type triageService struct {
	triager ai.Triager
	model   string
	logger  zerolog.Logger
}

// NewTriageService constructs the triage service. triager may be nil when no
// provider is configured.
func NewTriageService(triager ai.Triager, model string, logger zerolog.Logger) TriageService {
	return &triageService{
		triager: triager,
		model:   model,
		logger:  logger.With().Str("component", "triage_service").Logger(),
	}
}

func (s *triageService) Suggest(ctx context.Context, complaint string, age int, gender string) (dto.TriageSuggestionResponse, error) {
	if s.triager == nil {
		return dto.TriageSuggestionResponse{}, ErrTriageUnavailable
	}

	complaint = strings.TrimSpace(complaint)
	if complaint == "" {
		return dto.TriageSuggestionResponse{}, errors.New("complaint is required")
	}

	result, err := s.triager.Triage(ctx, ai.TriageInput{Complaint: complaint, Age: age, Gender: gender})
	if err != nil {
		s.logger.Warn().Err(err).Msg("triage suggestion failed, falling back to routine")
		return dto.TriageSuggestionResponse{Urgency: models.UrgencyRoutine}, nil
	}

	return dto.TriageSuggestionResponse{
		Urgency:   result.Urgency,
		Rationale: result.Rationale,
		Model:     s.model,
	}, nil
}
