package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediline/telecare-api/internal/models"
	"github.com/mediline/telecare-api/pkg/ai"
)

type triagerStub struct {
	result ai.TriageResult
	err    error
}

func (s *triagerStub) Triage(_ context.Context, _ ai.TriageInput) (ai.TriageResult, error) {
	return s.result, s.err
}

func TestTriageServiceSuggest(t *testing.T) {
	stub := &triagerStub{result: ai.TriageResult{Urgency: models.UrgencyCritical, Rationale: "chest pain"}}
	svc := NewTriageService(stub, "gpt-4o-mini", testLogger())

	suggestion, err := svc.Suggest(context.Background(), "crushing chest pain", 58, "male")
	require.NoError(t, err)
	require.Equal(t, models.UrgencyCritical, suggestion.Urgency)
	require.Equal(t, "gpt-4o-mini", suggestion.Model)
}

func TestTriageServiceFallsBackToRoutineOnFailure(t *testing.T) {
	stub := &triagerStub{err: errors.New("provider down")}
	svc := NewTriageService(stub, "gpt-4o-mini", testLogger())

	suggestion, err := svc.Suggest(context.Background(), "mild headache", 0, "")
	require.NoError(t, err)
	require.Equal(t, models.UrgencyRoutine, suggestion.Urgency)
}

func TestTriageServiceUnavailableWithoutProvider(t *testing.T) {
	svc := NewTriageService(nil, "", testLogger())

	_, err := svc.Suggest(context.Background(), "anything", 0, "")
	require.ErrorIs(t, err, ErrTriageUnavailable)
}
