package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/internal/models"
	"github.com/mediline/telecare-api/internal/observability"
	"github.com/mediline/telecare-api/internal/repository"
)

// Call event kinds pushed to watchers of a call document.
const (
	CallEventCreated    = "call_created"
	CallEventConnected  = "call_connected"
	CallEventTerminated = "call_terminated"
	CallEventRemoved    = "call_removed"
)

// ErrCallNotFound indicates no call exists for the channel id.
var ErrCallNotFound = errors.New("call not found")

// ErrInvalidTransition indicates the requested status change is not a legal
// lifecycle step from the call's current state.
var ErrInvalidTransition = errors.New("invalid call status transition")

// CallService drives the call lifecycle state machine:
// waiting -> connected -> ended | declined | missed | cancelled.
// Every transition is applied as a guarded conditional update and mirrored
// to watchers as an event; terminal transitions additionally write the
// call log exactly once and schedule removal of the call row.
type CallService interface {
	Create(ctx context.Context, req dto.CallCreateRequest) (dto.CallResponse, error)
	Get(ctx context.Context, channelID string) (dto.CallResponse, error)
	ListWaiting(ctx context.Context) ([]dto.CallResponse, error)
	Join(ctx context.Context, channelID string) (dto.CallResponse, error)
	// Terminate moves the call to the terminal status. Terminating a call
	// that already reached a terminal state (or is gone) is a no-op.
	Terminate(ctx context.Context, channelID string, status models.CallStatus) error
	Logs(ctx context.Context, patientEmail string, limit int) ([]dto.CallLogResponse, error)
}

type callService struct {
	repo        repository.CallRepository
	events      RegistryEvents
	validator   *validator.Validate
	removeDelay time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewCallService constructs the call lifecycle service. removeDelay is how
// long a terminal call row is kept around so late watchers still observe the
// terminal status before the row disappears.
func NewCallService(repo repository.CallRepository, events RegistryEvents, validate *validator.Validate, removeDelay time.Duration, logger zerolog.Logger) CallService {
	if removeDelay < 0 {
		removeDelay = 5 * time.Second
	}
	return &callService{
		repo:        repo,
		events:      events,
		validator:   validate,
		removeDelay: removeDelay,
		logger:      logger.With().Str("component", "call_service").Logger(),
		tracer:      otel.Tracer("github.com/mediline/telecare-api/internal/service/call"),
	}
}

func (s *callService) Create(ctx context.Context, req dto.CallCreateRequest) (dto.CallResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CallResponse{}, err
	}

	urgency := req.Urgency
	if urgency == "" {
		urgency = models.UrgencyRoutine
	}

	call := models.ActiveCall{
		ChannelID:    uuid.NewString(),
		PatientEmail: strings.ToLower(strings.TrimSpace(req.PatientEmail)),
		PatientName:  strings.TrimSpace(req.PatientName),
		PatientUID:   strings.TrimSpace(req.PatientUID),
		CallType:     req.CallType,
		Status:       models.CallStatusWaiting,
		Urgency:      urgency,
	}

	spanCtx, span := s.tracer.Start(ctx, "call.create", trace.WithAttributes(
		attribute.String("call.channel_id", call.ChannelID),
		attribute.String("call.type", call.CallType),
	))
	defer span.End()

	if err := s.repo.Create(spanCtx, &call); err != nil {
		span.RecordError(err)
		return dto.CallResponse{}, err
	}

	response := dto.NewCallResponse(call)
	s.publish(spanCtx, dto.CallEvent{
		Kind:      CallEventCreated,
		ChannelID: call.ChannelID,
		Status:    call.Status,
		Call:      &response,
	})
	observability.CallsCreated().WithLabelValues(call.CallType).Inc()

	s.logger.Info().Str("channel_id", call.ChannelID).Str("patient", call.PatientEmail).Str("call_type", call.CallType).Msg("call created")

	return response, nil
}

func (s *callService) Get(ctx context.Context, channelID string) (dto.CallResponse, error) {
	call, err := s.repo.FindByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CallResponse{}, ErrCallNotFound
		}
		return dto.CallResponse{}, err
	}
	return dto.NewCallResponse(call), nil
}

func (s *callService) ListWaiting(ctx context.Context) ([]dto.CallResponse, error) {
	calls, err := s.repo.ListWaiting(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewCallResponseSlice(calls), nil
}

func (s *callService) Join(ctx context.Context, channelID string) (dto.CallResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "call.join", trace.WithAttributes(
		attribute.String("call.channel_id", channelID),
	))
	defer span.End()

	now := time.Now().UTC()
	changed, err := s.repo.UpdateStatus(spanCtx, channelID, models.CallStatusWaiting, models.CallStatusConnected, &now)
	if err != nil {
		span.RecordError(err)
		return dto.CallResponse{}, err
	}
	if changed == 0 {
		call, err := s.repo.FindByChannel(spanCtx, channelID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.CallResponse{}, ErrCallNotFound
			}
			return dto.CallResponse{}, err
		}
		return dto.CallResponse{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, call.Status, models.CallStatusConnected)
	}

	call, err := s.repo.FindByChannel(spanCtx, channelID)
	if err != nil {
		return dto.CallResponse{}, err
	}

	response := dto.NewCallResponse(call)
	s.publish(spanCtx, dto.CallEvent{
		Kind:      CallEventConnected,
		ChannelID: channelID,
		Status:    models.CallStatusConnected,
		Call:      &response,
	})

	s.logger.Info().Str("channel_id", channelID).Msg("call connected")

	return response, nil
}

func (s *callService) Terminate(ctx context.Context, channelID string, status models.CallStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidTransition, status)
	}

	spanCtx, span := s.tracer.Start(ctx, "call.terminate", trace.WithAttributes(
		attribute.String("call.channel_id", channelID),
		attribute.String("call.status", string(status)),
	))
	defer span.End()

	call, err := s.repo.FindByChannel(spanCtx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The peer tore down first; nothing left to do.
			return nil
		}
		return err
	}

	if call.Status.Terminal() {
		return nil
	}
	if !call.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, call.Status, status)
	}

	changed, err := s.repo.UpdateStatus(spanCtx, channelID, call.Status, status, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if changed == 0 {
		// Lost the race against the peer's teardown; their log write wins.
		return nil
	}

	now := time.Now().UTC()
	duration := 0
	startedAt := call.CreatedAt
	if call.ConnectedAt != nil {
		startedAt = *call.ConnectedAt
		duration = int(now.Sub(startedAt).Seconds())
	}

	written, err := s.repo.AppendLog(spanCtx, &models.CallLog{
		ChannelID:       channelID,
		PatientEmail:    call.PatientEmail,
		PatientName:     call.PatientName,
		CallType:        call.CallType,
		Status:          status,
		DurationSeconds: duration,
		StartedAt:       startedAt,
		EndedAt:         now,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("channel_id", channelID).Msg("failed to write call log")
	} else if !written {
		s.logger.Debug().Str("channel_id", channelID).Msg("call log already written")
	}

	s.publish(spanCtx, dto.CallEvent{
		Kind:      CallEventTerminated,
		ChannelID: channelID,
		Status:    status,
	})
	observability.CallsTerminated().WithLabelValues(string(status)).Inc()

	s.scheduleRemoval(channelID)

	s.logger.Info().Str("channel_id", channelID).Str("status", string(status)).Int("duration_s", duration).Msg("call terminated")

	return nil
}

// scheduleRemoval deletes the terminal call row after the grace period so a
// watcher that reconnects late still observes the terminal status first.
func (s *callService) scheduleRemoval(channelID string) {
	remove := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, err := s.repo.DeleteByChannel(ctx, channelID); err != nil {
			s.logger.Warn().Err(err).Str("channel_id", channelID).Msg("failed to remove terminal call")
			return
		}
		s.publish(ctx, dto.CallEvent{Kind: CallEventRemoved, ChannelID: channelID})
	}

	if s.removeDelay == 0 {
		remove()
		return
	}
	time.AfterFunc(s.removeDelay, remove)
}

func (s *callService) Logs(ctx context.Context, patientEmail string, limit int) ([]dto.CallLogResponse, error) {
	logs, err := s.repo.ListLogs(ctx, strings.ToLower(strings.TrimSpace(patientEmail)), limit)
	if err != nil {
		return nil, err
	}
	return dto.NewCallLogResponseSlice(logs), nil
}

func (s *callService) publish(ctx context.Context, event dto.CallEvent) {
	if s.events == nil {
		return
	}
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}
	s.events.PublishCall(ctx, event)
}
