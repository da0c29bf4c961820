package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/internal/models"
	"github.com/mediline/telecare-api/internal/observability"
	"github.com/mediline/telecare-api/internal/repository"
)

// Session event kinds pushed to registry watchers.
const (
	SessionEventStarted = "session_started"
	SessionEventUpdated = "session_updated"
	SessionEventEnded   = "session_ended"
	SessionEventExpired = "session_expired"
)

// ErrNoDoctorOnDuty indicates no account with the doctor role exists yet, so
// a rendezvous counterpart cannot be resolved.
var ErrNoDoctorOnDuty = errors.New("no doctor on duty")

// ErrSessionNotFound indicates a heartbeat arrived for a session the sweeper
// or the other side already reclaimed; the client should tear down.
var ErrSessionNotFound = errors.New("no active session")

// DeriveRoomKey returns the deterministic room identifier for a participant
// pair: the identifiers sorted lexicographically and joined with an
// underscore. Both sides derive the same key regardless of who initiates.
func DeriveRoomKey(a, b string) string {
	pair := []string{strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))}
	sort.Strings(pair)
	return pair[0] + "_" + pair[1]
}

// SessionService owns the chat session registry: the rendezvous point where
// a patient opens a session and the doctor side discovers it.
type SessionService interface {
	Start(ctx context.Context, req dto.SessionStartRequest) (dto.SessionResponse, error)
	ListActive(ctx context.Context, limit int) ([]dto.SessionResponse, error)
	// Touch refreshes the presence signal; ErrSessionNotFound means the
	// session was already reclaimed.
	Touch(ctx context.Context, patientEmail string) error
	// End removes the patient's active registry entries. Ending an already
	// ended session succeeds as a no-op.
	End(ctx context.Context, patientEmail, reason string) error
}

type sessionService struct {
	repo      repository.SessionRepository
	users     repository.UserRepository
	events    RegistryEvents
	validator *validator.Validate
	window    time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewSessionService constructs the session registry service. window is the
// inactivity window after which the sweeper reclaims a session.
func NewSessionService(repo repository.SessionRepository, users repository.UserRepository, events RegistryEvents, validate *validator.Validate, window time.Duration, logger zerolog.Logger) SessionService {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &sessionService{
		repo:      repo,
		users:     users,
		events:    events,
		validator: validate,
		window:    window,
		logger:    logger.With().Str("component", "session_service").Logger(),
		tracer:    otel.Tracer("github.com/mediline/telecare-api/internal/service/session"),
	}
}

func (s *sessionService) Start(ctx context.Context, req dto.SessionStartRequest) (dto.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SessionResponse{}, err
	}

	patientEmail := strings.ToLower(strings.TrimSpace(req.PatientEmail))

	doctor, err := s.users.FirstByRole(ctx, models.RoleDoctor)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionResponse{}, ErrNoDoctorOnDuty
		}
		return dto.SessionResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "session.start", trace.WithAttributes(
		attribute.String("session.patient", patientEmail),
		attribute.String("session.urgency", req.Urgency),
	))
	defer span.End()

	now := time.Now().UTC()
	urgency := req.Urgency
	if urgency == "" {
		urgency = models.UrgencyRoutine
	}

	var intake datatypes.JSONMap
	if len(req.Intake) > 0 {
		intake = make(datatypes.JSONMap, len(req.Intake))
		for key, value := range req.Intake {
			intake[key] = value
		}
	}

	session := models.ActiveSession{
		PatientEmail: patientEmail,
		RoomID:       DeriveRoomKey(patientEmail, doctor.Email),
		PatientName:  strings.TrimSpace(req.PatientName),
		Age:          req.Age,
		Gender:       req.Gender,
		Contact:      strings.TrimSpace(req.Contact),
		Complaint:    strings.TrimSpace(req.Complaint),
		Urgency:      urgency,
		Status:       models.SessionStatusActive,
		Intake:       intake,
		LastActiveAt: now,
		ExpiresAt:    now.Add(s.window),
	}

	if err := s.repo.Upsert(spanCtx, &session); err != nil {
		span.RecordError(err)
		return dto.SessionResponse{}, err
	}

	kind := SessionEventStarted
	if session.CreatedAt.Before(now.Add(-time.Second)) {
		kind = SessionEventUpdated
	}

	response := dto.NewSessionResponse(session)
	if s.events != nil {
		s.events.PublishSession(spanCtx, dto.SessionEvent{Kind: kind, Session: response, SentAt: now})
	}
	observability.SessionsStarted().Inc()

	s.logger.Info().Str("patient", patientEmail).Str("room_id", session.RoomID).Str("kind", kind).Msg("session registered")

	return response, nil
}

func (s *sessionService) ListActive(ctx context.Context, limit int) ([]dto.SessionResponse, error) {
	sessions, err := s.repo.ListActive(ctx, limit)
	if err != nil {
		return nil, err
	}

	// The unique index rules out duplicate active entries, but rows written
	// before the index migration may still carry them; keep the most recent
	// entry per patient.
	seen := make(map[string]struct{}, len(sessions))
	deduped := sessions[:0]
	for _, session := range sessions {
		if _, ok := seen[session.PatientEmail]; ok {
			continue
		}
		seen[session.PatientEmail] = struct{}{}
		deduped = append(deduped, session)
	}

	return dto.NewSessionResponseSlice(deduped), nil
}

func (s *sessionService) Touch(ctx context.Context, patientEmail string) error {
	err := s.repo.Touch(ctx, strings.ToLower(strings.TrimSpace(patientEmail)), time.Now().UTC())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSessionNotFound
	}
	return err
}

func (s *sessionService) End(ctx context.Context, patientEmail, reason string) error {
	patientEmail = strings.ToLower(strings.TrimSpace(patientEmail))

	spanCtx, span := s.tracer.Start(ctx, "session.end", trace.WithAttributes(
		attribute.String("session.patient", patientEmail),
		attribute.String("session.reason", reason),
	))
	defer span.End()

	session, err := s.repo.FindActive(spanCtx, patientEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Already gone; the other side or the sweeper won the race.
			return nil
		}
		return err
	}

	deleted, err := s.repo.DeleteActive(spanCtx, patientEmail)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if deleted == 0 {
		return nil
	}

	kind := SessionEventEnded
	if reason == "timeout" {
		kind = SessionEventExpired
	}
	if s.events != nil {
		s.events.PublishSession(spanCtx, dto.SessionEvent{
			Kind:    kind,
			Session: dto.NewSessionResponse(session),
			SentAt:  time.Now().UTC(),
		})
	}
	observability.SessionsEnded().WithLabelValues(reasonLabel(reason)).Inc()

	s.logger.Info().Str("patient", patientEmail).Str("reason", reason).Msg("session ended")

	return nil
}

func reasonLabel(reason string) string {
	switch reason {
	case "", "hangup":
		return "hangup"
	case "timeout", "declined":
		return reason
	default:
		return "other"
	}
}
