package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type sessionRepoStub struct {
	sessions []models.ActiveSession
	nextID   uint
}

func (s *sessionRepoStub) Upsert(_ context.Context, session *models.ActiveSession) error {
	for i := range s.sessions {
		if s.sessions[i].PatientEmail == session.PatientEmail && s.sessions[i].Status == models.SessionStatusActive {
			session.ID = s.sessions[i].ID
			session.CreatedAt = s.sessions[i].CreatedAt
			s.sessions[i] = *session
			return nil
		}
	}
	s.nextID++
	session.ID = s.nextID
	session.CreatedAt = time.Now()
	s.sessions = append(s.sessions, *session)
	return nil
}

func (s *sessionRepoStub) ListActive(_ context.Context, _ int) ([]models.ActiveSession, error) {
	out := make([]models.ActiveSession, len(s.sessions))
	copy(out, s.sessions)
	return out, nil
}

func (s *sessionRepoStub) FindActive(_ context.Context, patientEmail string) (models.ActiveSession, error) {
	for _, session := range s.sessions {
		if session.PatientEmail == patientEmail {
			return session, nil
		}
	}
	return models.ActiveSession{}, gorm.ErrRecordNotFound
}

func (s *sessionRepoStub) Touch(_ context.Context, patientEmail string, at time.Time) error {
	var matched bool
	for i := range s.sessions {
		if s.sessions[i].PatientEmail == patientEmail {
			s.sessions[i].LastActiveAt = at
			matched = true
		}
	}
	if !matched {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *sessionRepoStub) DeleteActive(_ context.Context, patientEmail string) (int64, error) {
	var kept []models.ActiveSession
	var deleted int64
	for _, session := range s.sessions {
		if session.PatientEmail == patientEmail {
			deleted++
			continue
		}
		kept = append(kept, session)
	}
	s.sessions = kept
	return deleted, nil
}

func (s *sessionRepoStub) ListExpired(_ context.Context, cutoff time.Time) ([]models.ActiveSession, error) {
	var out []models.ActiveSession
	for _, session := range s.sessions {
		if session.LastActiveAt.Before(cutoff) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *sessionRepoStub) DeleteExpired(_ context.Context, id uint, cutoff time.Time) (int64, error) {
	var kept []models.ActiveSession
	var deleted int64
	for _, session := range s.sessions {
		if session.ID == id && session.LastActiveAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, session)
	}
	s.sessions = kept
	return deleted, nil
}

type userRepoStub struct {
	doctor models.User
	err    error
}

func (u *userRepoStub) FindByEmail(_ context.Context, email string) (models.User, error) {
	return u.doctor, u.err
}

func (u *userRepoStub) FirstByRole(_ context.Context, _ string) (models.User, error) {
	if u.err != nil {
		return models.User{}, u.err
	}
	return u.doctor, nil
}

func (u *userRepoStub) Upsert(_ context.Context, _ *models.User) error { return nil }

type eventRecorder struct {
	sessionEvents []dto.SessionEvent
	callEvents    []dto.CallEvent
}

func (e *eventRecorder) PublishSession(_ context.Context, event dto.SessionEvent) {
	e.sessionEvents = append(e.sessionEvents, event)
}

func (e *eventRecorder) PublishCall(_ context.Context, event dto.CallEvent) {
	e.callEvents = append(e.callEvents, event)
}

func (e *eventRecorder) SubscribeSessions() (<-chan dto.SessionEvent, func()) {
	ch := make(chan dto.SessionEvent)
	return ch, func() {}
}

func (e *eventRecorder) SubscribeCall(_ string) (<-chan dto.CallEvent, func()) {
	ch := make(chan dto.CallEvent)
	return ch, func() {}
}

func (e *eventRecorder) Start(_ context.Context) {}

func TestDeriveRoomKeySymmetry(t *testing.T) {
	forward := DeriveRoomKey("alice@example.com", "doctor@example.com")
	reverse := DeriveRoomKey("doctor@example.com", "alice@example.com")

	require.Equal(t, forward, reverse)
	require.Equal(t, "alice@example.com_doctor@example.com", forward)
}

func TestDeriveRoomKeyNormalises(t *testing.T) {
	require.Equal(t,
		DeriveRoomKey("  Alice@Example.com ", "doctor@example.com"),
		DeriveRoomKey("alice@example.com", "DOCTOR@example.com"),
	)
}

func TestSessionServiceStartRegistersAndPublishes(t *testing.T) {
	repo := &sessionRepoStub{}
	users := &userRepoStub{doctor: models.User{Email: "doctor@example.com", Role: models.RoleDoctor}}
	events := &eventRecorder{}

	svc := NewSessionService(repo, users, events, validator.New(), 10*time.Minute, testLogger())

	response, err := svc.Start(context.Background(), dto.SessionStartRequest{
		PatientEmail: "Alice@Example.com",
		PatientName:  "Alice",
		Complaint:    "persistent cough",
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", response.PatientEmail)
	require.Equal(t, "alice@example.com_doctor@example.com", response.RoomID)
	require.Equal(t, models.UrgencyRoutine, response.Urgency)
	require.Len(t, events.sessionEvents, 1)
	require.Equal(t, SessionEventStarted, events.sessionEvents[0].Kind)
}

func TestSessionServiceStartRefreshesExistingEntry(t *testing.T) {
	repo := &sessionRepoStub{}
	users := &userRepoStub{doctor: models.User{Email: "doctor@example.com"}}
	svc := NewSessionService(repo, users, &eventRecorder{}, validator.New(), 10*time.Minute, testLogger())

	first, err := svc.Start(context.Background(), dto.SessionStartRequest{
		PatientEmail: "alice@example.com", PatientName: "Alice", Complaint: "cough",
	})
	require.NoError(t, err)

	second, err := svc.Start(context.Background(), dto.SessionStartRequest{
		PatientEmail: "alice@example.com", PatientName: "Alice", Complaint: "cough worsening",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "expected the active entry to be reused")
	require.Len(t, repo.sessions, 1)
}

func TestSessionServiceStartFailsWithoutDoctor(t *testing.T) {
	users := &userRepoStub{err: gorm.ErrRecordNotFound}
	svc := NewSessionService(&sessionRepoStub{}, users, &eventRecorder{}, validator.New(), 0, testLogger())

	_, err := svc.Start(context.Background(), dto.SessionStartRequest{
		PatientEmail: "alice@example.com", PatientName: "Alice", Complaint: "cough",
	})
	require.ErrorIs(t, err, ErrNoDoctorOnDuty)
}

func TestSessionServiceEndIsIdempotent(t *testing.T) {
	repo := &sessionRepoStub{}
	users := &userRepoStub{doctor: models.User{Email: "doctor@example.com"}}
	events := &eventRecorder{}
	svc := NewSessionService(repo, users, events, validator.New(), 0, testLogger())

	_, err := svc.Start(context.Background(), dto.SessionStartRequest{
		PatientEmail: "alice@example.com", PatientName: "Alice", Complaint: "cough",
	})
	require.NoError(t, err)

	require.NoError(t, svc.End(context.Background(), "alice@example.com", "hangup"))
	require.NoError(t, svc.End(context.Background(), "alice@example.com", "hangup"))

	var ended int
	for _, event := range events.sessionEvents {
		if event.Kind == SessionEventEnded {
			ended++
		}
	}
	require.Equal(t, 1, ended, "double teardown must publish a single ended event")
}

func TestSessionServiceTouchReportsReclaimedSession(t *testing.T) {
	svc := NewSessionService(&sessionRepoStub{}, &userRepoStub{}, nil, validator.New(), 0, testLogger())

	err := svc.Touch(context.Background(), "gone@example.com")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionServiceListActiveDeduplicatesPerPatient(t *testing.T) {
	repo := &sessionRepoStub{}
	now := time.Now()
	repo.sessions = []models.ActiveSession{
		{ID: 2, PatientEmail: "alice@example.com", Status: models.SessionStatusActive, LastActiveAt: now},
		{ID: 1, PatientEmail: "alice@example.com", Status: models.SessionStatusActive, LastActiveAt: now.Add(-time.Minute)},
		{ID: 3, PatientEmail: "bob@example.com", Status: models.SessionStatusActive, LastActiveAt: now},
	}

	svc := NewSessionService(repo, &userRepoStub{}, nil, validator.New(), 0, testLogger())

	sessions, err := svc.ListActive(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, uint(2), sessions[0].ID, "most recent entry per patient wins")
}
