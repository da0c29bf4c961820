package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mediline/telecare-api/internal/models"
	"github.com/mediline/telecare-api/internal/repository"
)

func TestSweeperReclaimsExpiredSessions(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ActiveSession{}, &models.ActiveCall{}, &models.CallLog{}))

	sessions := repository.NewSessionRepository(db)
	calls := repository.NewCallRepository(db)
	events := &eventRecorder{}
	callSvc := NewCallService(calls, events, validator.New(), 0, testLogger())

	stale := models.ActiveSession{
		PatientEmail: "gone@example.com",
		Status:       models.SessionStatusActive,
		LastActiveAt: time.Now().Add(-30 * time.Minute),
	}
	fresh := models.ActiveSession{
		PatientEmail: "here@example.com",
		Status:       models.SessionStatusActive,
		LastActiveAt: time.Now(),
	}
	require.NoError(t, sessions.Upsert(context.Background(), &stale))
	require.NoError(t, sessions.Upsert(context.Background(), &fresh))

	sweeper := NewSweeper(sessions, calls, callSvc, events, SweeperConfig{
		SessionWindow: 10 * time.Minute,
	}, testLogger())
	sweeper.SweepOnce(context.Background())

	remaining, err := sessions.ListActive(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "here@example.com", remaining[0].PatientEmail)

	require.Len(t, events.sessionEvents, 1)
	require.Equal(t, SessionEventExpired, events.sessionEvents[0].Kind)
	require.Equal(t, "gone@example.com", events.sessionEvents[0].Session.PatientEmail)
}

func TestSweeperStartReturnsImmediately(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ActiveSession{}, &models.ActiveCall{}, &models.CallLog{}))

	sessions := repository.NewSessionRepository(db)
	calls := repository.NewCallRepository(db)
	callSvc := NewCallService(calls, &eventRecorder{}, validator.New(), 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := NewSweeper(sessions, calls, callSvc, &eventRecorder{}, SweeperConfig{}, testLogger())

	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start must hand control back to the caller")
	}
}

// heartbeatingSessionRepo refreshes the patient's session right after the
// expiry listing, modelling a heartbeat that lands mid-sweep.
type heartbeatingSessionRepo struct {
	repository.SessionRepository
	patientEmail string
}

func (r *heartbeatingSessionRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]models.ActiveSession, error) {
	sessions, err := r.SessionRepository.ListExpired(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if err := r.SessionRepository.Touch(ctx, r.patientEmail, time.Now()); err != nil {
		return nil, err
	}
	return sessions, nil
}

func TestSweeperSparesSessionRefreshedMidSweep(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ActiveSession{}, &models.ActiveCall{}, &models.CallLog{}))

	sessions := repository.NewSessionRepository(db)
	calls := repository.NewCallRepository(db)
	events := &eventRecorder{}
	callSvc := NewCallService(calls, events, validator.New(), 0, testLogger())

	stale := models.ActiveSession{
		PatientEmail: "back@example.com",
		Status:       models.SessionStatusActive,
		LastActiveAt: time.Now().Add(-30 * time.Minute),
	}
	require.NoError(t, sessions.Upsert(context.Background(), &stale))

	racing := &heartbeatingSessionRepo{SessionRepository: sessions, patientEmail: "back@example.com"}
	sweeper := NewSweeper(racing, calls, callSvc, events, SweeperConfig{
		SessionWindow: 10 * time.Minute,
	}, testLogger())
	sweeper.SweepOnce(context.Background())

	remaining, err := sessions.ListActive(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1, "refreshed session must survive the sweep")
	require.Empty(t, events.sessionEvents, "no expired event for a session that came back")
}

func TestSweeperMarksAbandonedCallsMissed(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ActiveSession{}, &models.ActiveCall{}, &models.CallLog{}))

	sessions := repository.NewSessionRepository(db)
	calls := repository.NewCallRepository(db)
	events := &eventRecorder{}
	callSvc := NewCallService(calls, events, validator.New(), 0, testLogger())

	abandoned := models.ActiveCall{
		ChannelID:    "chan-abandoned",
		PatientEmail: "ring@example.com",
		CallType:     models.CallTypeVideo,
		Status:       models.CallStatusWaiting,
	}
	require.NoError(t, calls.Create(context.Background(), &abandoned))
	require.NoError(t, db.Model(&models.ActiveCall{}).Where("channel_id = ?", abandoned.ChannelID).
		Update("created_at", time.Now().Add(-10*time.Minute)).Error)

	sweeper := NewSweeper(sessions, calls, callSvc, events, SweeperConfig{
		CallRingWindow: 2 * time.Minute,
	}, testLogger())
	sweeper.SweepOnce(context.Background())

	logs, err := calls.ListLogs(context.Background(), "ring@example.com", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, models.CallStatusMissed, logs[0].Status)

	var terminated int
	for _, event := range events.callEvents {
		if event.Kind == CallEventTerminated {
			terminated++
			require.Equal(t, models.CallStatusMissed, event.Status)
		}
	}
	require.Equal(t, 1, terminated)
}
