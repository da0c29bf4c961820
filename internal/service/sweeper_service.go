package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/internal/models"
	"github.com/mediline/telecare-api/internal/observability"
	"github.com/mediline/telecare-api/internal/repository"
)

// Sweeper is the authoritative cleanup job. Browser-side teardown is
// advisory only: a closed tab may never finish its delete request. The
// sweeper bounds the damage by reclaiming registry entries whose patient has
// gone quiet and by marking waiting calls nobody answered as missed.
type Sweeper struct {
	sessions       repository.SessionRepository
	calls          repository.CallRepository
	callSvc        CallService
	events         RegistryEvents
	interval       time.Duration
	sessionWindow  time.Duration
	callRingWindow time.Duration
	logger         zerolog.Logger
}

// SweeperConfig bundles the tunables for the cleanup job.
type SweeperConfig struct {
	Interval       time.Duration
	SessionWindow  time.Duration
	CallRingWindow time.Duration
}

// NewSweeper constructs the cleanup job.
func NewSweeper(sessions repository.SessionRepository, calls repository.CallRepository, callSvc CallService, events RegistryEvents, cfg SweeperConfig, logger zerolog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.SessionWindow <= 0 {
		cfg.SessionWindow = 10 * time.Minute
	}
	if cfg.CallRingWindow <= 0 {
		cfg.CallRingWindow = 2 * time.Minute
	}

	return &Sweeper{
		sessions:       sessions,
		calls:          calls,
		callSvc:        callSvc,
		events:         events,
		interval:       cfg.Interval,
		sessionWindow:  cfg.SessionWindow,
		callRingWindow: cfg.CallRingWindow,
		logger:         logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start launches the sweep loop in its own goroutine and returns; the loop
// runs until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// SweepOnce runs a single pass over both registries.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	s.sweepSessions(ctx)
	s.sweepCalls(ctx)
}

func (s *Sweeper) sweepSessions(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.sessionWindow)
	stale, err := s.sessions.ListExpired(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list expired sessions")
		return
	}

	for _, session := range stale {
		deleted, err := s.sessions.DeleteExpired(ctx, session.ID, cutoff)
		if err != nil {
			s.logger.Warn().Err(err).Str("patient", session.PatientEmail).Msg("failed to reclaim expired session")
			continue
		}
		if deleted == 0 {
			// A heartbeat landed after the listing; the session is live again.
			continue
		}

		if s.events != nil {
			s.events.PublishSession(ctx, dto.SessionEvent{
				Kind:    SessionEventExpired,
				Session: dto.NewSessionResponse(session),
				SentAt:  time.Now().UTC(),
			})
		}
		observability.SessionsEnded().WithLabelValues("timeout").Inc()

		s.logger.Info().Str("patient", session.PatientEmail).Time("last_active_at", session.LastActiveAt).Msg("expired session reclaimed")
	}
}

func (s *Sweeper) sweepCalls(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.callRingWindow)
	abandoned, err := s.calls.ListWaitingBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list abandoned calls")
		return
	}

	for _, call := range abandoned {
		if err := s.callSvc.Terminate(ctx, call.ChannelID, models.CallStatusMissed); err != nil {
			s.logger.Warn().Err(err).Str("channel_id", call.ChannelID).Msg("failed to mark call missed")
			continue
		}
		s.logger.Info().Str("channel_id", call.ChannelID).Str("patient", call.PatientEmail).Msg("unanswered call marked missed")
	}
}
