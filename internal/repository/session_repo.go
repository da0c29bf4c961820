package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mediline/telecare-api/internal/models"
)

// SessionRepository persists active chat session registry entries.
type SessionRepository interface {
	// Upsert refreshes the active entry for the patient email, inserting
	// one when absent. The write lands as a single INSERT ... ON CONFLICT
	// against the patient_email unique index, so two concurrent starts for
	// the same patient converge on one row instead of racing past a lookup.
	Upsert(ctx context.Context, session *models.ActiveSession) error
	ListActive(ctx context.Context, limit int) ([]models.ActiveSession, error)
	FindActive(ctx context.Context, patientEmail string) (models.ActiveSession, error)
	// Touch refreshes the last-activity timestamp. Touching a reclaimed
	// session reports gorm.ErrRecordNotFound so the client learns its
	// session is gone instead of heartbeating a ghost.
	Touch(ctx context.Context, patientEmail string, at time.Time) error
	// DeleteActive removes all active entries for the patient email.
	// Deleting an absent entry is a no-op, not an error.
	DeleteActive(ctx context.Context, patientEmail string) (int64, error)
	ListExpired(ctx context.Context, cutoff time.Time) ([]models.ActiveSession, error)
	// DeleteExpired removes the session only while it is still idle past
	// the cutoff; a heartbeat that lands in between keeps the row alive
	// and the call reports zero rows.
	DeleteExpired(ctx context.Context, id uint, cutoff time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository constructs a session registry repository backed by GORM.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Upsert(ctx context.Context, session *models.ActiveSession) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "patient_email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"room_id", "patient_name", "age", "gender", "contact", "complaint",
			"urgency", "intake", "last_active_at", "expires_at", "updated_at",
		}),
	}).Create(session).Error
	if err != nil {
		return err
	}

	// The conflict path does not hand the surviving row back; reload so the
	// caller observes its id and original created_at.
	var saved models.ActiveSession
	err = r.db.WithContext(ctx).
		Where("patient_email = ? AND status = ?", session.PatientEmail, models.SessionStatusActive).
		First(&saved).Error
	if err != nil {
		return err
	}
	*session = saved
	return nil
}

func (r *sessionRepository) ListActive(ctx context.Context, limit int) ([]models.ActiveSession, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var sessions []models.ActiveSession
	err := r.db.WithContext(ctx).
		Where("status = ?", models.SessionStatusActive).
		Order("last_active_at DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *sessionRepository) FindActive(ctx context.Context, patientEmail string) (models.ActiveSession, error) {
	var session models.ActiveSession
	err := r.db.WithContext(ctx).
		Where("patient_email = ? AND status = ?", patientEmail, models.SessionStatusActive).
		Order("last_active_at DESC").
		First(&session).Error
	if err != nil {
		return models.ActiveSession{}, err
	}
	return session, nil
}

func (r *sessionRepository) Touch(ctx context.Context, patientEmail string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.ActiveSession{}).
		Where("patient_email = ? AND status = ?", patientEmail, models.SessionStatusActive).
		Update("last_active_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *sessionRepository) DeleteActive(ctx context.Context, patientEmail string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("patient_email = ? AND status = ?", patientEmail, models.SessionStatusActive).
		Delete(&models.ActiveSession{})
	return result.RowsAffected, result.Error
}

func (r *sessionRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]models.ActiveSession, error) {
	var sessions []models.ActiveSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND last_active_at < ?", models.SessionStatusActive, cutoff).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, id uint, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND last_active_at < ?", id, cutoff).
		Delete(&models.ActiveSession{})
	return result.RowsAffected, result.Error
}
