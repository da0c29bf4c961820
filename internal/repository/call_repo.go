package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mediline/telecare-api/internal/models"
)

// CallRepository persists active call registry entries and the append-only
// call log.
type CallRepository interface {
	Create(ctx context.Context, call *models.ActiveCall) error
	FindByChannel(ctx context.Context, channelID string) (models.ActiveCall, error)
	ListWaiting(ctx context.Context) ([]models.ActiveCall, error)
	// UpdateStatus applies the transition atomically: the row is updated only
	// when it is still in the expected status, so two racing writers cannot
	// both claim the same transition. Returns the number of rows changed.
	UpdateStatus(ctx context.Context, channelID string, from, to models.CallStatus, connectedAt *time.Time) (int64, error)
	// DeleteByChannel removes the call row; absence is a no-op.
	DeleteByChannel(ctx context.Context, channelID string) (int64, error)
	ListWaitingBefore(ctx context.Context, cutoff time.Time) ([]models.ActiveCall, error)

	// AppendLog writes the terminal record for a call attempt at most once;
	// a second write for the same channel id is silently dropped.
	AppendLog(ctx context.Context, log *models.CallLog) (bool, error)
	ListLogs(ctx context.Context, patientEmail string, limit int) ([]models.CallLog, error)
}

type callRepository struct {
	db *gorm.DB
}

// NewCallRepository constructs a call repository backed by GORM.
func NewCallRepository(db *gorm.DB) CallRepository {
	return &callRepository{db: db}
}

func (r *callRepository) Create(ctx context.Context, call *models.ActiveCall) error {
	return r.db.WithContext(ctx).Create(call).Error
}

func (r *callRepository) FindByChannel(ctx context.Context, channelID string) (models.ActiveCall, error) {
	var call models.ActiveCall
	err := r.db.WithContext(ctx).Where("channel_id = ?", channelID).First(&call).Error
	if err != nil {
		return models.ActiveCall{}, err
	}
	return call, nil
}

func (r *callRepository) ListWaiting(ctx context.Context) ([]models.ActiveCall, error) {
	var calls []models.ActiveCall
	err := r.db.WithContext(ctx).
		Where("status = ?", models.CallStatusWaiting).
		Order("created_at DESC").
		Find(&calls).Error
	if err != nil {
		return nil, err
	}
	return calls, nil
}

func (r *callRepository) UpdateStatus(ctx context.Context, channelID string, from, to models.CallStatus, connectedAt *time.Time) (int64, error) {
	updates := map[string]interface{}{"status": to}
	if connectedAt != nil {
		updates["connected_at"] = connectedAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.ActiveCall{}).
		Where("channel_id = ? AND status = ?", channelID, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *callRepository) DeleteByChannel(ctx context.Context, channelID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Delete(&models.ActiveCall{})
	return result.RowsAffected, result.Error
}

func (r *callRepository) ListWaitingBefore(ctx context.Context, cutoff time.Time) ([]models.ActiveCall, error) {
	var calls []models.ActiveCall
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.CallStatusWaiting, cutoff).
		Find(&calls).Error
	if err != nil {
		return nil, err
	}
	return calls, nil
}

func (r *callRepository) AppendLog(ctx context.Context, log *models.CallLog) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}},
			DoNothing: true,
		}).
		Create(log)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *callRepository) ListLogs(ctx context.Context, patientEmail string, limit int) ([]models.CallLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Model(&models.CallLog{})
	if patientEmail != "" {
		query = query.Where("patient_email = ?", patientEmail)
	}

	var logs []models.CallLog
	if err := query.Order("ended_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
