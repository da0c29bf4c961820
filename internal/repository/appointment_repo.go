package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mediline/telecare-api/internal/models"
)

// AppointmentRepository persists appointment records and the intake gate
// control row.
type AppointmentRepository interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	ListByPatient(ctx context.Context, patientEmail string, limit int) ([]models.Appointment, error)
	FindByID(ctx context.Context, id uint) (models.Appointment, error)
	UpdateStatus(ctx context.Context, id uint, status string) error

	Gate(ctx context.Context) (models.IntakeGate, error)
	SetGate(ctx context.Context, open bool, notice, updatedBy string) (models.IntakeGate, error)
}

type appointmentRepository struct {
	db *gorm.DB
}

// NewAppointmentRepository constructs an appointment repository backed by GORM.
func NewAppointmentRepository(db *gorm.DB) AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	return r.db.WithContext(ctx).Create(appointment).Error
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientEmail string, limit int) ([]models.Appointment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var appointments []models.Appointment
	err := r.db.WithContext(ctx).
		Where("patient_email = ?", patientEmail).
		Order("scheduled_at DESC").
		Limit(limit).
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) FindByID(ctx context.Context, id uint) (models.Appointment, error) {
	var appointment models.Appointment
	if err := r.db.WithContext(ctx).First(&appointment, id).Error; err != nil {
		return models.Appointment{}, err
	}
	return appointment, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// Gate returns the intake control row, defaulting to open when no row has
// been written yet.
func (r *appointmentRepository) Gate(ctx context.Context) (models.IntakeGate, error) {
	var gate models.IntakeGate
	err := r.db.WithContext(ctx).First(&gate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.IntakeGate{Open: true}, nil
		}
		return models.IntakeGate{}, err
	}
	return gate, nil
}

func (r *appointmentRepository) SetGate(ctx context.Context, open bool, notice, updatedBy string) (models.IntakeGate, error) {
	var gate models.IntakeGate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&gate).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			gate = models.IntakeGate{Open: open, Notice: notice, UpdatedBy: updatedBy}
			return tx.Create(&gate).Error
		}

		gate.Open = open
		gate.Notice = notice
		gate.UpdatedBy = updatedBy
		return tx.Save(&gate).Error
	})
	if err != nil {
		return models.IntakeGate{}, err
	}
	return gate, nil
}
