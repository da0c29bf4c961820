package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/internal/models"
	"github.com/mediline/telecare-api/internal/repository"
)

// ErrIntakeClosed indicates reception has switched off new appointment intake.
var ErrIntakeClosed = errors.New("appointment intake is currently closed")

// bookingSchema guards the booking payload shape before struct validation
// runs; it is the authoritative wire contract for the booking form.
const bookingSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["patient_email", "patient_name", "scheduled_at"],
  "properties": {
    "patient_email": {"type": "string", "format": "email", "maxLength": 128},
    "patient_name": {"type": "string", "minLength": 2, "maxLength": 128},
    "contact": {"type": "string", "maxLength": 64},
    "treatment": {"type": "string", "maxLength": 128},
    "complaint": {"type": "string", "maxLength": 4000},
    "scheduled_at": {"type": "string"}
  },
  "additionalProperties": false
}`

// AppointmentService owns the booking surface and the reception-controlled
// intake gate the booking flow consults first.
type AppointmentService interface {
	Book(ctx context.Context, raw []byte) (dto.AppointmentResponse, error)
	ListByPatient(ctx context.Context, patientEmail string, limit int) ([]dto.AppointmentResponse, error)
	Cancel(ctx context.Context, id uint, patientEmail string) error
	Gate(ctx context.Context) (dto.IntakeGateResponse, error)
	SetGate(ctx context.Context, req dto.IntakeGateUpdateRequest, updatedBy string) (dto.IntakeGateResponse, error)
}

type appointmentService struct {
	repo      repository.AppointmentRepository
	validator *validator.Validate
	schema    *jsonschema.Schema
	logger    zerolog.Logger
}

// NewAppointmentService constructs the appointment service.
func NewAppointmentService(repo repository.AppointmentRepository, validate *validator.Validate, logger zerolog.Logger) (AppointmentService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("booking.json", strings.NewReader(bookingSchema)); err != nil {
		return nil, fmt.Errorf("failed to register booking schema: %w", err)
	}
	schema, err := compiler.Compile("booking.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile booking schema: %w", err)
	}

	return &appointmentService{
		repo:      repo,
		validator: validate,
		schema:    schema,
		logger:    logger.With().Str("component", "appointment_service").Logger(),
	}, nil
}

func (s *appointmentService) Book(ctx context.Context, raw []byte) (dto.AppointmentResponse, error) {
	gate, err := s.repo.Gate(ctx)
	if err != nil {
		return dto.AppointmentResponse{}, err
	}
	if !gate.Open {
		return dto.AppointmentResponse{}, ErrIntakeClosed
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return dto.AppointmentResponse{}, fmt.Errorf("invalid booking payload: %w", err)
	}
	if err := s.schema.Validate(generic); err != nil {
		return dto.AppointmentResponse{}, fmt.Errorf("booking payload rejected: %w", err)
	}

	var req dto.AppointmentBookRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return dto.AppointmentResponse{}, fmt.Errorf("invalid booking payload: %w", err)
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.AppointmentResponse{}, err
	}
	if req.ScheduledAt.Before(time.Now()) {
		return dto.AppointmentResponse{}, errors.New("scheduled_at must be in the future")
	}

	appointment := models.Appointment{
		PatientEmail: strings.ToLower(strings.TrimSpace(req.PatientEmail)),
		PatientName:  strings.TrimSpace(req.PatientName),
		Contact:      strings.TrimSpace(req.Contact),
		Treatment:    strings.TrimSpace(req.Treatment),
		Complaint:    strings.TrimSpace(req.Complaint),
		ScheduledAt:  req.ScheduledAt,
		Status:       models.AppointmentStatusBooked,
	}

	if err := s.repo.Create(ctx, &appointment); err != nil {
		return dto.AppointmentResponse{}, err
	}

	s.logger.Info().Str("patient", appointment.PatientEmail).Time("scheduled_at", appointment.ScheduledAt).Msg("appointment booked")

	return dto.NewAppointmentResponse(appointment), nil
}

func (s *appointmentService) ListByPatient(ctx context.Context, patientEmail string, limit int) ([]dto.AppointmentResponse, error) {
	appointments, err := s.repo.ListByPatient(ctx, strings.ToLower(strings.TrimSpace(patientEmail)), limit)
	if err != nil {
		return nil, err
	}
	return dto.NewAppointmentResponseSlice(appointments), nil
}

func (s *appointmentService) Cancel(ctx context.Context, id uint, patientEmail string) error {
	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if patientEmail != "" && !strings.EqualFold(appointment.PatientEmail, patientEmail) {
		return errors.New("appointment belongs to another patient")
	}
	if appointment.Status == models.AppointmentStatusCancelled {
		return nil
	}
	return s.repo.UpdateStatus(ctx, id, models.AppointmentStatusCancelled)
}

func (s *appointmentService) Gate(ctx context.Context) (dto.IntakeGateResponse, error) {
	gate, err := s.repo.Gate(ctx)
	if err != nil {
		return dto.IntakeGateResponse{}, err
	}
	return dto.IntakeGateResponse{Open: gate.Open, Notice: gate.Notice, UpdatedBy: gate.UpdatedBy, UpdatedAt: gate.UpdatedAt}, nil
}

func (s *appointmentService) SetGate(ctx context.Context, req dto.IntakeGateUpdateRequest, updatedBy string) (dto.IntakeGateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.IntakeGateResponse{}, err
	}

	gate, err := s.repo.SetGate(ctx, req.Open, strings.TrimSpace(req.Notice), updatedBy)
	if err != nil {
		return dto.IntakeGateResponse{}, err
	}

	s.logger.Info().Bool("open", gate.Open).Str("updated_by", updatedBy).Msg("intake gate updated")

	return dto.IntakeGateResponse{Open: gate.Open, Notice: gate.Notice, UpdatedBy: gate.UpdatedBy, UpdatedAt: gate.UpdatedAt}, nil
}
