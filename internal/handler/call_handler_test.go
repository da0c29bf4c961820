package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/internal/handler"
	"github.com/mediline/telecare-api/internal/models"
	"github.com/mediline/telecare-api/internal/service"
)

type mockCallService struct {
	calls       map[string]dto.CallResponse
	terminated  map[string]models.CallStatus
	joinErr     error
	createErr   error
	logsByEmail map[string][]dto.CallLogResponse
}

func newMockCallService() *mockCallService {
	return &mockCallService{
		calls:       make(map[string]dto.CallResponse),
		terminated:  make(map[string]models.CallStatus),
		logsByEmail: make(map[string][]dto.CallLogResponse),
	}
}

func (m *mockCallService) Create(_ context.Context, req dto.CallCreateRequest) (dto.CallResponse, error) {
	if m.createErr != nil {
		return dto.CallResponse{}, m.createErr
	}
	call := dto.CallResponse{ID: 1, ChannelID: "chan-1", PatientEmail: req.PatientEmail, CallType: req.CallType, Status: models.CallStatusWaiting}
	m.calls[call.ChannelID] = call
	return call, nil
}

func (m *mockCallService) Get(_ context.Context, channelID string) (dto.CallResponse, error) {
	call, ok := m.calls[channelID]
	if !ok {
		return dto.CallResponse{}, service.ErrCallNotFound
	}
	return call, nil
}

func (m *mockCallService) ListWaiting(_ context.Context) ([]dto.CallResponse, error) {
	out := make([]dto.CallResponse, 0, len(m.calls))
	for _, call := range m.calls {
		if call.Status == models.CallStatusWaiting {
			out = append(out, call)
		}
	}
	return out, nil
}

func (m *mockCallService) Join(_ context.Context, channelID string) (dto.CallResponse, error) {
	if m.joinErr != nil {
		return dto.CallResponse{}, m.joinErr
	}
	call, ok := m.calls[channelID]
	if !ok {
		return dto.CallResponse{}, service.ErrCallNotFound
	}
	call.Status = models.CallStatusConnected
	m.calls[channelID] = call
	return call, nil
}

func (m *mockCallService) Terminate(_ context.Context, channelID string, status models.CallStatus) error {
	m.terminated[channelID] = status
	return nil
}

func (m *mockCallService) Logs(_ context.Context, patientEmail string, _ int) ([]dto.CallLogResponse, error) {
	return m.logsByEmail[patientEmail], nil
}

func setupCallApp(svc *mockCallService, user fiber.Handler) *fiber.App {
	app := fiber.New()
	h := handler.NewCallHandler(svc, &mockRegistryEvents{}, zerolog.Nop())
	h.Register(app.Group("/api/v1/calls", user), allowAll)
	return app
}

func TestCallHandlerCreateAndJoin(t *testing.T) {
	svc := newMockCallService()
	app := setupCallApp(svc, asUser("alice@example.com", "patient"))

	payload, err := json.Marshal(dto.CallCreateRequest{
		PatientEmail: "alice@example.com",
		PatientName:  "Alice",
		CallType:     "video",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/calls", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Success bool             `json:"success"`
		Data    dto.CallResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)
	require.True(t, created.Success)
	require.Equal(t, models.CallStatusWaiting, created.Data.Status)

	joinReq := httptest.NewRequest(http.MethodPost, "/api/v1/calls/chan-1/join", nil)
	joinResp, err := app.Test(joinReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, joinResp.StatusCode)

	var joined struct {
		Data dto.CallResponse `json:"data"`
	}
	decodeResponse(t, joinResp, &joined)
	require.Equal(t, models.CallStatusConnected, joined.Data.Status)
}

func TestCallHandlerJoinConflict(t *testing.T) {
	svc := newMockCallService()
	svc.joinErr = service.ErrInvalidTransition
	app := setupCallApp(svc, asUser("doctor@example.com", "doctor"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/calls/chan-1/join", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestCallHandlerGetNotFound(t *testing.T) {
	app := setupCallApp(newMockCallService(), asUser("doctor@example.com", "doctor"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calls/missing", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCallHandlerTerminateDefaultsToEnded(t *testing.T) {
	svc := newMockCallService()
	app := setupCallApp(svc, asUser("alice@example.com", "patient"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/calls/chan-9/terminate", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, models.CallStatusEnded, svc.terminated["chan-9"])
}

func TestCallHandlerLogsUsesTokenIdentity(t *testing.T) {
	svc := newMockCallService()
	svc.logsByEmail["alice@example.com"] = []dto.CallLogResponse{{ChannelID: "chan-1", Status: models.CallStatusEnded}}
	app := setupCallApp(svc, asUser("alice@example.com", "patient"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calls/logs", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []dto.CallLogResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
}
