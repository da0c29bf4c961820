package performance_test

import (
	"context"
	"errors"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/internal/handler"
	"github.com/mediline/telecare-api/internal/middleware"
	"github.com/mediline/telecare-api/internal/service"
)

func TestChatWebsocketP95Under250ms(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())

	chatService := &stubChatService{}
	chatHandler := handler.NewChatHandler(chatService, validator.New(), zerolog.Nop())

	chatGroup := app.Group("/api/v1/chat", func(c *fiber.Ctx) error {
		c.Locals("user_id", "alice@example.com")
		c.Locals("user_role", "patient")
		return c.Next()
	})
	chatHandler.Register(chatGroup)

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/chat/ws?room_id=alice@example.com_doctor@example.com"
	clients := 500
	durations := make([]time.Duration, 0, clients)

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	for i := 0; i < clients; i++ {
		start := time.Now()
		conn, resp, err := dialer.Dial(url, http.Header{"X-Correlation-ID": {"perf-" + strconv.Itoa(i)}})
		if err != nil {
			t.Fatalf("websocket dial failed: %v", err)
		}
		if resp != nil {
			_ = resp.Body.Close()
		}

		_, _, _ = conn.ReadMessage()
		_ = conn.Close()

		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	p95 := percentile(durations, 0.95)

	if p95 > 250*time.Millisecond {
		t.Fatalf("expected websocket P95 <= 250ms, got %s", p95)
	}
}

func TestRegistryWatchFirstSnapshotP95Under300ms(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())

	events := service.NewRegistryEvents(nil, "", nil, zerolog.Nop())
	sessionHandler := handler.NewSessionHandler(&stubSessionService{}, events, zerolog.Nop())

	sessionGroup := app.Group("/api/v1/sessions", func(c *fiber.Ctx) error {
		c.Locals("user_id", "doctor@example.com")
		c.Locals("user_role", "doctor")
		return c.Next()
	})
	sessionHandler.Register(sessionGroup, func(c *fiber.Ctx) error { return c.Next() })

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/sessions/watch"
	clients := 200
	durations := make([]time.Duration, 0, clients)

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	for i := 0; i < clients; i++ {
		start := time.Now()
		conn, resp, err := dialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("watch dial failed: %v", err)
		}
		if resp != nil {
			_ = resp.Body.Close()
		}

		// First frame is the registry snapshot.
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("failed to read snapshot: %v", err)
		}
		_ = conn.Close()

		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	p95 := percentile(durations, 0.95)

	if p95 > 300*time.Millisecond {
		t.Fatalf("expected watch snapshot P95 <= 300ms, got %s", p95)
	}
}

func percentile(values []time.Duration, pct float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	index := int(math.Ceil(pct*float64(len(values)))) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(values) {
		index = len(values) - 1
	}
	return values[index]
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}

type stubChatService struct{}

func (s *stubChatService) ServeConnection(conn *fiberws.Conn, _ service.ChatConnectionOptions) {
	_ = conn.WriteMessage(fiberws.TextMessage, []byte(`{"type":"welcome"}`))
	_ = conn.Close()
}

func (s *stubChatService) History(context.Context, dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error) {
	return []dto.ChatMessageResponse{}, nil
}

func (s *stubChatService) UploadAttachment(context.Context, string, *multipart.FileHeader) (dto.AttachmentResponse, error) {
	return dto.AttachmentResponse{}, nil
}

func (s *stubChatService) Start(context.Context) {}

type stubSessionService struct{}

func (s *stubSessionService) Start(_ context.Context, req dto.SessionStartRequest) (dto.SessionResponse, error) {
	return dto.SessionResponse{ID: 1, PatientEmail: req.PatientEmail}, nil
}

func (s *stubSessionService) ListActive(context.Context, int) ([]dto.SessionResponse, error) {
	return []dto.SessionResponse{{ID: 1, PatientEmail: "alice@example.com", RoomID: "alice@example.com_doctor@example.com"}}, nil
}

func (s *stubSessionService) Touch(context.Context, string) error { return nil }

func (s *stubSessionService) End(context.Context, string, string) error { return nil }
