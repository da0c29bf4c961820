package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/mediline/telecare-api/internal/dto"
	"github.com/mediline/telecare-api/internal/models"
)

type chatRepoStub struct {
	appended []models.ChatMessage
	history  []models.ChatMessage
}

func (s *chatRepoStub) Append(_ context.Context, message *models.ChatMessage) error {
	message.ID = uint(len(s.appended) + 1)
	message.CreatedAt = time.Now().UTC()
	s.appended = append(s.appended, *message)
	return nil
}

func (s *chatRepoStub) ListByRoom(_ context.Context, roomID string, _ time.Time, _ int) ([]models.ChatMessage, error) {
	out := make([]models.ChatMessage, 0, len(s.history))
	for _, msg := range s.history {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *chatRepoStub) LatestByRoom(_ context.Context, roomID string) (models.ChatMessage, error) {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].RoomID == roomID {
			return s.history[i], nil
		}
	}
	return models.ChatMessage{}, nil
}

type storageStub struct {
	folder string
	name   string
	size   int
}

func (s *storageStub) Upload(_ context.Context, folder, name string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.folder = folder
	s.name = name
	s.size = len(data)
	return "https://cdn.example.com/" + folder + "/" + name, nil
}

func newChatServiceForTest(t *testing.T, repo *chatRepoStub, storage FileStorage) *chatService {
	t.Helper()
	svc := NewChatService(repo, storage, nil, "", nil, validator.New(), testLogger())
	return svc.(*chatService)
}

func multipartHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&buf, writer.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func TestChatAuthorisePatientOwnRoomOnly(t *testing.T) {
	svc := newChatServiceForTest(t, &chatRepoStub{}, nil)

	patient := &chatClient{options: ChatConnectionOptions{
		UserID: "Alice@example.com",
		Role:   models.RolePatient,
	}}
	require.NoError(t, svc.authorise(patient, "alice@example.com_doctor@example.com"))
	require.ErrorIs(t, svc.authorise(patient, "bob@example.com_doctor@example.com"), ErrChatNotAuthorised)
}

func TestChatAuthoriseStaffReachAnyRoom(t *testing.T) {
	svc := newChatServiceForTest(t, &chatRepoStub{}, nil)

	for _, role := range []string{models.RoleDoctor, models.RoleReception} {
		staff := &chatClient{options: ChatConnectionOptions{UserID: "staff@example.com", Role: role}}
		require.NoError(t, svc.authorise(staff, "alice@example.com_doctor@example.com"))
	}
}

func TestChatHistoryReturnsRoomMessages(t *testing.T) {
	repo := &chatRepoStub{history: []models.ChatMessage{
		{RoomID: "room-a", SenderID: "alice@example.com", Content: "hello", Type: "text"},
		{RoomID: "room-b", SenderID: "bob@example.com", Content: "elsewhere", Type: "text"},
	}}
	svc := newChatServiceForTest(t, repo, nil)

	messages, err := svc.History(context.Background(), dto.ChatHistoryQuery{RoomID: "room-a", Limit: 50})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "hello", messages[0].Content)
}

func TestChatHistoryRejectsMissingRoom(t *testing.T) {
	svc := newChatServiceForTest(t, &chatRepoStub{}, nil)

	_, err := svc.History(context.Background(), dto.ChatHistoryQuery{})
	require.Error(t, err)
}

func TestUploadAttachmentNamespacesByRoom(t *testing.T) {
	storage := &storageStub{}
	svc := newChatServiceForTest(t, &chatRepoStub{}, storage)

	// PNG magic bytes so detection lands on an image type.
	content := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0}, 64)...)
	header := multipartHeader(t, "scan.png", content)

	resp, err := svc.UploadAttachment(context.Background(), "alice@example.com_doctor@example.com", header)
	require.NoError(t, err)
	require.Equal(t, "image", resp.Kind)
	require.Equal(t, "scan.png", resp.FileName)
	require.Equal(t, "alice@example.com_doctor@example.com", storage.folder)
	require.Contains(t, storage.name, "scan.png")
	require.Equal(t, len(content), storage.size)
	require.Contains(t, resp.URL, "cdn.example.com")
}

func TestUploadAttachmentRejectsOversizedFile(t *testing.T) {
	svc := newChatServiceForTest(t, &chatRepoStub{}, &storageStub{})

	header := multipartHeader(t, "big.bin", []byte("payload"))
	header.Size = maxAttachmentSizeByte + 1

	_, err := svc.UploadAttachment(context.Background(), "room", header)
	require.ErrorIs(t, err, ErrAttachmentTooLarge)
}

func TestAttachmentKindMapping(t *testing.T) {
	require.Equal(t, "image", attachmentKind("image/png"))
	require.Equal(t, "audio", attachmentKind("audio/mpeg"))
	require.Equal(t, "video", attachmentKind("video/mp4"))
	require.Equal(t, "file", attachmentKind("application/pdf"))
}

func TestProcessSendSanitizesAndPersists(t *testing.T) {
	repo := &chatRepoStub{}
	svc := newChatServiceForTest(t, repo, nil)

	client := &chatClient{options: ChatConnectionOptions{
		UserID: "alice@example.com",
		Role:   models.RolePatient,
		RoomID: "alice@example.com_doctor@example.com",
	}}

	resp, err := svc.processSend(context.Background(), client, "", dto.ChatSendRequest{
		Content: "hello <script>alert(1)</script>doctor",
	})
	require.NoError(t, err)
	require.NotContains(t, resp.Content, "script")
	require.Equal(t, "text", resp.Type)
	require.Equal(t, "alice@example.com", resp.SenderID)
	require.Len(t, repo.appended, 1)
}

func TestProcessSendRejectsForeignRoom(t *testing.T) {
	svc := newChatServiceForTest(t, &chatRepoStub{}, nil)

	client := &chatClient{options: ChatConnectionOptions{
		UserID: "alice@example.com",
		Role:   models.RolePatient,
		RoomID: "alice@example.com_doctor@example.com",
	}}

	_, err := svc.processSend(context.Background(), client, "", dto.ChatSendRequest{
		RoomID:  "bob@example.com_doctor@example.com",
		Content: "sneaky",
	})
	require.ErrorIs(t, err, ErrChatNotAuthorised)
}
