package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushub/campushub-api/internal/models"
	appErrors "github.com/campushub/campushub-api/pkg/errors"
)

type mockMessageRepo struct {
	messages map[string]*models.Message
	deleted  []string
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{messages: map[string]*models.Message{}}
}

func (m *mockMessageRepo) Create(_ context.Context, message *models.Message) error {
	m.messages[message.ID] = message
	return nil
}

func (m *mockMessageRepo) List(_ context.Context, filter models.MessageFilter) ([]models.Message, int, error) {
	var out []models.Message
	for _, msg := range m.messages {
		if filter.Box == models.MessageOutbox && msg.SenderID != filter.UserID {
			continue
		}
		if filter.Box == models.MessageInbox && msg.RecipientID != filter.UserID {
			continue
		}
		out = append(out, *msg)
	}
	return out, len(out), nil
}

func (m *mockMessageRepo) FindByID(_ context.Context, id string) (*models.Message, error) {
	msg, ok := m.messages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *msg
	return &copied, nil
}

func (m *mockMessageRepo) MarkRead(_ context.Context, id string, ts time.Time) error {
	msg, ok := m.messages[id]
	if !ok {
		return sql.ErrNoRows
	}
	msg.ReadAt = &ts
	return nil
}

func (m *mockMessageRepo) Delete(_ context.Context, id string) error {
	delete(m.messages, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockMessageUsers struct {
	users map[string]*models.User
}

func (m *mockMessageUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func newTestMessageService(t *testing.T) (*MessageService, *mockMessageRepo, *mockMessageUsers) {
	t.Helper()
	repo := newMockMessageRepo()
	users := &mockMessageUsers{users: map[string]*models.User{
		"alice": {ID: "alice", Email: "alice@example.com", Active: true},
		"bob":   {ID: "bob", Email: "bob@example.com", Active: true},
		"carol": {ID: "carol", Email: "carol@example.com", Active: false},
	}}
	return NewMessageService(repo, users, nil, zap.NewNop()), repo, users
}

func sendTestMessage(t *testing.T, svc *MessageService, from, to string) *models.Message {
	t.Helper()
	msg, err := svc.Send(context.Background(), from, models.SendMessageRequest{
		RecipientID: to,
		Subject:     "Field trip",
		Body:        "Permission slip due Friday.",
	})
	require.NoError(t, err)
	return msg
}

func TestMessageSendToInactiveRecipientReadsAsNotFound(t *testing.T) {
	svc, _, _ := newTestMessageService(t)

	for _, recipient := range []string{"carol", "nobody"} {
		_, err := svc.Send(context.Background(), "alice", models.SendMessageRequest{
			RecipientID: recipient,
			Subject:     "Hello",
			Body:        "Hi",
		})
		require.Error(t, err)
		appErr, ok := err.(*appErrors.Error)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	}
}

func TestMessageSendToSelfRejected(t *testing.T) {
	svc, _, _ := newTestMessageService(t)

	_, err := svc.Send(context.Background(), "alice", models.SendMessageRequest{
		RecipientID: "alice",
		Subject:     "Note to self",
		Body:        "Remember",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestMessageGetHidesMessagesFromNonParticipants(t *testing.T) {
	svc, _, _ := newTestMessageService(t)
	msg := sendTestMessage(t, svc, "alice", "bob")

	_, err := svc.Get(context.Background(), msg.ID, "carol")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code, "non-participants must not learn the message exists")

	got, err := svc.Get(context.Background(), msg.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
}

func TestMessageGetByRecipientMarksRead(t *testing.T) {
	svc, repo, _ := newTestMessageService(t)
	msg := sendTestMessage(t, svc, "alice", "bob")
	require.Nil(t, repo.messages[msg.ID].ReadAt)

	got, err := svc.Get(context.Background(), msg.ID, "bob")
	require.NoError(t, err)
	assert.NotNil(t, got.ReadAt)
	assert.NotNil(t, repo.messages[msg.ID].ReadAt)

	// The sender opening their own sent message leaves read state alone.
	other := sendTestMessage(t, svc, "alice", "bob")
	_, err = svc.Get(context.Background(), other.ID, "alice")
	require.NoError(t, err)
	assert.Nil(t, repo.messages[other.ID].ReadAt)
}

func TestMessageMarkReadIsRecipientOnly(t *testing.T) {
	svc, _, _ := newTestMessageService(t)
	msg := sendTestMessage(t, svc, "alice", "bob")

	err := svc.MarkRead(context.Background(), msg.ID, "alice")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	require.NoError(t, svc.MarkRead(context.Background(), msg.ID, "bob"))
	require.NoError(t, svc.MarkRead(context.Background(), msg.ID, "bob"), "marking twice is idempotent")
}

func TestMessageDeleteByEitherParticipant(t *testing.T) {
	svc, repo, _ := newTestMessageService(t)
	first := sendTestMessage(t, svc, "alice", "bob")
	second := sendTestMessage(t, svc, "alice", "bob")

	require.NoError(t, svc.Delete(context.Background(), first.ID, "alice"))
	require.NoError(t, svc.Delete(context.Background(), second.ID, "bob"))
	assert.Empty(t, repo.messages)

	err := svc.Delete(context.Background(), uuid.NewString(), "alice")
	require.Error(t, err)
}

func TestMessageListSplitsInboxAndOutbox(t *testing.T) {
	svc, _, _ := newTestMessageService(t)
	sendTestMessage(t, svc, "alice", "bob")
	sendTestMessage(t, svc, "bob", "alice")

	inbox, page, err := svc.List(context.Background(), models.MessageFilter{UserID: "alice", Box: models.MessageInbox})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "bob", inbox[0].SenderID)
	assert.Equal(t, 1, page.TotalCount)

	outbox, _, err := svc.List(context.Background(), models.MessageFilter{UserID: "alice", Box: models.MessageOutbox})
	require.NoError(t, err)
	require.Len(t, outbox, 1)
	assert.Equal(t, "bob", outbox[0].RecipientID)
}
