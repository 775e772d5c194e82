package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/campushub-api/internal/models"
	appErrors "github.com/campushub/campushub-api/pkg/errors"
)

type messageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	List(ctx context.Context, filter models.MessageFilter) ([]models.Message, int, error)
	FindByID(ctx context.Context, id string) (*models.Message, error)
	MarkRead(ctx context.Context, id string, ts time.Time) error
	Delete(ctx context.Context, id string) error
}

type messageUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// MessageService handles direct messaging between users. Every operation is
// scoped to the acting user; a message is only visible to its sender and
// recipient.
type MessageService struct {
	repo      messageRepository
	users     messageUserLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMessageService constructs a MessageService instance.
func NewMessageService(repo messageRepository, users messageUserLookup, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MessageService{repo: repo, users: users, validator: validate, logger: logger}
}

// Send delivers a message from the acting user to the recipient. The
// recipient must exist and be active.
func (s *MessageService) Send(ctx context.Context, senderID string, req models.SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	if req.RecipientID == senderID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot message yourself")
	}

	recipient, err := s.users.FindByID(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	if !recipient.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
	}

	message := &models.Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Subject:     req.Subject,
		Body:        req.Body,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store message")
	}
	return message, nil
}

// List returns the acting user's inbox or outbox.
func (s *MessageService) List(ctx context.Context, filter models.MessageFilter) ([]models.Message, *models.Pagination, error) {
	if filter.Box != models.MessageOutbox {
		filter.Box = models.MessageInbox
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	messages, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	return messages, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single message the acting user participates in. A message
// the user has no part in reads as not found rather than forbidden.
func (s *MessageService) Get(ctx context.Context, id, actorID string) (*models.Message, error) {
	message, err := s.loadForActor(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	// Opening an unread inbox message marks it read.
	if message.RecipientID == actorID && message.ReadAt == nil {
		now := time.Now().UTC()
		if err := s.repo.MarkRead(ctx, id, now); err != nil {
			s.logger.Warn("failed to mark message read", zap.String("message_id", id), zap.Error(err))
		} else {
			message.ReadAt = &now
		}
	}

	return message, nil
}

// MarkRead explicitly marks an inbox message as read.
func (s *MessageService) MarkRead(ctx context.Context, id, actorID string) error {
	message, err := s.loadForActor(ctx, id, actorID)
	if err != nil {
		return err
	}
	if message.RecipientID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the recipient can mark a message read")
	}
	if message.ReadAt != nil {
		return nil
	}

	if err := s.repo.MarkRead(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark message read")
	}
	return nil
}

// Delete removes a message for good. Either participant may delete it.
func (s *MessageService) Delete(ctx context.Context, id, actorID string) error {
	if _, err := s.loadForActor(ctx, id, actorID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete message")
	}
	return nil
}

func (s *MessageService) loadForActor(ctx context.Context, id, actorID string) (*models.Message, error) {
	message, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load message")
	}
	if message.SenderID != actorID && message.RecipientID != actorID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "message not found")
	}
	return message, nil
}
