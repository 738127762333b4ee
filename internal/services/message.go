package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/english-site/english-site/internal/config"
	"github.com/english-site/english-site/internal/models"
	"github.com/english-site/english-site/internal/repository"
	"github.com/english-site/english-site/pkg/logger"
	"github.com/english-site/english-site/pkg/queue"
	"github.com/google/uuid"
)

type MessageService struct {
	messageStore MessageStore
	likeStore    LikeStore
	producer     Publisher
	config       *config.MessageConfig
	logger       *logger.Logger
}

func NewMessageService(
	messageStore MessageStore,
	likeStore LikeStore,
	producer Publisher,
	config *config.MessageConfig,
	logger *logger.Logger,
) *MessageService {
	return &MessageService{
		messageStore: messageStore,
		likeStore:    likeStore,
		producer:     producer,
		config:       config,
		logger:       logger,
	}
}

type CreateMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *MessageService) Post(ctx context.Context, authorID uuid.UUID, text string) (*models.Message, error) {
	if text == "" || len([]rune(text)) > s.config.MaxLength {
		return nil, ErrValidation
	}

	message := &models.Message{
		UserID:    authorID,
		Text:      text,
		CreatedAt: time.Now(),
	}

	if err := s.messageStore.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	event := queue.Event{
		Type:      queue.EventMessageCreated,
		Timestamp: message.CreatedAt,
		Data: queue.MessageEventData{
			MessageID: message.ID.String(),
			UserID:    authorID.String(),
			Text:      message.Text,
			CreatedAt: message.CreatedAt.Format("2006-01-02T15:04:05Z"),
		},
	}
	if err := s.producer.Publish(ctx, authorID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish message created event")
	}

	s.logger.WithFields(map[string]interface{}{
		"message_id": message.ID,
		"user_id":    authorID,
	}).Info("Message created")

	return message, nil
}

func (s *MessageService) GetByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	message, err := s.messageStore.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if message == nil {
		return nil, ErrNotFound
	}
	return message, nil
}

func (s *MessageService) GetUserMessages(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.Message, error) {
	messages, err := s.messageStore.GetByUserID(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get user messages: %w", err)
	}
	return messages, nil
}

// Delete 只有作者本人能删自己的消息
func (s *MessageService) Delete(ctx context.Context, actorID, messageID uuid.UUID) error {
	message, err := s.messageStore.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}
	if message == nil {
		return ErrNotFound
	}

	if message.UserID != actorID {
		return ErrUnauthorized
	}

	if err := s.messageStore.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	if err := s.likeStore.DeleteByMessageID(ctx, messageID); err != nil {
		s.logger.WithError(err).Error("Failed to delete likes of deleted message")
	}

	event := queue.Event{
		Type: queue.EventMessageDeleted,
		Data: queue.MessageEventData{
			MessageID: messageID.String(),
			UserID:    actorID.String(),
		},
	}
	if err := s.producer.Publish(ctx, actorID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish message deleted event")
	}

	s.logger.WithFields(map[string]interface{}{
		"message_id": messageID,
		"user_id":    actorID,
	}).Info("Message deleted")

	return nil
}

// ToggleLike 真正的开关：已赞则取消，未赞则添加，连续两次调用回到原状。
// 作者不能给自己的消息点赞。
func (s *MessageService) ToggleLike(ctx context.Context, actorID, messageID uuid.UUID) (bool, error) {
	message, err := s.messageStore.GetByID(ctx, messageID)
	if err != nil {
		return false, fmt.Errorf("failed to get message: %w", err)
	}
	if message == nil {
		return false, ErrNotFound
	}

	if message.UserID == actorID {
		return false, ErrSelfLike
	}

	existing, err := s.likeStore.Get(ctx, actorID, messageID)
	if err != nil {
		return false, fmt.Errorf("failed to check like status: %w", err)
	}

	liked := false
	if existing != nil {
		if err := s.likeStore.Delete(ctx, actorID, messageID); err != nil {
			return false, fmt.Errorf("failed to delete like: %w", err)
		}
	} else {
		like := &models.Like{
			UserID:    actorID,
			MessageID: messageID,
		}
		if err := s.likeStore.Create(ctx, like); err != nil {
			// 并发双写撞唯一索引：输掉的那次当作无害的lost-update
			if !errors.Is(err, repository.ErrDuplicate) {
				return false, fmt.Errorf("failed to create like: %w", err)
			}
		}
		liked = true
	}

	event := queue.Event{
		Type: queue.EventLikeToggled,
		Data: queue.LikeEventData{
			UserID:    actorID.String(),
			MessageID: messageID.String(),
			Liked:     liked,
		},
	}
	if err := s.producer.Publish(ctx, actorID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish like toggled event")
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":    actorID,
		"message_id": messageID,
		"liked":      liked,
	}).Info("Like toggled")

	return liked, nil
}

func (s *MessageService) GetLikedMessages(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.Message, error) {
	messages, err := s.likeStore.GetLikedMessages(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get liked messages: %w", err)
	}
	return messages, nil
}

func (s *MessageService) GetLikeCount(ctx context.Context, messageID uuid.UUID) (int64, error) {
	count, err := s.likeStore.CountByMessageID(ctx, messageID)
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return count, nil
}

func (s *MessageService) IsLiked(ctx context.Context, userID, messageID uuid.UUID) (bool, error) {
	return s.likeStore.IsLiked(ctx, userID, messageID)
}
