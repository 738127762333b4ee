package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/english-site/english-site/internal/config"
	"github.com/english-site/english-site/internal/models"
	"github.com/english-site/english-site/internal/repository"
	"github.com/english-site/english-site/internal/services"
	"github.com/english-site/english-site/pkg/logger"
	"github.com/english-site/english-site/pkg/queue"
	"github.com/google/uuid"
)

// TimelineWorker 消费站点事件，按关注关系维护各用户的首页时间线。
// 时间线只是派生数据，核心不变量不依赖它。
type TimelineWorker struct {
	timelineRepo *repository.TimelineRepository
	messageRepo  *repository.MessageRepository
	followRepo   *repository.FollowRepository
	feedService  *services.FeedService
	config       *config.FeedConfig
	consumer     *queue.KafkaConsumer
	logger       *logger.Logger
}

func NewTimelineWorker(
	timelineRepo *repository.TimelineRepository,
	messageRepo *repository.MessageRepository,
	followRepo *repository.FollowRepository,
	feedService *services.FeedService,
	config *config.FeedConfig,
	consumer *queue.KafkaConsumer,
	logger *logger.Logger,
) *TimelineWorker {
	return &TimelineWorker{
		timelineRepo: timelineRepo,
		messageRepo:  messageRepo,
		followRepo:   followRepo,
		feedService:  feedService,
		config:       config,
		consumer:     consumer,
		logger:       logger,
	}
}

func (w *TimelineWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting timeline worker...")

	return w.consumer.Subscribe(ctx, func(msg queue.Message) error {
		var event queue.Event
		data, err := json.Marshal(msg.Value)
		if err != nil {
			return fmt.Errorf("failed to marshal message value: %w", err)
		}

		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("failed to unmarshal event: %w", err)
		}

		w.logger.WithFields(map[string]interface{}{
			"event_type": event.Type,
			"timestamp":  event.Timestamp,
		}).Info("Processing event")

		switch event.Type {
		case queue.EventMessageCreated:
			return w.handleMessageCreated(ctx, event)
		case queue.EventMessageDeleted:
			return w.handleMessageDeleted(ctx, event)
		case queue.EventFollowCreated:
			return w.handleFollowCreated(ctx, event)
		case queue.EventFollowDeleted:
			return w.handleFollowDeleted(ctx, event)
		case queue.EventUserDeleted:
			return w.handleUserDeleted(ctx, event)
		case queue.EventUserRegistered, queue.EventUserUpdated, queue.EventLikeToggled,
			queue.EventQuizSubmitted, queue.EventModuleCompleted:
			// 这些事件不影响时间线
			return nil
		default:
			w.logger.WithField("event_type", event.Type).Warn("Unknown event type")
			return nil
		}
	})
}

func (w *TimelineWorker) handleMessageCreated(ctx context.Context, event queue.Event) error {
	var data queue.MessageEventData
	if err := decodeEventData(event.Data, &data); err != nil {
		return fmt.Errorf("invalid message created event data: %w", err)
	}

	messageID, err := uuid.Parse(data.MessageID)
	if err != nil {
		return fmt.Errorf("invalid message ID: %w", err)
	}
	authorID, err := uuid.Parse(data.UserID)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	message, err := w.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}
	if message == nil {
		// 分发前就被删了
		return nil
	}

	// 推给所有关注者，作者自己的时间线也收一份
	followers, err := w.followRepo.GetFollowers(ctx, authorID, 0, w.config.MaxFeedSize)
	if err != nil {
		return fmt.Errorf("failed to get followers: %w", err)
	}

	timelines := make([]*models.Timeline, 0, len(followers)+1)
	for _, follower := range followers {
		timelines = append(timelines, &models.Timeline{
			UserID:    follower.ID,
			MessageID: messageID,
			CreatedAt: message.CreatedAt,
		})
	}
	timelines = append(timelines, &models.Timeline{
		UserID:    authorID,
		MessageID: messageID,
		CreatedAt: message.CreatedAt,
	})

	if err := w.timelineRepo.CreateBatch(ctx, timelines); err != nil {
		return fmt.Errorf("failed to create timelines: %w", err)
	}

	for _, timeline := range timelines {
		if err := w.feedService.InvalidateFeed(ctx, timeline.UserID); err != nil {
			w.logger.WithError(err).Error("Failed to invalidate feed cache")
		}
	}

	return nil
}

func (w *TimelineWorker) handleMessageDeleted(ctx context.Context, event queue.Event) error {
	var data queue.MessageEventData
	if err := decodeEventData(event.Data, &data); err != nil {
		return fmt.Errorf("invalid message deleted event data: %w", err)
	}

	messageID, err := uuid.Parse(data.MessageID)
	if err != nil {
		return fmt.Errorf("invalid message ID: %w", err)
	}

	if err := w.timelineRepo.DeleteByMessageID(ctx, messageID); err != nil {
		return fmt.Errorf("failed to delete timeline entries: %w", err)
	}

	if authorID, err := uuid.Parse(data.UserID); err == nil {
		if err := w.feedService.InvalidateFeed(ctx, authorID); err != nil {
			w.logger.WithError(err).Error("Failed to invalidate feed cache")
		}
	}

	return nil
}

func (w *TimelineWorker) handleFollowCreated(ctx context.Context, event queue.Event) error {
	var data queue.FollowEventData
	if err := decodeEventData(event.Data, &data); err != nil {
		return fmt.Errorf("invalid follow created event data: %w", err)
	}

	followerID, err := uuid.Parse(data.FollowerID)
	if err != nil {
		return fmt.Errorf("invalid follower ID: %w", err)
	}
	followedID, err := uuid.Parse(data.FollowedID)
	if err != nil {
		return fmt.Errorf("invalid followed ID: %w", err)
	}

	// 被关注者的近期消息回填进关注者时间线
	messages, err := w.messageRepo.GetByUserID(ctx, followedID, 0, 10)
	if err != nil {
		return fmt.Errorf("failed to get followed user's messages: %w", err)
	}

	timelines := make([]*models.Timeline, 0, len(messages))
	for _, message := range messages {
		timelines = append(timelines, &models.Timeline{
			UserID:    followerID,
			MessageID: message.ID,
			CreatedAt: message.CreatedAt,
		})
	}

	if len(timelines) > 0 {
		if err := w.timelineRepo.CreateBatch(ctx, timelines); err != nil {
			return fmt.Errorf("failed to create timelines: %w", err)
		}
	}

	if err := w.feedService.InvalidateFeed(ctx, followerID); err != nil {
		w.logger.WithError(err).Error("Failed to invalidate feed cache")
	}

	return nil
}

func (w *TimelineWorker) handleFollowDeleted(ctx context.Context, event queue.Event) error {
	var data queue.FollowEventData
	if err := decodeEventData(event.Data, &data); err != nil {
		return fmt.Errorf("invalid follow deleted event data: %w", err)
	}

	followerID, err := uuid.Parse(data.FollowerID)
	if err != nil {
		return fmt.Errorf("invalid follower ID: %w", err)
	}
	followedID, err := uuid.Parse(data.FollowedID)
	if err != nil {
		return fmt.Errorf("invalid followed ID: %w", err)
	}

	// 取关后把对方的消息从时间线摘掉
	messages, err := w.messageRepo.GetByUserID(ctx, followedID, 0, w.config.MaxFeedSize)
	if err != nil {
		return fmt.Errorf("failed to get followed user's messages: %w", err)
	}

	for _, message := range messages {
		if err := w.timelineRepo.DeleteByUserIDAndMessageID(ctx, followerID, message.ID); err != nil {
			w.logger.WithError(err).WithFields(map[string]interface{}{
				"user_id":    data.FollowerID,
				"message_id": message.ID,
			}).Error("Failed to delete timeline entry")
		}
	}

	if err := w.feedService.InvalidateFeed(ctx, followerID); err != nil {
		w.logger.WithError(err).Error("Failed to invalidate feed cache")
	}

	return nil
}

func (w *TimelineWorker) handleUserDeleted(ctx context.Context, event queue.Event) error {
	var data queue.UserEventData
	if err := decodeEventData(event.Data, &data); err != nil {
		return fmt.Errorf("invalid user deleted event data: %w", err)
	}

	userID, err := uuid.Parse(data.UserID)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	if err := w.timelineRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to purge timeline: %w", err)
	}

	if err := w.feedService.InvalidateFeed(ctx, userID); err != nil {
		w.logger.WithError(err).Error("Failed to invalidate feed cache")
	}

	return nil
}

func (w *TimelineWorker) Stop() error {
	w.logger.Info("Stopping timeline worker...")
	return w.consumer.Close()
}

// decodeEventData consumer拿到的Data是map，经json回环还原成具体事件结构
func decodeEventData(value interface{}, dest interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
