package services

import (
	"context"
	"fmt"

	"github.com/english-site/english-site/internal/config"
	"github.com/english-site/english-site/internal/models"
	"github.com/english-site/english-site/pkg/logger"
	"github.com/google/uuid"
)

// FeedService 首页时间线读取路径：先查Redis缓存，未命中落库。
// 写入侧由worker按关注关系fan-out维护timelines表。
type FeedService struct {
	timelineStore TimelineStore
	cache         FeedCache
	config        *config.FeedConfig
	logger        *logger.Logger
}

func NewFeedService(
	timelineStore TimelineStore,
	cache FeedCache,
	config *config.FeedConfig,
	logger *logger.Logger,
) *FeedService {
	return &FeedService{
		timelineStore: timelineStore,
		cache:         cache,
		config:        config,
		logger:        logger,
	}
}

func FeedCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("feed:%s", userID.String())
}

func (s *FeedService) HomeFeed(ctx context.Context, userID uuid.UUID) ([]*models.Message, error) {
	limit := s.config.HomeLimit
	if limit <= 0 {
		limit = 100
	}

	cacheKey := FeedCacheKey(userID)
	var cached []*models.Message
	if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}

	timelines, err := s.timelineStore.GetByUserID(ctx, userID, 0, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get timeline: %w", err)
	}

	messages := make([]*models.Message, 0, len(timelines))
	for _, timeline := range timelines {
		if timeline.Message.ID != uuid.Nil {
			message := timeline.Message
			messages = append(messages, &message)
		}
	}

	if err := s.cache.SetJSON(ctx, cacheKey, messages, s.config.CacheTTL); err != nil {
		s.logger.WithError(err).Error("Failed to cache home feed")
	}

	return messages, nil
}

// InvalidateFeed worker在fan-out改动时间线后调用
func (s *FeedService) InvalidateFeed(ctx context.Context, userID uuid.UUID) error {
	return s.cache.Delete(ctx, FeedCacheKey(userID))
}
