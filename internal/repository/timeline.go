package repository

import (
	"context"
	"fmt"

	"github.com/english-site/english-site/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TimelineRepository struct {
	db *gorm.DB
}

func NewTimelineRepository(db *gorm.DB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

func (r *TimelineRepository) Create(ctx context.Context, timeline *models.Timeline) error {
	if err := r.db.WithContext(ctx).Create(timeline).Error; err != nil {
		return fmt.Errorf("failed to create timeline: %w", err)
	}
	return nil
}

func (r *TimelineRepository) CreateBatch(ctx context.Context, timelines []*models.Timeline) error {
	if err := r.db.WithContext(ctx).CreateInBatches(timelines, 100).Error; err != nil {
		return fmt.Errorf("failed to create timelines in batch: %w", err)
	}
	return nil
}

func (r *TimelineRepository) GetByUserID(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.Timeline, error) {
	var timelines []*models.Timeline
	if err := r.db.WithContext(ctx).
		Preload("Message.User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&timelines).Error; err != nil {
		return nil, fmt.Errorf("failed to get timeline: %w", err)
	}
	return timelines, nil
}

func (r *TimelineRepository) DeleteByMessageID(ctx context.Context, messageID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Delete(&models.Timeline{}).Error; err != nil {
		return fmt.Errorf("failed to delete timeline by message ID: %w", err)
	}
	return nil
}

func (r *TimelineRepository) DeleteByUserIDAndMessageID(ctx context.Context, userID, messageID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Delete(&models.Timeline{}).Error; err != nil {
		return fmt.Errorf("failed to delete timeline entry: %w", err)
	}
	return nil
}

func (r *TimelineRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Timeline{}).Error; err != nil {
		return fmt.Errorf("failed to delete timeline by user ID: %w", err)
	}
	return nil
}
