package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/english-site/english-site/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LikeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

func (r *LikeRepository) Create(ctx context.Context, like *models.Like) error {
	if err := r.db.WithContext(ctx).Create(like).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create like: %w", err)
	}
	return nil
}

func (r *LikeRepository) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Delete(&models.Like{}).Error; err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return nil
}

func (r *LikeRepository) Get(ctx context.Context, userID, messageID uuid.UUID) (*models.Like, error) {
	var like models.Like
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		First(&like).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get like: %w", err)
	}
	return &like, nil
}

// GetLikedMessages 取某用户点过赞的消息，按点赞时间倒序
func (r *LikeRepository) GetLikedMessages(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.Message, error) {
	var messages []*models.Message
	if err := r.db.WithContext(ctx).
		Table("messages").
		Joins("JOIN likes ON likes.message_id = messages.id").
		Where("likes.user_id = ? AND messages.deleted_at IS NULL", userID).
		Order("likes.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to get liked messages: %w", err)
	}
	return messages, nil
}

func (r *LikeRepository) CountByMessageID(ctx context.Context, messageID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("message_id = ?", messageID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return count, nil
}

func (r *LikeRepository) IsLiked(ctx context.Context, userID, messageID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check like status: %w", err)
	}
	return count > 0, nil
}

func (r *LikeRepository) DeleteByMessageID(ctx context.Context, messageID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Delete(&models.Like{}).Error; err != nil {
		return fmt.Errorf("failed to delete likes by message: %w", err)
	}
	return nil
}

func (r *LikeRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Like{}).Error; err != nil {
		return fmt.Errorf("failed to delete likes by user: %w", err)
	}
	return nil
}
