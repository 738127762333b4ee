package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/english-site/english-site/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProgressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) Create(ctx context.Context, progress *models.Progress) error {
	if err := r.db.WithContext(ctx).Create(progress).Error; err != nil {
		// user_id唯一索引兜底并发的双重插入
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create progress: %w", err)
	}
	return nil
}

func (r *ProgressRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Progress, error) {
	var progress models.Progress
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&progress).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return &progress, nil
}

// UpdateQuizScore 只覆盖分数，完成标记保持原值
func (r *ProgressRepository) UpdateQuizScore(ctx context.Context, userID uuid.UUID, score int) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Progress{}).
		Where("user_id = ?", userID).
		UpdateColumn("quiz_score", score).Error; err != nil {
		return fmt.Errorf("failed to update quiz score: %w", err)
	}
	return nil
}

// SetModuleCompleted 单向置true，不触碰其他标记
func (r *ProgressRepository) SetModuleCompleted(ctx context.Context, userID uuid.UUID, module models.LearningModule) error {
	column := ""
	switch module {
	case models.ModuleGrammarBook:
		column = "is_grammar_book_completed"
	case models.ModuleStoryBook:
		column = "is_story_book_completed"
	case models.ModuleVideo:
		column = "is_video_completed"
	default:
		return fmt.Errorf("unknown learning module: %s", module)
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Progress{}).
		Where("user_id = ?", userID).
		UpdateColumn(column, true).Error; err != nil {
		return fmt.Errorf("failed to set module completed: %w", err)
	}
	return nil
}

func (r *ProgressRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Progress{}).Error; err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}
