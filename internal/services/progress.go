package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/english-site/english-site/internal/models"
	"github.com/english-site/english-site/internal/repository"
	"github.com/english-site/english-site/pkg/logger"
	"github.com/english-site/english-site/pkg/queue"
	"github.com/google/uuid"
)

// quizAnswerKey 固定答案表，得分为命中数
var quizAnswerKey = map[string]string{
	"q1": "r4",
	"q2": "r1",
	"q3": "r1",
	"q4": "r2",
	"q5": "r2",
}

type ProgressService struct {
	progressStore ProgressStore
	producer      Publisher
	logger        *logger.Logger
}

func NewProgressService(progressStore ProgressStore, producer Publisher, logger *logger.Logger) *ProgressService {
	return &ProgressService{
		progressStore: progressStore,
		producer:      producer,
		logger:        logger,
	}
}

// ScoreQuiz 五道题必须都有作答，缺一题按无效提交处理
func ScoreQuiz(answers map[string]string) (int, error) {
	score := 0
	for question, correct := range quizAnswerKey {
		chosen, ok := answers[question]
		if !ok {
			return 0, ErrValidation
		}
		if chosen == correct {
			score++
		}
	}
	return score, nil
}

// RecordQuizScore 懒创建唯一的进度行；已存在时只覆盖分数，完成标记不动。
// 分数不单调，重交就覆盖。
func (s *ProgressService) RecordQuizScore(ctx context.Context, userID uuid.UUID, answers map[string]string) (int, error) {
	score, err := ScoreQuiz(answers)
	if err != nil {
		return 0, err
	}

	existing, err := s.progressStore.GetByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get progress: %w", err)
	}

	if existing == nil {
		progress := &models.Progress{
			UserID:    userID,
			QuizScore: score,
		}
		if err := s.progressStore.Create(ctx, progress); err != nil {
			// 并发双插：输掉的一方降级成更新
			if errors.Is(err, repository.ErrDuplicate) {
				if err := s.progressStore.UpdateQuizScore(ctx, userID, score); err != nil {
					return 0, err
				}
			} else {
				return 0, err
			}
		}
	} else {
		if err := s.progressStore.UpdateQuizScore(ctx, userID, score); err != nil {
			return 0, err
		}
	}

	event := queue.Event{
		Type: queue.EventQuizSubmitted,
		Data: queue.ProgressEventData{
			UserID: userID.String(),
			Score:  score,
		},
	}
	if err := s.producer.Publish(ctx, userID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish quiz submitted event")
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"score":   score,
	}).Info("Quiz score recorded")

	return score, nil
}

// MarkModuleCompleted 单向置位：只动自己的标记，重复标记是no-op
func (s *ProgressService) MarkModuleCompleted(ctx context.Context, userID uuid.UUID, module models.LearningModule) (*models.Progress, error) {
	if !module.Valid() {
		return nil, ErrValidation
	}

	existing, err := s.progressStore.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	if existing == nil {
		progress := &models.Progress{
			UserID:                 userID,
			IsGrammarBookCompleted: module == models.ModuleGrammarBook,
			IsStoryBookCompleted:   module == models.ModuleStoryBook,
			IsVideoCompleted:       module == models.ModuleVideo,
		}
		if err := s.progressStore.Create(ctx, progress); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				if err := s.progressStore.SetModuleCompleted(ctx, userID, module); err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
	} else {
		if err := s.progressStore.SetModuleCompleted(ctx, userID, module); err != nil {
			return nil, err
		}
	}

	updated, err := s.progressStore.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload progress: %w", err)
	}

	event := queue.Event{
		Type: queue.EventModuleCompleted,
		Data: queue.ProgressEventData{
			UserID: userID.String(),
			Module: string(module),
		},
	}
	if err := s.producer.Publish(ctx, userID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish module completed event")
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"module":  module,
	}).Info("Learning module completed")

	return updated, nil
}

func (s *ProgressService) GetProgress(ctx context.Context, userID uuid.UUID) (*models.Progress, error) {
	progress, err := s.progressStore.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return progress, nil
}
