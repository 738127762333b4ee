package models

import (
	"time"

	"github.com/google/uuid"
)

// LearningModule 学习模块标识
type LearningModule string

const (
	ModuleGrammarBook LearningModule = "grammar_book"
	ModuleStoryBook   LearningModule = "story_book"
	ModuleVideo       LearningModule = "video"
)

func (m LearningModule) Valid() bool {
	switch m {
	case ModuleGrammarBook, ModuleStoryBook, ModuleVideo:
		return true
	}
	return false
}

type Progress struct {
	ID                     uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID                 uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`
	QuizScore              int       `json:"quiz_score" gorm:"default:0"`
	IsGrammarBookCompleted bool      `json:"is_grammar_book_completed" gorm:"default:false"`
	IsStoryBookCompleted   bool      `json:"is_story_book_completed" gorm:"default:false"`
	IsVideoCompleted       bool      `json:"is_video_completed" gorm:"default:false"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// Completed 三个学习模块是否全部完成
func (p *Progress) Completed() bool {
	return p.IsGrammarBookCompleted && p.IsStoryBookCompleted && p.IsVideoCompleted
}

func (Progress) TableName() string {
	return "progress"
}
