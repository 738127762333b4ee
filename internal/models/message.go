package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Message struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Text      string         `json:"text" gorm:"type:varchar(140);not null"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	User User `json:"user" gorm:"foreignKey:UserID"`
}

type Like struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_message"`
	MessageID uuid.UUID `json:"message_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_message"`
	CreatedAt time.Time `json:"created_at"`

	User    User    `json:"user" gorm:"foreignKey:UserID"`
	Message Message `json:"message" gorm:"foreignKey:MessageID"`
}

// Timeline 每行表示某条消息出现在某个用户的首页时间线里
type Timeline struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_timeline_user_message"`
	MessageID uuid.UUID `json:"message_id" gorm:"type:uuid;not null;index:idx_timeline_user_message"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	User    User    `json:"user" gorm:"foreignKey:UserID"`
	Message Message `json:"message" gorm:"foreignKey:MessageID"`
}

func (Message) TableName() string {
	return "messages"
}

func (Like) TableName() string {
	return "likes"
}

func (Timeline) TableName() string {
	return "timelines"
}
