package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Username       string         `json:"username" gorm:"uniqueIndex;not null"`
	Email          string         `json:"email" gorm:"uniqueIndex;not null"`
	Password       string         `json:"-" gorm:"not null"`
	ImageURL       string         `json:"image_url"`
	HeaderImageURL string         `json:"header_image_url"`
	Bio            string         `json:"bio"`
	Location       string         `json:"location"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

type Follow struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	FollowerID uuid.UUID `json:"follower_id" gorm:"type:uuid;not null;uniqueIndex:idx_follower_followed"`
	FollowedID uuid.UUID `json:"followed_id" gorm:"type:uuid;not null;uniqueIndex:idx_follower_followed"`
	CreatedAt  time.Time `json:"created_at"`

	Follower User `json:"follower" gorm:"foreignKey:FollowerID"`
	Followed User `json:"followed" gorm:"foreignKey:FollowedID"`
}

func (User) TableName() string {
	return "users"
}

func (Follow) TableName() string {
	return "follows"
}
