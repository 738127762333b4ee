package services

import (
	"context"
	"time"

	"github.com/english-site/english-site/internal/models"
	"github.com/google/uuid"
)

// 仓库接口按服务的实际消费面声明，internal/repository提供生产实现，
// 测试用内存假实现。

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, offset, limit int) ([]*models.User, error)
	Search(ctx context.Context, query string, offset, limit int) ([]*models.User, error)
}

type FollowStore interface {
	Create(ctx context.Context, follow *models.Follow) error
	Delete(ctx context.Context, followerID, followedID uuid.UUID) error
	Get(ctx context.Context, followerID, followedID uuid.UUID) (*models.Follow, error)
	GetFollowers(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.User, error)
	GetFollowing(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.User, error)
	CountFollowers(ctx context.Context, userID uuid.UUID) (int64, error)
	CountFollowing(ctx context.Context, userID uuid.UUID) (int64, error)
	IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error)
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

type MessageStore interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.Message, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}

type LikeStore interface {
	Create(ctx context.Context, like *models.Like) error
	Delete(ctx context.Context, userID, messageID uuid.UUID) error
	Get(ctx context.Context, userID, messageID uuid.UUID) (*models.Like, error)
	GetLikedMessages(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.Message, error)
	CountByMessageID(ctx context.Context, messageID uuid.UUID) (int64, error)
	IsLiked(ctx context.Context, userID, messageID uuid.UUID) (bool, error)
	DeleteByMessageID(ctx context.Context, messageID uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type ProgressStore interface {
	Create(ctx context.Context, progress *models.Progress) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Progress, error)
	UpdateQuizScore(ctx context.Context, userID uuid.UUID, score int) error
	SetModuleCompleted(ctx context.Context, userID uuid.UUID, module models.LearningModule) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type TimelineStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.Timeline, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// SessionCache 会话需要的redis子集
type SessionCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, expiration time.Duration) error
	SAdd(ctx context.Context, key string, members ...interface{}) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key string, members ...interface{}) error
}

type FeedCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
