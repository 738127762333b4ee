package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/english-site/english-site/internal/config"
	"github.com/english-site/english-site/internal/models"
	"github.com/english-site/english-site/internal/repository"
	"github.com/english-site/english-site/pkg/logger"
	"github.com/english-site/english-site/pkg/queue"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userStore     UserStore
	followStore   FollowStore
	messageStore  MessageStore
	likeStore     LikeStore
	progressStore ProgressStore
	timelineStore TimelineStore
	producer      Publisher
	config        *config.ProfileConfig
	logger        *logger.Logger
}

func NewUserService(
	userStore UserStore,
	followStore FollowStore,
	messageStore MessageStore,
	likeStore LikeStore,
	progressStore ProgressStore,
	timelineStore TimelineStore,
	producer Publisher,
	config *config.ProfileConfig,
	logger *logger.Logger,
) *UserService {
	return &UserService{
		userStore:     userStore,
		followStore:   followStore,
		messageStore:  messageStore,
		likeStore:     likeStore,
		progressStore: progressStore,
		timelineStore: timelineStore,
		producer:      producer,
		config:        config,
		logger:        logger,
	}
}

type SignupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=50"`
	ImageURL string `json:"image_url"`
}

type UpdateProfileRequest struct {
	Password       string  `json:"password" binding:"required"`
	Username       *string `json:"username" binding:"omitempty,min=3,max=30"`
	Email          *string `json:"email" binding:"omitempty,email"`
	ImageURL       *string `json:"image_url"`
	HeaderImageURL *string `json:"header_image_url"`
	Bio            *string `json:"bio" binding:"omitempty,max=500"`
	Location       *string `json:"location" binding:"omitempty,max=100"`
}

// Signup 密码只落bcrypt散列。用户名和邮箱依赖存储层唯一索引，
// 任意一列冲突都折叠为同一个ErrDuplicateUser。
func (s *UserService) Signup(ctx context.Context, req *SignupRequest) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	imageURL := req.ImageURL
	if imageURL == "" {
		imageURL = s.config.DefaultImageURL
	}

	user := &models.User{
		Username:       req.Username,
		Email:          req.Email,
		Password:       string(hashedPassword),
		ImageURL:       imageURL,
		HeaderImageURL: s.config.DefaultHeaderImageURL,
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	event := queue.Event{
		Type:      queue.EventUserRegistered,
		Timestamp: user.CreatedAt,
		Data: queue.UserEventData{
			UserID:   user.ID.String(),
			Username: user.Username,
		},
	}
	if err := s.producer.Publish(ctx, user.ID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish user registered event")
	}

	s.logger.WithField("user_id", user.ID).Info("User registered successfully")
	return user, nil
}

// Authenticate 凭证不匹配时返回(nil, nil)，由调用方决定如何提示
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userStore.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *UserService) Search(ctx context.Context, query string, offset, limit int) ([]*models.User, error) {
	users, err := s.userStore.Search(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

// UpdateProfile 修改资料前要求用当前密码重新认证
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*models.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	authenticated, err := s.Authenticate(ctx, user.Username, req.Password)
	if err != nil {
		return nil, err
	}
	if authenticated == nil {
		return nil, ErrUnauthorized
	}

	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.ImageURL != nil {
		user.ImageURL = *req.ImageURL
		if user.ImageURL == "" {
			user.ImageURL = s.config.DefaultImageURL
		}
	}
	if req.HeaderImageURL != nil {
		user.HeaderImageURL = *req.HeaderImageURL
		if user.HeaderImageURL == "" {
			user.HeaderImageURL = s.config.DefaultHeaderImageURL
		}
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Location != nil {
		user.Location = *req.Location
	}

	if err := s.userStore.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("User profile updated")
	return user, nil
}

// Delete 级联清掉用户拥有的一切：消息及其点赞和时间线分发、
// 两个方向的关注边、自己点过的赞、学习进度、自己的首页时间线。
func (s *UserService) Delete(ctx context.Context, userID uuid.UUID) error {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrNotFound
	}

	messages, err := s.messageStore.GetByUserID(ctx, userID, 0, -1)
	if err != nil {
		return fmt.Errorf("failed to list user messages: %w", err)
	}
	for _, message := range messages {
		if err := s.likeStore.DeleteByMessageID(ctx, message.ID); err != nil {
			return err
		}
	}
	if err := s.messageStore.DeleteByUserID(ctx, userID); err != nil {
		return err
	}

	if err := s.likeStore.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	if err := s.followStore.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}
	if err := s.progressStore.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	if err := s.timelineStore.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	if err := s.userStore.Delete(ctx, userID); err != nil {
		return err
	}

	event := queue.Event{
		Type: queue.EventUserDeleted,
		Data: queue.UserEventData{
			UserID:   userID.String(),
			Username: user.Username,
		},
	}
	if err := s.producer.Publish(ctx, userID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish user deleted event")
	}

	s.logger.WithField("user_id", userID).Info("User deleted")
	return nil
}

// Follow 目标必须存在；重复关注是无害的no-op（唯一索引兜底并发）
func (s *UserService) Follow(ctx context.Context, actorID, targetID uuid.UUID) error {
	if actorID == targetID {
		return ErrValidation
	}

	target, err := s.userStore.GetByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to get target user: %w", err)
	}
	if target == nil {
		return ErrNotFound
	}

	follow := &models.Follow{
		FollowerID: actorID,
		FollowedID: targetID,
	}

	if err := s.followStore.Create(ctx, follow); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("failed to create follow: %w", err)
	}

	event := queue.Event{
		Type:      queue.EventFollowCreated,
		Timestamp: follow.CreatedAt,
		Data: queue.FollowEventData{
			FollowerID: actorID.String(),
			FollowedID: targetID.String(),
			CreatedAt:  follow.CreatedAt.Format("2006-01-02T15:04:05Z"),
		},
	}
	if err := s.producer.Publish(ctx, actorID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish follow created event")
	}

	s.logger.WithFields(map[string]interface{}{
		"follower_id": actorID,
		"followed_id": targetID,
	}).Info("User followed")

	return nil
}

// Unfollow 与Follow不对称：边不存在时报错
func (s *UserService) Unfollow(ctx context.Context, actorID, targetID uuid.UUID) error {
	existing, err := s.followStore.Get(ctx, actorID, targetID)
	if err != nil {
		return fmt.Errorf("failed to check follow status: %w", err)
	}
	if existing == nil {
		return ErrEdgeNotFound
	}

	if err := s.followStore.Delete(ctx, actorID, targetID); err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	event := queue.Event{
		Type: queue.EventFollowDeleted,
		Data: queue.FollowEventData{
			FollowerID: actorID.String(),
			FollowedID: targetID.String(),
		},
	}
	if err := s.producer.Publish(ctx, actorID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish follow deleted event")
	}

	s.logger.WithFields(map[string]interface{}{
		"follower_id": actorID,
		"followed_id": targetID,
	}).Info("User unfollowed")

	return nil
}

func (s *UserService) GetFollowers(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.User, error) {
	followers, err := s.followStore.GetFollowers(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	return followers, nil
}

func (s *UserService) GetFollowing(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.User, error) {
	following, err := s.followStore.GetFollowing(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get following: %w", err)
	}
	return following, nil
}

func (s *UserService) IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	return s.followStore.IsFollowing(ctx, followerID, followedID)
}

type ProfileStats struct {
	Messages  int64 `json:"messages"`
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

func (s *UserService) GetProfileStats(ctx context.Context, userID uuid.UUID) (*ProfileStats, error) {
	messages, err := s.messageStore.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	followers, err := s.followStore.CountFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	following, err := s.followStore.CountFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileStats{Messages: messages, Followers: followers, Following: following}, nil
}
