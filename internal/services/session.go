package services

import (
	"context"
	"fmt"

	"github.com/english-site/english-site/internal/config"
	"github.com/english-site/english-site/pkg/logger"
	"github.com/google/uuid"
)

// SessionService 维护不透明会话token到用户身份的映射。
// token存在Redis里，TTL随每次解析滑动续期；同一用户允许多端并发登录。
type SessionService struct {
	cache  SessionCache
	config *config.SessionConfig
	logger *logger.Logger
}

func NewSessionService(cache SessionCache, config *config.SessionConfig, logger *logger.Logger) *SessionService {
	return &SessionService{
		cache:  cache,
		config: config,
		logger: logger,
	}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func userSessionsKey(userID uuid.UUID) string {
	return fmt.Sprintf("user-sessions:%s", userID.String())
}

func (s *SessionService) Login(ctx context.Context, userID uuid.UUID) (string, error) {
	token := uuid.NewString()

	if err := s.cache.Set(ctx, sessionKey(token), userID.String(), s.config.TTL); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	// 记录用户名下的全部token，账号删除时整体吊销
	if err := s.cache.SAdd(ctx, userSessionsKey(userID), token); err != nil {
		s.logger.WithError(err).Error("Failed to index session for user")
	}
	if err := s.cache.Expire(ctx, userSessionsKey(userID), s.config.TTL); err != nil {
		s.logger.WithError(err).Error("Failed to set session index TTL")
	}

	s.logger.WithField("user_id", userID).Info("Session created")
	return token, nil
}

// Resolve 解析token对应的用户，不存在返回ok=false而不是错误
func (s *SessionService) Resolve(ctx context.Context, token string) (uuid.UUID, bool, error) {
	if token == "" {
		return uuid.Nil, false, nil
	}

	value, err := s.cache.Get(ctx, sessionKey(token))
	if err != nil {
		return uuid.Nil, false, nil
	}

	userID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt session value: %w", err)
	}

	// 滑动续期
	if err := s.cache.Expire(ctx, sessionKey(token), s.config.TTL); err != nil {
		s.logger.WithError(err).Error("Failed to refresh session TTL")
	}
	if err := s.cache.Expire(ctx, userSessionsKey(userID), s.config.TTL); err != nil {
		s.logger.WithError(err).Error("Failed to refresh session index TTL")
	}

	return userID, true, nil
}

// Logout 幂等：token不存在时静默成功
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	value, err := s.cache.Get(ctx, sessionKey(token))
	if err == nil {
		if userID, parseErr := uuid.Parse(value); parseErr == nil {
			if err := s.cache.SRem(ctx, userSessionsKey(userID), token); err != nil {
				s.logger.WithError(err).Error("Failed to unindex session")
			}
		}
	}

	if err := s.cache.Delete(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DestroyAll 吊销用户所有设备上的会话，账号删除时调用
func (s *SessionService) DestroyAll(ctx context.Context, userID uuid.UUID) error {
	tokens, err := s.cache.SMembers(ctx, userSessionsKey(userID))
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}
	keys = append(keys, userSessionsKey(userID))

	if err := s.cache.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to destroy sessions: %w", err)
	}

	s.logger.WithField("user_id", userID).Info("All sessions destroyed")
	return nil
}
