package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/english-site/english-site/internal/models"
	"github.com/english-site/english-site/internal/repository"
	"github.com/english-site/english-site/pkg/queue"
	"github.com/google/uuid"
)

// 内存版仓库实现，行为对齐internal/repository：
// 找不到返回(nil, nil)，唯一冲突返回repository.ErrDuplicate。

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *fakeUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *fakeUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.users {
		if id == user.ID {
			continue
		}
		if existing.Username == user.Username || existing.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *fakeUserStore) List(_ context.Context, offset, limit int) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return paginate(users, offset, limit), nil
}

func (s *fakeUserStore) Search(_ context.Context, query string, offset, limit int) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*models.User
	for _, user := range s.users {
		if strings.Contains(strings.ToLower(user.Username), strings.ToLower(query)) {
			matched = append(matched, user)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	return paginate(matched, offset, limit), nil
}

type followEdge struct {
	followerID uuid.UUID
	followedID uuid.UUID
}

type fakeFollowStore struct {
	mu    sync.Mutex
	edges map[followEdge]*models.Follow
	users *fakeUserStore
}

func newFakeFollowStore(users *fakeUserStore) *fakeFollowStore {
	return &fakeFollowStore{edges: make(map[followEdge]*models.Follow), users: users}
}

func (s *fakeFollowStore) Create(_ context.Context, follow *models.Follow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge := followEdge{follow.FollowerID, follow.FollowedID}
	if _, ok := s.edges[edge]; ok {
		return repository.ErrDuplicate
	}
	if follow.ID == uuid.Nil {
		follow.ID = uuid.New()
	}
	if follow.CreatedAt.IsZero() {
		follow.CreatedAt = time.Now()
	}
	s.edges[edge] = follow
	return nil
}

func (s *fakeFollowStore) Delete(_ context.Context, followerID, followedID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, followEdge{followerID, followedID})
	return nil
}

func (s *fakeFollowStore) Get(_ context.Context, followerID, followedID uuid.UUID) (*models.Follow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges[followEdge{followerID, followedID}], nil
}

func (s *fakeFollowStore) GetFollowers(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.User, error) {
	s.mu.Lock()
	var follows []*models.Follow
	for edge, follow := range s.edges {
		if edge.followedID == userID {
			follows = append(follows, follow)
		}
	}
	s.mu.Unlock()

	sort.Slice(follows, func(i, j int) bool { return follows[i].CreatedAt.Before(follows[j].CreatedAt) })
	var users []*models.User
	for _, follow := range follows {
		if user, _ := s.users.GetByID(ctx, follow.FollowerID); user != nil {
			users = append(users, user)
		}
	}
	return paginate(users, offset, limit), nil
}

func (s *fakeFollowStore) GetFollowing(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.User, error) {
	s.mu.Lock()
	var follows []*models.Follow
	for edge, follow := range s.edges {
		if edge.followerID == userID {
			follows = append(follows, follow)
		}
	}
	s.mu.Unlock()

	sort.Slice(follows, func(i, j int) bool { return follows[i].CreatedAt.Before(follows[j].CreatedAt) })
	var users []*models.User
	for _, follow := range follows {
		if user, _ := s.users.GetByID(ctx, follow.FollowedID); user != nil {
			users = append(users, user)
		}
	}
	return paginate(users, offset, limit), nil
}

func (s *fakeFollowStore) CountFollowers(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for edge := range s.edges {
		if edge.followedID == userID {
			count++
		}
	}
	return count, nil
}

func (s *fakeFollowStore) CountFollowing(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for edge := range s.edges {
		if edge.followerID == userID {
			count++
		}
	}
	return count, nil
}

func (s *fakeFollowStore) IsFollowing(_ context.Context, followerID, followedID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[followEdge{followerID, followedID}]
	return ok, nil
}

func (s *fakeFollowStore) DeleteAllForUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for edge := range s.edges {
		if edge.followerID == userID || edge.followedID == userID {
			delete(s.edges, edge)
		}
	}
	return nil
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*models.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[uuid.UUID]*models.Message)}
}

func (s *fakeMessageStore) Create(_ context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	s.messages[message.ID] = message
	return nil
}

func (s *fakeMessageStore) GetByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id], nil
}

func (s *fakeMessageStore) GetByUserID(_ context.Context, userID uuid.UUID, offset, limit int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var messages []*models.Message
	for _, message := range s.messages {
		if message.UserID == userID {
			messages = append(messages, message)
		}
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].CreatedAt.After(messages[j].CreatedAt) })
	return paginate(messages, offset, limit), nil
}

func (s *fakeMessageStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
	return nil
}

func (s *fakeMessageStore) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, message := range s.messages {
		if message.UserID == userID {
			delete(s.messages, id)
		}
	}
	return nil
}

func (s *fakeMessageStore) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, message := range s.messages {
		if message.UserID == userID {
			count++
		}
	}
	return count, nil
}

type likeKey struct {
	userID    uuid.UUID
	messageID uuid.UUID
}

type fakeLikeStore struct {
	mu       sync.Mutex
	likes    map[likeKey]*models.Like
	messages *fakeMessageStore

	// failNextCreate 注入一次唯一冲突，模拟并发双写
	failNextCreate bool
}

func newFakeLikeStore(messages *fakeMessageStore) *fakeLikeStore {
	return &fakeLikeStore{likes: make(map[likeKey]*models.Like), messages: messages}
}

func (s *fakeLikeStore) Create(_ context.Context, like *models.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextCreate {
		s.failNextCreate = false
		return repository.ErrDuplicate
	}
	key := likeKey{like.UserID, like.MessageID}
	if _, ok := s.likes[key]; ok {
		return repository.ErrDuplicate
	}
	if like.ID == uuid.Nil {
		like.ID = uuid.New()
	}
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now()
	}
	s.likes[key] = like
	return nil
}

func (s *fakeLikeStore) Delete(_ context.Context, userID, messageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.likes, likeKey{userID, messageID})
	return nil
}

func (s *fakeLikeStore) Get(_ context.Context, userID, messageID uuid.UUID) (*models.Like, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.likes[likeKey{userID, messageID}], nil
}

func (s *fakeLikeStore) GetLikedMessages(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.Message, error) {
	s.mu.Lock()
	var likes []*models.Like
	for key, like := range s.likes {
		if key.userID == userID {
			likes = append(likes, like)
		}
	}
	s.mu.Unlock()

	sort.Slice(likes, func(i, j int) bool { return likes[i].CreatedAt.After(likes[j].CreatedAt) })
	var messages []*models.Message
	for _, like := range likes {
		if message, _ := s.messages.GetByID(ctx, like.MessageID); message != nil {
			messages = append(messages, message)
		}
	}
	return paginate(messages, offset, limit), nil
}

func (s *fakeLikeStore) CountByMessageID(_ context.Context, messageID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for key := range s.likes {
		if key.messageID == messageID {
			count++
		}
	}
	return count, nil
}

func (s *fakeLikeStore) IsLiked(_ context.Context, userID, messageID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.likes[likeKey{userID, messageID}]
	return ok, nil
}

func (s *fakeLikeStore) DeleteByMessageID(_ context.Context, messageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.likes {
		if key.messageID == messageID {
			delete(s.likes, key)
		}
	}
	return nil
}

func (s *fakeLikeStore) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.likes {
		if key.userID == userID {
			delete(s.likes, key)
		}
	}
	return nil
}

type fakeProgressStore struct {
	mu       sync.Mutex
	progress map[uuid.UUID]*models.Progress

	failNextCreate bool
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{progress: make(map[uuid.UUID]*models.Progress)}
}

func (s *fakeProgressStore) Create(_ context.Context, progress *models.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextCreate {
		s.failNextCreate = false
		return repository.ErrDuplicate
	}
	if _, ok := s.progress[progress.UserID]; ok {
		return repository.ErrDuplicate
	}
	if progress.ID == uuid.Nil {
		progress.ID = uuid.New()
	}
	s.progress[progress.UserID] = progress
	return nil
}

func (s *fakeProgressStore) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress[userID], nil
}

func (s *fakeProgressStore) UpdateQuizScore(_ context.Context, userID uuid.UUID, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if progress, ok := s.progress[userID]; ok {
		progress.QuizScore = score
	}
	return nil
}

func (s *fakeProgressStore) SetModuleCompleted(_ context.Context, userID uuid.UUID, module models.LearningModule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	progress, ok := s.progress[userID]
	if !ok {
		return nil
	}
	switch module {
	case models.ModuleGrammarBook:
		progress.IsGrammarBookCompleted = true
	case models.ModuleStoryBook:
		progress.IsStoryBookCompleted = true
	case models.ModuleVideo:
		progress.IsVideoCompleted = true
	}
	return nil
}

func (s *fakeProgressStore) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, userID)
	return nil
}

type fakeTimelineStore struct {
	mu   sync.Mutex
	rows []*models.Timeline
}

func newFakeTimelineStore() *fakeTimelineStore {
	return &fakeTimelineStore{}
}

func (s *fakeTimelineStore) GetByUserID(_ context.Context, userID uuid.UUID, offset, limit int) ([]*models.Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []*models.Timeline
	for _, row := range s.rows {
		if row.UserID == userID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return paginate(rows, offset, limit), nil
}

func (s *fakeTimelineStore) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*models.Timeline
	for _, row := range s.rows {
		if row.UserID != userID {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

func (s *fakeTimelineStore) add(row *models.Timeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *fakePublisher) Publish(_ context.Context, _ string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event, ok := value.(queue.Event); ok {
		p.events = append(p.events, event)
	}
	return nil
}

func (p *fakePublisher) eventTypes() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]queue.EventType, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

var errCacheMiss = errors.New("cache miss")

type fakeSessionCache struct {
	mu     sync.Mutex
	values map[string]string
	sets   map[string]map[string]struct{}
	ttls   map[string]time.Duration
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{
		values: make(map[string]string),
		sets:   make(map[string]map[string]struct{}),
		ttls:   make(map[string]time.Duration),
	}
}

func (c *fakeSessionCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[key]
	if !ok {
		return "", errCacheMiss
	}
	return value, nil
}

func (c *fakeSessionCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value.(string)
	c.ttls[key] = expiration
	return nil
}

func (c *fakeSessionCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.values, key)
		delete(c.sets, key)
		delete(c.ttls, key)
	}
	return nil
}

func (c *fakeSessionCache) Expire(_ context.Context, key string, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttls[key] = expiration
	return nil
}

func (c *fakeSessionCache) SAdd(_ context.Context, key string, members ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[key]
	if !ok {
		set = make(map[string]struct{})
		c.sets[key] = set
	}
	for _, member := range members {
		set[member.(string)] = struct{}{}
	}
	return nil
}

func (c *fakeSessionCache) SMembers(_ context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var members []string
	for member := range c.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func (c *fakeSessionCache) SRem(_ context.Context, key string, members ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[key]
	if !ok {
		return nil
	}
	for _, member := range members {
		delete(set, member.(string))
	}
	return nil
}

type fakeFeedCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeFeedCache() *fakeFeedCache {
	return &fakeFeedCache{data: make(map[string][]byte)}
}

func (c *fakeFeedCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return errCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *fakeFeedCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *fakeFeedCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.data, key)
	}
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
