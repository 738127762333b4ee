package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/english-site/english-site/internal/config"
	"github.com/english-site/english-site/internal/models"
	"github.com/english-site/english-site/internal/services"
	"github.com/english-site/english-site/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProgressStore struct {
	progress map[uuid.UUID]*models.Progress
}

func newMemProgressStore() *memProgressStore {
	return &memProgressStore{progress: make(map[uuid.UUID]*models.Progress)}
}

func (s *memProgressStore) Create(_ context.Context, progress *models.Progress) error {
	if progress.ID == uuid.Nil {
		progress.ID = uuid.New()
	}
	s.progress[progress.UserID] = progress
	return nil
}

func (s *memProgressStore) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Progress, error) {
	return s.progress[userID], nil
}

func (s *memProgressStore) UpdateQuizScore(_ context.Context, userID uuid.UUID, score int) error {
	if progress, ok := s.progress[userID]; ok {
		progress.QuizScore = score
	}
	return nil
}

func (s *memProgressStore) SetModuleCompleted(_ context.Context, userID uuid.UUID, module models.LearningModule) error {
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

func (s *memProgressStore) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	delete(s.progress, userID)
	return nil
}

type memUserStore struct {
	users map[uuid.UUID]*models.User
}

func (s *memUserStore) Create(_ context.Context, user *models.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return s.users[id], nil
}

func (s *memUserStore) GetByUsername(_ context.Context, _ string) (*models.User, error) {
	return nil, nil
}

func (s *memUserStore) Update(_ context.Context, _ *models.User) error { return nil }

func (s *memUserStore) Delete(_ context.Context, _ uuid.UUID) error { return nil }

func (s *memUserStore) List(_ context.Context, _, _ int) ([]*models.User, error) { return nil, nil }

func (s *memUserStore) Search(_ context.Context, _ string, _, _ int) ([]*models.User, error) {
	return nil, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(_ context.Context, _ string, _ interface{}) error { return nil }

var _ services.Publisher = noopPublisher{}

type learningFixture struct {
	router   *gin.Engine
	progress *memProgressStore
	users    *memUserStore
	userID   uuid.UUID
}

// 测试路由不走会话中间件，身份直接写进上下文
func newLearningFixture(t *testing.T) *learningFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewLogger()
	progressStore := newMemProgressStore()
	userStore := &memUserStore{users: make(map[uuid.UUID]*models.User)}

	userID := uuid.New()
	require.NoError(t, userStore.Create(context.Background(), &models.User{ID: userID, Username: "alice"}))

	progressService := services.NewProgressService(progressStore, noopPublisher{}, log)
	certificateService := services.NewCertificateService(&config.CertificateConfig{
		Secret:   "test-secret",
		Validity: 24 * time.Hour,
		Issuer:   "english-site",
	})
	userService := services.NewUserService(userStore, nil, nil, nil, nil, nil, noopPublisher{}, &config.ProfileConfig{}, log)

	handler := NewLearningHandler(progressService, certificateService, userService)

	router := gin.New()
	authed := router.Group("", func(c *gin.Context) {
		c.Set("user_id", userID.String())
	})

	router.POST("/submit-quiz", handler.SubmitQuiz)
	router.GET("/get-certificate", handler.GetCertificate)
	router.GET("/quiz", handler.GetQuiz)
	authed.POST("/authed/submit-quiz", handler.SubmitQuiz)
	authed.POST("/authed/video-completed", handler.VideoCompleted)
	authed.POST("/authed/grammar-book-completed", handler.GrammarBookCompleted)
	authed.POST("/authed/story-book-completed", handler.StoryBookCompleted)
	authed.GET("/authed/get-certificate", handler.GetCertificate)

	return &learningFixture{router: router, progress: progressStore, users: userStore, userID: userID}
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func allCorrect() map[string]string {
	return map[string]string{"q1": "r4", "q2": "r1", "q3": "r1", "q4": "r2", "q5": "r2"}
}

func TestSubmitQuizAnonymous(t *testing.T) {
	f := newLearningFixture(t)

	w := postJSON(t, f.router, "/submit-quiz", allCorrect())
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Points    int  `json:"points"`
		Persisted bool `json:"persisted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 5, response.Points)
	assert.False(t, response.Persisted)

	// 匿名提交不落库
	progress, err := f.progress.GetByUserID(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Nil(t, progress)
}

func TestSubmitQuizLoggedIn(t *testing.T) {
	f := newLearningFixture(t)

	answers := allCorrect()
	answers["q4"] = "r1"
	w := postJSON(t, f.router, "/authed/submit-quiz", answers)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Points    int  `json:"points"`
		Persisted bool `json:"persisted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 4, response.Points)
	assert.True(t, response.Persisted)

	progress, err := f.progress.GetByUserID(context.Background(), f.userID)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, 4, progress.QuizScore)
}

func TestSubmitQuizMissingAnswer(t *testing.T) {
	f := newLearningFixture(t)

	answers := allCorrect()
	delete(answers, "q2")
	w := postJSON(t, f.router, "/submit-quiz", answers)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, f.router, "/authed/submit-quiz", answers)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkCompletedEndpoints(t *testing.T) {
	f := newLearningFixture(t)

	w := postJSON(t, f.router, "/authed/video-completed", nil)
	require.Equal(t, http.StatusOK, w.Code)

	progress, err := f.progress.GetByUserID(context.Background(), f.userID)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.True(t, progress.IsVideoCompleted)
	assert.False(t, progress.IsGrammarBookCompleted)
}

func TestGetCertificateAnonymous(t *testing.T) {
	f := newLearningFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/get-certificate", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"eligible":false`)
}

func TestGetCertificateFlow(t *testing.T) {
	f := newLearningFixture(t)

	// 未完成时不签发
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/authed/get-certificate", nil)
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"eligible":false`)

	postJSON(t, f.router, "/authed/submit-quiz", allCorrect())
	postJSON(t, f.router, "/authed/video-completed", nil)
	postJSON(t, f.router, "/authed/grammar-book-completed", nil)
	postJSON(t, f.router, "/authed/story-book-completed", nil)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/authed/get-certificate", nil)
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Eligible    bool   `json:"eligible"`
		Certificate string `json:"certificate"`
		QuizScore   int    `json:"quiz_score"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Eligible)
	assert.NotEmpty(t, response.Certificate)
	assert.Equal(t, 5, response.QuizScore)
}
