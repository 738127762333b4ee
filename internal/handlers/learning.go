package handlers

import (
	"net/http"

	"github.com/english-site/english-site/internal/middleware"
	"github.com/english-site/english-site/internal/models"
	"github.com/english-site/english-site/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LearningHandler struct {
	progressService    *services.ProgressService
	certificateService *services.CertificateService
	userService        *services.UserService
}

func NewLearningHandler(
	progressService *services.ProgressService,
	certificateService *services.CertificateService,
	userService *services.UserService,
) *LearningHandler {
	return &LearningHandler{
		progressService:    progressService,
		certificateService: certificateService,
		userService:        userService,
	}
}

// 三个学习模块的内容描述，页面渲染不在服务端职责内
func (h *LearningHandler) GetVideo(c *gin.Context) {
	h.contentDescriptor(c, models.ModuleVideo, "Watch the course video")
}

func (h *LearningHandler) GetGrammarBook(c *gin.Context) {
	h.contentDescriptor(c, models.ModuleGrammarBook, "Read the grammar book")
}

func (h *LearningHandler) GetStoryBook(c *gin.Context) {
	h.contentDescriptor(c, models.ModuleStoryBook, "Read the story book")
}

func (h *LearningHandler) GetQuiz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"module":    "quiz",
		"questions": []string{"q1", "q2", "q3", "q4", "q5"},
	})
}

func (h *LearningHandler) contentDescriptor(c *gin.Context, module models.LearningModule, title string) {
	response := gin.H{
		"module": string(module),
		"title":  title,
	}

	// 登录用户附带当前进度
	if userID, err := uuid.Parse(middleware.GetUserID(c)); err == nil {
		if progress, err := h.progressService.GetProgress(c.Request.Context(), userID); err == nil {
			response["progress"] = progress
		}
	}

	c.JSON(http.StatusOK, response)
}

// SubmitQuiz 匿名提交只算分不落库；登录用户的分数覆盖写入进度行
func (h *LearningHandler) SubmitQuiz(c *gin.Context) {
	var answers map[string]string
	if err := c.ShouldBindJSON(&answers); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		points, err := services.ScoreQuiz(answers)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"points": points, "persisted": false})
		return
	}

	points, err := h.progressService.RecordQuizScore(c.Request.Context(), userID, answers)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"points": points, "persisted": true})
}

func (h *LearningHandler) GrammarBookCompleted(c *gin.Context) {
	h.markCompleted(c, models.ModuleGrammarBook)
}

func (h *LearningHandler) StoryBookCompleted(c *gin.Context) {
	h.markCompleted(c, models.ModuleStoryBook)
}

func (h *LearningHandler) VideoCompleted(c *gin.Context) {
	h.markCompleted(c, models.ModuleVideo)
}

func (h *LearningHandler) markCompleted(c *gin.Context, module models.LearningModule) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	progress, err := h.progressService.MarkModuleCompleted(c.Request.Context(), actorID, module)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": progress})
}

// GetCertificate 三个模块全部完成才签发证书
func (h *LearningHandler) GetCertificate(c *gin.Context) {
	userID, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"eligible": false})
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	progress, err := h.progressService.GetProgress(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	if !h.certificateService.Eligible(progress) {
		c.JSON(http.StatusOK, gin.H{
			"eligible": false,
			"progress": progress,
		})
		return
	}

	certificate, err := h.certificateService.Issue(user, progress)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"eligible":    true,
		"certificate": certificate,
		"user":        user,
		"quiz_score":  progress.QuizScore,
	})
}
