package handlers

import (
	"net/http"

	"github.com/english-site/english-site/internal/middleware"
	"github.com/english-site/english-site/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserHandler struct {
	userService     *services.UserService
	sessionService  *services.SessionService
	messageService  *services.MessageService
	feedService     *services.FeedService
	progressService *services.ProgressService
}

func NewUserHandler(
	userService *services.UserService,
	sessionService *services.SessionService,
	messageService *services.MessageService,
	feedService *services.FeedService,
	progressService *services.ProgressService,
) *UserHandler {
	return &UserHandler{
		userService:     userService,
		sessionService:  sessionService,
		messageService:  messageService,
		feedService:     feedService,
		progressService: progressService,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *UserHandler) Signup(c *gin.Context) {
	var req services.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Signup(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	// 注册即登录
	token, err := h.sessionService.Login(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
	})
}

func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	if user == nil {
		// 用户名不存在和密码错误给同一个提示
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials."})
		return
	}

	token, err := h.sessionService.Login(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Hello, " + user.Username + "!",
		"token":   token,
		"user":    user,
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	token := middleware.GetSessionToken(c)
	if err := h.sessionService.Logout(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logout successful"})
}

// Home 登录用户返回关注流，匿名用户返回着陆信息
func (h *UserHandler) Home(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome! Sign up or log in to start learning."})
		return
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		respondError(c, services.ErrUnauthorized)
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	messages, err := h.feedService.HomeFeed(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":     user,
		"messages": messages,
	})
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	query := c.Query("q")
	offset, limit := pagination(c)

	users, err := h.userService.Search(c.Request.Context(), query, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "query": query})
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	offset, limit := pagination(c)
	messages, err := h.messageService.GetUserMessages(c.Request.Context(), id, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.userService.GetProfileStats(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	progress, err := h.progressService.GetProgress(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":     user,
		"messages": messages,
		"stats":    stats,
		"progress": progress,
	})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), actorID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

func (h *UserHandler) DeleteAccount(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	// 先吊销所有会话再删数据
	if err := h.sessionService.DestroyAll(c.Request.Context(), actorID); err != nil {
		respondError(c, err)
		return
	}

	if err := h.userService.Delete(c.Request.Context(), actorID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}

func (h *UserHandler) Follow(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	targetID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.userService.Follow(c.Request.Context(), actorID, targetID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Followed successfully"})
}

func (h *UserHandler) Unfollow(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	targetID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.userService.Unfollow(c.Request.Context(), actorID, targetID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unfollowed successfully"})
}

func (h *UserHandler) GetFollowers(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	offset, limit := pagination(c)

	followers, err := h.userService.GetFollowers(c.Request.Context(), id, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"followers": followers})
}

func (h *UserHandler) GetFollowing(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	offset, limit := pagination(c)

	following, err := h.userService.GetFollowing(c.Request.Context(), id, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"following": following})
}

func (h *UserHandler) GetLikes(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	offset, limit := pagination(c)

	likes, err := h.messageService.GetLikedMessages(c.Request.Context(), id, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"likes": likes})
}

// currentUserID 变更类handler都走这里取已认证身份
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access unauthorized."})
		return uuid.Nil, false
	}
	return id, true
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (int, int) {
	offset := 0
	limit := 20
	query := struct {
		Offset int `form:"offset"`
		Limit  int `form:"limit"`
	}{}
	if err := c.ShouldBindQuery(&query); err == nil {
		offset = query.Offset
		limit = query.Limit
		if limit > 100 {
			limit = 100
		}
		if limit < 1 {
			limit = 20
		}
		if offset < 0 {
			offset = 0
		}
	}
	return offset, limit
}
