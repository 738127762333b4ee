package handlers

import (
	"net/http"

	"github.com/english-site/english-site/internal/services"
	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messageService *services.MessageService
}

func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) CreateMessage(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.messageService.Post(c.Request.Context(), actorID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Message created successfully",
		"data":    message,
	})
}

func (h *MessageHandler) GetMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	message, err := h.messageService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	likes, err := h.messageService.GetLikeCount(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       message,
		"like_count": likes,
	})
}

func (h *MessageHandler) GetUserMessages(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	offset, limit := pagination(c)

	messages, err := h.messageService.GetUserMessages(c.Request.Context(), id, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.messageService.Delete(c.Request.Context(), actorID, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}

func (h *MessageHandler) ToggleLike(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	liked, err := h.messageService.ToggleLike(c.Request.Context(), actorID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"liked": liked})
}
