package handlers

import (
	"errors"
	"net/http"

	"github.com/english-site/english-site/internal/services"
	"github.com/gin-gonic/gin"
)

// respondError 业务错误到HTTP状态码的统一映射，
// 未归类的错误一律按500处理，不把内部细节泄露给客户端
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access unauthorized."})
	case errors.Is(err, services.ErrSelfLike):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrEdgeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrDuplicateUser), errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
