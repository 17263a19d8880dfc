// Package response 统一 HTTP 错误响应格式 {"error": "..."}
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/tradingassistant/pkg/apperror"
	"github.com/wyfcoding/tradingassistant/pkg/logger"
)

// Error 按错误分类写出响应并中止后续处理；未分类错误记录日志并返回 500
func Error(c *gin.Context, err error) {
	if e, ok := apperror.As(err); ok {
		if e.Kind == apperror.KindInternal {
			logger.Error(c.Request.Context(), "Request failed", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.AbortWithStatusJSON(e.Kind.Status(), gin.H{"error": e.Message})
		return
	}
	logger.Error(c.Request.Context(), "Request failed", "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// BadRequest 写出参数错误
func BadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
