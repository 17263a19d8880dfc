package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/tradingassistant/internal/auth/application"
	"github.com/wyfcoding/tradingassistant/internal/auth/domain"
	"github.com/wyfcoding/tradingassistant/pkg/middleware"
	"github.com/wyfcoding/tradingassistant/pkg/response"
)

const currentUserKey = "current_user"

// BearerToken 提取 Authorization: Bearer 令牌
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireUser 校验访问令牌并把用户写入上下文
func RequireUser(query *application.AuthQueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := query.Authenticate(c.Request.Context(), BearerToken(c))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, err)
			return
		}
		c.Set(currentUserKey, user)
		middleware.SetUserID(c, user.ID)
		c.Next()
	}
}

// RequireAdmin 只允许初始管理员通过，需放在 RequireUser 之后
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsBootstrapAdmin {
			response.Error(c, domain.ErrInsufficientPrivileges)
			return
		}
		c.Next()
	}
}

// CurrentUser 返回 RequireUser 写入的用户
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}
