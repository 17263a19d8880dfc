package middleware

import "github.com/gin-gonic/gin"

// UserIDKey gin.Context 中已认证用户 ID 的键
const UserIDKey = "user_id"

// SetUserID 记录已认证用户 ID，供其他上下文的处理器读取
func SetUserID(c *gin.Context, userID string) {
	c.Set(UserIDKey, userID)
}

// UserID 返回已认证用户 ID，未认证时为空
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
