package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/tradingassistant/internal/auth/application"
	"github.com/wyfcoding/tradingassistant/internal/auth/domain"
	"github.com/wyfcoding/tradingassistant/pkg/response"
)

// CSRFHeader 刷新请求必须携带的双提交请求头
const CSRFHeader = "X-CSRF-Token"

// Handler 认证 HTTP 处理器
type Handler struct {
	cmd       *application.AuthCommandService
	query     *application.AuthQueryService
	cookies   *CookieManager
	loginMids []gin.HandlerFunc
}

// NewHandler 创建认证处理器，loginMids 挂在登录路由上（如限流）
func NewHandler(cmd *application.AuthCommandService, query *application.AuthQueryService, cookies *CookieManager, loginMids ...gin.HandlerFunc) *Handler {
	return &Handler{cmd: cmd, query: query, cookies: cookies, loginMids: loginMids}
}

// RegisterRoutes 注册 /auth 与 /admin 路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	auth.POST("/login", append(h.loginMids, h.Login)...)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)
	auth.GET("/me", RequireUser(h.query), h.Me)

	admin := r.Group("/admin", RequireUser(h.query), RequireAdmin())
	admin.POST("/users", h.CreateUser)
	admin.PUT("/users/:id/enabled", h.SetUserEnabled)
}

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type meResponse struct {
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	IsBootstrapAdmin bool   `json:"is_bootstrap_admin"`
}

type userResponse struct {
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	IsEnabled        bool   `json:"is_enabled"`
	IsBootstrapAdmin bool   `json:"is_bootstrap_admin"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		UserID:           u.ID,
		Email:            u.Email,
		IsEnabled:        u.IsEnabled,
		IsBootstrapAdmin: u.IsBootstrapAdmin,
	}
}

func (h *Handler) writeTokens(c *gin.Context, pair *application.TokenPair) {
	h.cookies.Set(c, pair.RefreshToken, pair.CSRFToken)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   pair.ExpiresIn,
	})
}

// Login 处理表单登录（OAuth2 password 形式，username 为邮箱）
func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		response.BadRequest(c, err)
		return
	}
	pair, err := h.cmd.Login(c.Request.Context(), application.LoginCommand{
		Email:    form.Username,
		Password: form.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.writeTokens(c, pair)
}

// Refresh 轮换刷新令牌并签发新的访问令牌
func (h *Handler) Refresh(c *gin.Context) {
	pair, err := h.cmd.Refresh(c.Request.Context(), application.RefreshCommand{
		RefreshToken: h.cookies.RefreshToken(c),
		CSRFCookie:   h.cookies.CSRFToken(c),
		CSRFHeader:   c.GetHeader(CSRFHeader),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.writeTokens(c, pair)
}

// Logout 清除 Cookie 并吊销会话
func (h *Handler) Logout(c *gin.Context) {
	h.cookies.Clear(c)
	err := h.cmd.Logout(c.Request.Context(), application.LogoutCommand{
		RefreshToken: h.cookies.RefreshToken(c),
		AccessToken:  BearerToken(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Me 返回当前用户
func (h *Handler) Me(c *gin.Context) {
	user := CurrentUser(c)
	c.JSON(http.StatusOK, meResponse{
		UserID:           user.ID,
		Email:            user.Email,
		IsBootstrapAdmin: user.IsBootstrapAdmin,
	})
}

type createUserRequest struct {
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required,min=8"`
	IsBootstrapAdmin bool   `json:"is_bootstrap_admin"`
}

// CreateUser 管理员创建用户
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	user, err := h.cmd.CreateUser(c.Request.Context(), application.CreateUserCommand{
		Email:            req.Email,
		Password:         req.Password,
		IsBootstrapAdmin: req.IsBootstrapAdmin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(user))
}

type setEnabledRequest struct {
	IsEnabled *bool `json:"is_enabled" binding:"required"`
}

// SetUserEnabled 管理员启用或禁用用户
func (h *Handler) SetUserEnabled(c *gin.Context) {
	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	user, err := h.cmd.SetUserEnabled(c.Request.Context(), CurrentUser(c).ID, c.Param("id"), *req.IsEnabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}
