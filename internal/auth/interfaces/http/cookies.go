package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/tradingassistant/pkg/config"
)

// CookieManager 写入与清除刷新令牌及 CSRF Cookie
type CookieManager struct {
	cfg      config.CookieConfig
	maxAge   int
	sameSite http.SameSite
}

// NewCookieManager 创建 Cookie 管理器，ttl 为刷新令牌有效期
func NewCookieManager(cfg config.CookieConfig, ttl time.Duration) *CookieManager {
	return &CookieManager{
		cfg:      cfg,
		maxAge:   int(ttl / time.Second),
		sameSite: parseSameSite(cfg.SameSite),
	}
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Set 写入刷新令牌（HttpOnly）与 CSRF 令牌（前端可读）
func (m *CookieManager) Set(c *gin.Context, refreshToken, csrfToken string) {
	http.SetCookie(c.Writer, m.cookie(m.cfg.RefreshName, refreshToken, true, m.maxAge))
	http.SetCookie(c.Writer, m.cookie(m.cfg.CSRFName, csrfToken, false, m.maxAge))
}

// Clear 以相同路径清除两个 Cookie
func (m *CookieManager) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, m.cookie(m.cfg.RefreshName, "", true, -1))
	http.SetCookie(c.Writer, m.cookie(m.cfg.CSRFName, "", false, -1))
}

// RefreshToken 读取刷新令牌 Cookie
func (m *CookieManager) RefreshToken(c *gin.Context) string {
	v, _ := c.Cookie(m.cfg.RefreshName)
	return v
}

// CSRFToken 读取 CSRF Cookie
func (m *CookieManager) CSRFToken(c *gin.Context) string {
	v, _ := c.Cookie(m.cfg.CSRFName)
	return v
}

func (m *CookieManager) cookie(name, value string, httpOnly bool, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.cfg.Path,
		Domain:   m.cfg.Domain,
		MaxAge:   maxAge,
		Secure:   m.cfg.Secure,
		HttpOnly: httpOnly,
		SameSite: m.sameSite,
	}
}
