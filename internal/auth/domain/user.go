package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User 登录账户，只允许禁用不允许物理删除
type User struct {
	ID               string     `json:"user_id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	IsEnabled        bool       `json:"is_enabled"`
	IsBootstrapAdmin bool       `json:"is_bootstrap_admin"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

// NewUser 创建启用状态的用户
func NewUser(email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		IsEnabled:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeEmail 邮箱统一为小写并去除空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RecordLogin 记录登录时间
func (u *User) RecordLogin(at time.Time) {
	u.LastLoginAt = &at
	u.UpdatedAt = at
}

// UserRepository 用户仓储接口，查询不到时返回 nil, nil
type UserRepository interface {
	// Create 邮箱重复时返回 ErrEmailTaken
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
