package postgres

import (
	"time"

	"github.com/wyfcoding/tradingassistant/internal/auth/domain"
)

// UserModel 用户表映射
type UserModel struct {
	ID               string     `gorm:"column:user_id;type:varchar(36);primaryKey"`
	Email            string     `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	PasswordHash     string     `gorm:"column:password_hash;type:varchar(255);not null"`
	IsEnabled        bool       `gorm:"column:is_enabled;not null"`
	IsBootstrapAdmin bool       `gorm:"column:is_bootstrap_admin;not null"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at"`
}

func (UserModel) TableName() string {
	return "users"
}

// SessionModel 刷新令牌会话表映射
type SessionModel struct {
	TokenHash string     `gorm:"column:token_hash;type:char(64);primaryKey"`
	FamilyID  string     `gorm:"column:family_id;type:varchar(36);index;not null"`
	UserID    string     `gorm:"column:user_id;type:varchar(36);index;not null"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	ExpiresAt time.Time  `gorm:"column:expires_at;index;not null"`
	RotatedAt *time.Time `gorm:"column:rotated_at"`

	User UserModel `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

func (SessionModel) TableName() string {
	return "auth_sessions"
}

func toUserModel(u *domain.User) *UserModel {
	return &UserModel{
		ID:               u.ID,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		IsEnabled:        u.IsEnabled,
		IsBootstrapAdmin: u.IsBootstrapAdmin,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
		LastLoginAt:      u.LastLoginAt,
	}
}

func toUser(m *UserModel) *domain.User {
	return &domain.User{
		ID:               m.ID,
		Email:            m.Email,
		PasswordHash:     m.PasswordHash,
		IsEnabled:        m.IsEnabled,
		IsBootstrapAdmin: m.IsBootstrapAdmin,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		LastLoginAt:      m.LastLoginAt,
	}
}

func toSessionModel(s *domain.Session) *SessionModel {
	return &SessionModel{
		TokenHash: s.TokenHash,
		FamilyID:  s.FamilyID,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		RotatedAt: s.RotatedAt,
	}
}

func toSession(m *SessionModel) *domain.Session {
	return &domain.Session{
		TokenHash: m.TokenHash,
		FamilyID:  m.FamilyID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
		RotatedAt: m.RotatedAt,
	}
}
