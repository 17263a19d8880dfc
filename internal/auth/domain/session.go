package domain

import (
	"context"
	"time"
)

// Session 刷新令牌会话，只保存令牌摘要。
// 每次刷新都会把旧会话标记为已轮换并在同一 FamilyID 下创建新会话；
// 已轮换的会话再次出现说明令牌被盗用，整个家族随之吊销。
type Session struct {
	TokenHash string     `json:"token_hash"`
	FamilyID  string     `json:"family_id"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s *Session) IsRotated() bool {
	return s.RotatedAt != nil
}

// SessionRepository 会话仓储接口，查询不到时返回 nil, nil
type SessionRepository interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, tokenHash string) (*Session, error)
	// MarkRotated 仅当会话尚未轮换时生效，返回是否由本次调用完成轮换
	MarkRotated(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	DeleteFamily(ctx context.Context, familyID string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// ExpiredSessionPurger 由无法依赖 TTL 自动过期的存储实现
type ExpiredSessionPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
