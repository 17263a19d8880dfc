package domain

import "time"

// TopicAuth 认证事件 Kafka 主题
const TopicAuth = "tradingassistant.auth"

const (
	UserCreatedEventType          = "auth.user_created"
	UserLoggedInEventType         = "auth.user_logged_in"
	UserEnabledChangedEventType   = "auth.user_enabled_changed"
	UserLoggedOutEventType        = "auth.user_logged_out"
	RefreshReuseDetectedEventType = "auth.refresh_reuse_detected"
)

// UserCreatedEvent 用户创建事件
type UserCreatedEvent struct {
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	IsBootstrapAdmin bool      `json:"is_bootstrap_admin"`
	Timestamp        time.Time `json:"timestamp"`
}

// UserLoggedInEvent 用户登录事件
type UserLoggedInEvent struct {
	UserID    string    `json:"user_id"`
	FamilyID  string    `json:"family_id"`
	Timestamp time.Time `json:"timestamp"`
}

// UserEnabledChangedEvent 用户启用状态变更事件
type UserEnabledChangedEvent struct {
	UserID    string    `json:"user_id"`
	IsEnabled bool      `json:"is_enabled"`
	ChangedBy string    `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
}

// UserLoggedOutEvent 用户登出事件，UserID 可能为空
type UserLoggedOutEvent struct {
	UserID    string    `json:"user_id,omitempty"`
	FamilyID  string    `json:"family_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RefreshReuseDetectedEvent 已轮换的刷新令牌被再次使用
type RefreshReuseDetectedEvent struct {
	UserID    string    `json:"user_id"`
	FamilyID  string    `json:"family_id"`
	Timestamp time.Time `json:"timestamp"`
}
