// Package memory 提供认证仓储的内存实现，用于 memory 驱动与测试
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/tradingassistant/internal/auth/domain"
)

type userRepository struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

// NewUserRepository 创建内存用户仓储
func NewUserRepository() domain.UserRepository {
	return &userRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *userRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return domain.ErrEmailTaken
	}
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *userRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; ok {
		r.byID[user.ID] = *user
	}
	return nil
}

func (r *userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	u := r.byID[id]
	return &u, nil
}

type sessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

// NewSessionRepository 创建内存会话仓储
func NewSessionRepository() domain.SessionRepository {
	return &sessionRepository{sessions: make(map[string]domain.Session)}
}

func (r *sessionRepository) Save(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.TokenHash] = *session
	return nil
}

func (r *sessionRepository) Get(_ context.Context, tokenHash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *sessionRepository) MarkRotated(_ context.Context, tokenHash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenHash]
	if !ok || s.RotatedAt != nil {
		return false, nil
	}
	s.RotatedAt = &at
	r.sessions[tokenHash] = s
	return true, nil
}

func (r *sessionRepository) DeleteFamily(_ context.Context, familyID string) error {
	r.deleteWhere(func(s domain.Session) bool { return s.FamilyID == familyID })
	return nil
}

func (r *sessionRepository) DeleteByUserID(_ context.Context, userID string) error {
	r.deleteWhere(func(s domain.Session) bool { return s.UserID == userID })
	return nil
}

func (r *sessionRepository) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(s domain.Session) bool { return s.IsExpired(now) }), nil
}

func (r *sessionRepository) deleteWhere(match func(domain.Session) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, s := range r.sessions {
		if match(s) {
			delete(r.sessions, k)
			n++
		}
	}
	return n
}
