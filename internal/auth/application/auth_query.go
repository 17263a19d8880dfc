package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/tradingassistant/internal/auth/domain"
)

// AuthQueryService 认证查询服务
type AuthQueryService struct {
	users  domain.UserRepository
	tokens *TokenIssuer
}

// NewAuthQueryService 创建认证查询服务实例
func NewAuthQueryService(users domain.UserRepository, tokens *TokenIssuer) *AuthQueryService {
	return &AuthQueryService{users: users, tokens: tokens}
}

// Authenticate 将访问令牌解析为启用状态的用户
func (s *AuthQueryService) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	if accessToken == "" {
		return nil, domain.ErrNotAuthenticated
	}
	userID, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsEnabled {
		return nil, domain.ErrUserDisabled
	}
	return user, nil
}

// GetUser 根据 ID 获取用户
func (s *AuthQueryService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}
