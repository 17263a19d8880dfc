package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/tradingassistant/internal/auth/domain"
	"github.com/wyfcoding/tradingassistant/pkg/logger"
	"github.com/wyfcoding/tradingassistant/pkg/metrics"
	"github.com/wyfcoding/tradingassistant/pkg/mq"
	"github.com/wyfcoding/tradingassistant/pkg/security"
)

// LoginCommand 登录命令
type LoginCommand struct {
	Email    string
	Password string
}

// RefreshCommand 刷新命令，CSRF 值分别来自 Cookie 与请求头
type RefreshCommand struct {
	RefreshToken string
	CSRFCookie   string
	CSRFHeader   string
}

// LogoutCommand 登出命令，两个令牌都可以为空
type LogoutCommand struct {
	RefreshToken string
	AccessToken  string
}

// CreateUserCommand 管理员创建用户命令
type CreateUserCommand struct {
	Email            string
	Password         string
	IsBootstrapAdmin bool
}

// TokenPair 登录或刷新的结果
type TokenPair struct {
	AccessToken  string
	ExpiresIn    int
	RefreshToken string
	CSRFToken    string
	UserID       string
}

// AuthCommandService 认证命令服务
type AuthCommandService struct {
	users      domain.UserRepository
	sessions   domain.SessionRepository
	tokens     *TokenIssuer
	hasher     *security.PasswordHasher
	refreshTTL time.Duration
	events     *mq.Emitter
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewAuthCommandService 创建认证命令服务实例
func NewAuthCommandService(
	users domain.UserRepository,
	sessions domain.SessionRepository,
	tokens *TokenIssuer,
	hasher *security.PasswordHasher,
	refreshTTL time.Duration,
	events *mq.Emitter,
	m *metrics.Metrics,
) *AuthCommandService {
	return &AuthCommandService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		hasher:     hasher,
		refreshTTL: refreshTTL,
		events:     events,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login 处理用户登录，成功后开启新的会话家族
func (s *AuthCommandService) Login(ctx context.Context, cmd LoginCommand) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(cmd.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		// 未知邮箱同样执行一次 bcrypt，响应耗时不暴露账户是否存在
		s.hasher.VerifyDummy(cmd.Password)
		s.metrics.AuthEvent(metrics.EventLoginFailure)
		return nil, domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(user.PasswordHash, cmd.Password) {
		s.metrics.AuthEvent(metrics.EventLoginFailure)
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsEnabled {
		s.metrics.AuthEvent(metrics.EventLoginFailure)
		return nil, domain.ErrInactiveUser
	}

	now := s.now()
	user.RecordLogin(now)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	familyID := uuid.NewString()
	pair, err := s.openSession(ctx, user.ID, familyID)
	if err != nil {
		return nil, err
	}

	s.metrics.AuthEvent(metrics.EventLoginSuccess)
	s.events.Emit(ctx, domain.UserLoggedInEventType, user.ID, domain.UserLoggedInEvent{
		UserID:    user.ID,
		FamilyID:  familyID,
		Timestamp: now,
	})
	logger.Info(ctx, "User logged in", "user_id", user.ID)
	return pair, nil
}

// Refresh 校验双提交 CSRF 后轮换刷新令牌
func (s *AuthCommandService) Refresh(ctx context.Context, cmd RefreshCommand) (*TokenPair, error) {
	if cmd.CSRFCookie == "" || cmd.CSRFHeader == "" || !security.Equal(cmd.CSRFCookie, cmd.CSRFHeader) {
		return nil, domain.ErrCSRFInvalid
	}
	if cmd.RefreshToken == "" {
		return nil, domain.ErrRefreshMissing
	}

	hash := security.HashToken(cmd.RefreshToken)
	session, err := s.sessions.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	now := s.now()
	if session == nil || session.IsExpired(now) {
		return nil, domain.ErrRefreshInvalid
	}
	if session.IsRotated() {
		return nil, s.revokeReusedFamily(ctx, session)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || !user.IsEnabled {
		if err := s.sessions.DeleteFamily(ctx, session.FamilyID); err != nil {
			logger.Error(ctx, "Failed to revoke session family", "family_id", session.FamilyID, "error", err)
		}
		return nil, domain.ErrRefreshInvalid
	}

	rotated, err := s.sessions.MarkRotated(ctx, hash, now)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}
	if !rotated {
		// 并发请求已先完成轮换
		return nil, s.revokeReusedFamily(ctx, session)
	}

	pair, err := s.openSession(ctx, user.ID, session.FamilyID)
	if err != nil {
		return nil, err
	}
	s.metrics.AuthEvent(metrics.EventRefresh)
	return pair, nil
}

func (s *AuthCommandService) revokeReusedFamily(ctx context.Context, session *domain.Session) error {
	logger.Warn(ctx, "Refresh token reuse detected", "user_id", session.UserID, "family_id", session.FamilyID)
	if err := s.sessions.DeleteFamily(ctx, session.FamilyID); err != nil {
		return fmt.Errorf("failed to revoke session family: %w", err)
	}
	s.metrics.AuthEvent(metrics.EventRefreshReuse)
	s.events.Emit(ctx, domain.RefreshReuseDetectedEventType, session.UserID, domain.RefreshReuseDetectedEvent{
		UserID:    session.UserID,
		FamilyID:  session.FamilyID,
		Timestamp: s.now(),
	})
	return domain.ErrRefreshReused
}

// Logout 吊销刷新令牌所在家族；携带有效访问令牌时吊销该用户全部会话
func (s *AuthCommandService) Logout(ctx context.Context, cmd LogoutCommand) error {
	var event domain.UserLoggedOutEvent
	if cmd.RefreshToken != "" {
		session, err := s.sessions.Get(ctx, security.HashToken(cmd.RefreshToken))
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
		if session != nil {
			if err := s.sessions.DeleteFamily(ctx, session.FamilyID); err != nil {
				return fmt.Errorf("failed to revoke session family: %w", err)
			}
			event.UserID = session.UserID
			event.FamilyID = session.FamilyID
		}
	}
	if cmd.AccessToken != "" {
		if userID, err := s.tokens.Parse(cmd.AccessToken); err == nil {
			if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
				return fmt.Errorf("failed to revoke user sessions: %w", err)
			}
			event.UserID = userID
		}
	}

	s.metrics.AuthEvent(metrics.EventLogout)
	if event.UserID != "" {
		event.Timestamp = s.now()
		s.events.Emit(ctx, domain.UserLoggedOutEventType, event.UserID, event)
	}
	return nil
}

// CreateUser 创建用户
func (s *AuthCommandService) CreateUser(ctx context.Context, cmd CreateUserCommand) (*domain.User, error) {
	email := domain.NormalizeEmail(cmd.Email)
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, err
	}
	user := domain.NewUser(email, hash)
	user.IsBootstrapAdmin = cmd.IsBootstrapAdmin
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		logger.Error(ctx, "Failed to create user", "email", email, "error", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.events.Emit(ctx, domain.UserCreatedEventType, user.ID, domain.UserCreatedEvent{
		UserID:           user.ID,
		Email:            user.Email,
		IsBootstrapAdmin: user.IsBootstrapAdmin,
		Timestamp:        user.CreatedAt,
	})
	logger.Info(ctx, "User created", "user_id", user.ID)
	return user, nil
}

// SetUserEnabled 启用或禁用用户，禁用时吊销其全部会话
func (s *AuthCommandService) SetUserEnabled(ctx context.Context, actorID, userID string, enabled bool) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	if actorID == userID && !enabled {
		return nil, domain.ErrCannotDisableSelf
	}

	user.IsEnabled = enabled
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if !enabled {
		if err := s.sessions.DeleteByUserID(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to revoke user sessions: %w", err)
		}
	}

	s.events.Emit(ctx, domain.UserEnabledChangedEventType, user.ID, domain.UserEnabledChangedEvent{
		UserID:    user.ID,
		IsEnabled: enabled,
		ChangedBy: actorID,
		Timestamp: user.UpdatedAt,
	})
	return user, nil
}

// EnsureBootstrapAdmin 确保初始管理员存在，已存在时只补齐管理员标记不覆盖密码
func (s *AuthCommandService) EnsureBootstrapAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	existing, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if existing == nil {
		return s.CreateUser(ctx, CreateUserCommand{Email: email, Password: password, IsBootstrapAdmin: true})
	}
	if existing.IsBootstrapAdmin {
		return existing, nil
	}
	existing.IsBootstrapAdmin = true
	existing.UpdatedAt = s.now()
	if err := s.users.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to promote bootstrap admin: %w", err)
	}
	logger.Info(ctx, "Promoted existing user to bootstrap admin", "user_id", existing.ID)
	return existing, nil
}

// openSession 生成刷新令牌与 CSRF 令牌，保存会话并签发访问令牌
func (s *AuthCommandService) openSession(ctx context.Context, userID, familyID string) (*TokenPair, error) {
	refresh, err := security.RandomToken()
	if err != nil {
		return nil, err
	}
	csrf, err := security.RandomToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &domain.Session{
		TokenHash: security.HashToken(refresh),
		FamilyID:  familyID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	access, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
		RefreshToken: refresh,
		CSRFToken:    csrf,
		UserID:       userID,
	}, nil
}
