package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wyfcoding/tradingassistant/internal/auth/domain"
	"github.com/wyfcoding/tradingassistant/internal/auth/infrastructure/persistence/memory"
	"github.com/wyfcoding/tradingassistant/pkg/metrics"
	"github.com/wyfcoding/tradingassistant/pkg/mq"
	"github.com/wyfcoding/tradingassistant/pkg/security"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	cmd       *AuthCommandService
	query     *AuthQueryService
	users     domain.UserRepository
	sessions  domain.SessionRepository
	tokens    *TokenIssuer
	publisher *mq.MemoryPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := NewTokenIssuer("test-secret", "HS256", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	users := memory.NewUserRepository()
	sessions := memory.NewSessionRepository()
	pub := mq.NewMemoryPublisher()
	m := metrics.New("test")
	return &fixture{
		cmd: NewAuthCommandService(users, sessions, tokens, security.NewPasswordHasher(bcrypt.MinCost),
			7*24*time.Hour, mq.NewEmitter(pub, domain.TopicAuth, m), m),
		query:     NewAuthQueryService(users, tokens),
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		publisher: pub,
	}
}

func (f *fixture) createUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	u, err := f.cmd.CreateUser(context.Background(), CreateUserCommand{Email: email, Password: password})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestLoginIssuesTokenForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "Trader@Example.com", "password123")

	pair, err := f.cmd.Login(ctx, LoginCommand{Email: "trader@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	sub, err := f.tokens.Parse(pair.AccessToken)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sub != user.ID {
		t.Errorf("Expected subject %s, got %s", user.ID, sub)
	}
	if pair.ExpiresIn != 900 {
		t.Errorf("Expected expires_in 900, got %d", pair.ExpiresIn)
	}
	if pair.RefreshToken == "" || pair.CSRFToken == "" || pair.RefreshToken == pair.CSRFToken {
		t.Errorf("refresh and csrf tokens must be independent non-empty values")
	}

	stored, _ := f.sessions.Get(ctx, security.HashToken(pair.RefreshToken))
	if stored == nil || stored.UserID != user.ID {
		t.Fatalf("session not persisted: %+v", stored)
	}
	reloaded, _ := f.users.GetByID(ctx, user.ID)
	if reloaded.LastLoginAt == nil {
		t.Errorf("last_login_at should be recorded")
	}
}

func TestLoginUnknownEmailPaysBcryptCost(t *testing.T) {
	tokens, _ := NewTokenIssuer("test-secret", "HS256", 15*time.Minute)
	cmd := NewAuthCommandService(memory.NewUserRepository(), memory.NewSessionRepository(), tokens,
		security.NewPasswordHasher(10), 7*24*time.Hour, nil, nil)
	ctx := context.Background()
	if _, err := cmd.CreateUser(ctx, CreateUserCommand{Email: "known@example.com", Password: "password123"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	login := func(email string) time.Duration {
		start := time.Now()
		if _, err := cmd.Login(ctx, LoginCommand{Email: email, Password: "wrong"}); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("Expected invalid credentials for %s, got %v", email, err)
		}
		return time.Since(start)
	}

	login("warmup@example.com")
	known := login("known@example.com")
	unknown := login("unknown@example.com")
	if unknown < known/4 {
		t.Errorf("unknown email answered in %v, wrong password in %v; timing reveals registered emails", unknown, known)
	}
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "a@example.com", "password123")

	if _, err := f.cmd.Login(ctx, LoginCommand{Email: "a@example.com", Password: "nope"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("Expected invalid credentials, got %v", err)
	}
	if _, err := f.cmd.Login(ctx, LoginCommand{Email: "missing@example.com", Password: "password123"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("Expected invalid credentials for unknown user, got %v", err)
	}

	if _, err := f.cmd.SetUserEnabled(ctx, "admin", user.ID, false); err != nil {
		t.Fatalf("SetUserEnabled: %v", err)
	}
	if _, err := f.cmd.Login(ctx, LoginCommand{Email: "a@example.com", Password: "password123"}); !errors.Is(err, domain.ErrInactiveUser) {
		t.Errorf("Expected inactive user, got %v", err)
	}
}

func TestRefreshRequiresMatchingCSRF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "a@example.com", "password123")
	pair, _ := f.cmd.Login(ctx, LoginCommand{Email: "a@example.com", Password: "password123"})

	cases := []RefreshCommand{
		{RefreshToken: pair.RefreshToken, CSRFCookie: pair.CSRFToken, CSRFHeader: "different"},
		{RefreshToken: pair.RefreshToken, CSRFCookie: pair.CSRFToken},
		{RefreshToken: pair.RefreshToken, CSRFHeader: pair.CSRFToken},
	}
	for i, c := range cases {
		got, err := f.cmd.Refresh(ctx, c)
		if !errors.Is(err, domain.ErrCSRFInvalid) {
			t.Errorf("case %d: expected CSRF error, got %v", i, err)
		}
		if got != nil {
			t.Errorf("case %d: no token may be issued", i)
		}
	}

	if _, err := f.cmd.Refresh(ctx, RefreshCommand{CSRFCookie: "x", CSRFHeader: "x"}); !errors.Is(err, domain.ErrRefreshMissing) {
		t.Errorf("Expected missing refresh error, got %v", err)
	}
	if _, err := f.cmd.Refresh(ctx, RefreshCommand{RefreshToken: "unknown", CSRFCookie: "x", CSRFHeader: "x"}); !errors.Is(err, domain.ErrRefreshInvalid) {
		t.Errorf("Expected invalid refresh error, got %v", err)
	}
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "a@example.com", "password123")
	first, _ := f.cmd.Login(ctx, LoginCommand{Email: "a@example.com", Password: "password123"})

	second, err := f.cmd.Refresh(ctx, RefreshCommand{RefreshToken: first.RefreshToken, CSRFCookie: first.CSRFToken, CSRFHeader: first.CSRFToken})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken || second.CSRFToken == first.CSRFToken {
		t.Errorf("refresh must rotate both tokens")
	}
	if sub, _ := f.tokens.Parse(second.AccessToken); sub != user.ID {
		t.Errorf("Expected refreshed token for %s, got %s", user.ID, sub)
	}

	// 旧令牌再次使用
	_, err = f.cmd.Refresh(ctx, RefreshCommand{RefreshToken: first.RefreshToken, CSRFCookie: "c", CSRFHeader: "c"})
	if !errors.Is(err, domain.ErrRefreshReused) {
		t.Fatalf("Expected reuse detection, got %v", err)
	}

	// 整个家族被吊销，新令牌也失效
	_, err = f.cmd.Refresh(ctx, RefreshCommand{RefreshToken: second.RefreshToken, CSRFCookie: "c", CSRFHeader: "c"})
	if !errors.Is(err, domain.ErrRefreshInvalid) {
		t.Errorf("Expected family revoked, got %v", err)
	}

	found := false
	for _, typ := range f.publisher.Types() {
		if typ == domain.RefreshReuseDetectedEventType {
			found = true
		}
	}
	if !found {
		t.Errorf("reuse event not published: %v", f.publisher.Types())
	}
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "a@example.com", "password123")
	pair, _ := f.cmd.Login(ctx, LoginCommand{Email: "a@example.com", Password: "password123"})

	f.cmd.now = func() time.Time { return time.Now().UTC().Add(8 * 24 * time.Hour) }
	_, err := f.cmd.Refresh(ctx, RefreshCommand{RefreshToken: pair.RefreshToken, CSRFCookie: "c", CSRFHeader: "c"})
	if !errors.Is(err, domain.ErrRefreshInvalid) {
		t.Errorf("Expected expired session to be rejected, got %v", err)
	}
}

func TestLogoutRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "a@example.com", "password123")
	deviceA, _ := f.cmd.Login(ctx, LoginCommand{Email: "a@example.com", Password: "password123"})
	deviceB, _ := f.cmd.Login(ctx, LoginCommand{Email: "a@example.com", Password: "password123"})

	if err := f.cmd.Logout(ctx, LogoutCommand{RefreshToken: deviceA.RefreshToken}); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if s, _ := f.sessions.Get(ctx, security.HashToken(deviceA.RefreshToken)); s != nil {
		t.Errorf("device A session should be revoked")
	}
	if s, _ := f.sessions.Get(ctx, security.HashToken(deviceB.RefreshToken)); s == nil {
		t.Errorf("device B session should survive cookie-only logout")
	}

	if err := f.cmd.Logout(ctx, LogoutCommand{AccessToken: deviceA.AccessToken}); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if s, _ := f.sessions.Get(ctx, security.HashToken(deviceB.RefreshToken)); s != nil {
		t.Errorf("bearer logout should revoke all sessions")
	}

	if err := f.cmd.Logout(ctx, LogoutCommand{}); err != nil {
		t.Errorf("empty logout should succeed, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "a@example.com", "password123")
	_, err := f.cmd.CreateUser(context.Background(), CreateUserCommand{Email: "A@example.com", Password: "password123"})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("Expected email taken, got %v", err)
	}
}

func TestSetUserEnabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createUser(t, "admin@example.com", "password123")
	user := f.createUser(t, "u@example.com", "password123")
	pair, _ := f.cmd.Login(ctx, LoginCommand{Email: "u@example.com", Password: "password123"})

	if _, err := f.cmd.SetUserEnabled(ctx, admin.ID, admin.ID, false); !errors.Is(err, domain.ErrCannotDisableSelf) {
		t.Errorf("Expected self-disable rejection, got %v", err)
	}
	if _, err := f.cmd.SetUserEnabled(ctx, admin.ID, "missing", false); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}

	updated, err := f.cmd.SetUserEnabled(ctx, admin.ID, user.ID, false)
	if err != nil {
		t.Fatalf("SetUserEnabled: %v", err)
	}
	if updated.IsEnabled {
		t.Errorf("user should be disabled")
	}
	if s, _ := f.sessions.Get(ctx, security.HashToken(pair.RefreshToken)); s != nil {
		t.Errorf("disabling must revoke sessions")
	}
	if _, err := f.query.Authenticate(ctx, pair.AccessToken); !errors.Is(err, domain.ErrUserDisabled) {
		t.Errorf("Expected disabled user to fail authentication, got %v", err)
	}
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.cmd.EnsureBootstrapAdmin(ctx, "admin@example.com", "admin123")
	if err != nil {
		t.Fatalf("EnsureBootstrapAdmin: %v", err)
	}
	if !admin.IsBootstrapAdmin {
		t.Errorf("bootstrap user must be admin")
	}

	again, err := f.cmd.EnsureBootstrapAdmin(ctx, "admin@example.com", "other-password")
	if err != nil {
		t.Fatalf("EnsureBootstrapAdmin: %v", err)
	}
	if again.ID != admin.ID {
		t.Errorf("should reuse existing admin")
	}
	if _, err := f.cmd.Login(ctx, LoginCommand{Email: "admin@example.com", Password: "admin123"}); err != nil {
		t.Errorf("existing password must be kept, got %v", err)
	}

	plain := f.createUser(t, "plain@example.com", "password123")
	promoted, err := f.cmd.EnsureBootstrapAdmin(ctx, "plain@example.com", "ignored")
	if err != nil || promoted.ID != plain.ID || !promoted.IsBootstrapAdmin {
		t.Errorf("existing user should be promoted: %+v %v", promoted, err)
	}
}
