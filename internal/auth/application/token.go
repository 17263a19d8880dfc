package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wyfcoding/tradingassistant/internal/auth/domain"
)

// TokenIssuer 签发与校验 HMAC 访问令牌
type TokenIssuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer 创建令牌签发器，只接受 HS256/HS384/HS512
func NewTokenIssuer(secret, algorithm string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("signing key is required")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}
	if ttl <= 0 {
		return nil, errors.New("access token lifetime must be positive")
	}
	return &TokenIssuer{secret: []byte(secret), method: method, ttl: ttl, now: time.Now}, nil
}

// TTL 访问令牌有效期
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue 签发 sub 为用户 ID 的访问令牌
func (t *TokenIssuer) Issue(userID string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Parse 校验令牌并返回 sub
func (t *TokenIssuer) Parse(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", domain.ErrTokenInvalid.Wrap(err)
	}
	if claims.Subject == "" {
		return "", domain.ErrTokenMissingSubject
	}
	return claims.Subject, nil
}
