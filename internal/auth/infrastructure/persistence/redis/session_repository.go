package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/tradingassistant/internal/auth/domain"
)

const (
	sessionPrefix = "auth:session:"
	familyPrefix  = "auth:family:"
	userPrefix    = "auth:user_sessions:"
)

// maxRotateAttempts WATCH 冲突时的重试次数
const maxRotateAttempts = 3

type sessionRedisRepository struct {
	client redis.UniversalClient
}

// NewSessionRedisRepository 创建 Redis 会话仓储。
// 会话键随过期时间自动失效；auth:family:{id} 保存家族内的令牌摘要，
// auth:user_sessions:{id} 保存用户的家族 ID，用于批量吊销。
func NewSessionRedisRepository(client redis.UniversalClient) domain.SessionRepository {
	return &sessionRedisRepository{client: client}
}

func (r *sessionRedisRepository) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionPrefix+session.TokenHash, data, ttl)
	pipe.SAdd(ctx, familyPrefix+session.FamilyID, session.TokenHash)
	pipe.Expire(ctx, familyPrefix+session.FamilyID, ttl)
	pipe.SAdd(ctx, userPrefix+session.UserID, session.FamilyID)
	pipe.Expire(ctx, userPrefix+session.UserID, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *sessionRedisRepository) Get(ctx context.Context, tokenHash string) (*domain.Session, error) {
	return r.get(ctx, r.client, tokenHash)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *sessionRedisRepository) get(ctx context.Context, c getter, tokenHash string) (*domain.Session, error) {
	data, err := c.Get(ctx, sessionPrefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRedisRepository) MarkRotated(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	key := sessionPrefix + tokenHash
	rotated := false
	txf := func(tx *redis.Tx) error {
		session, err := r.get(ctx, tx, tokenHash)
		if err != nil {
			return err
		}
		if session == nil || session.IsRotated() {
			rotated = false
			return nil
		}
		session.RotatedAt = &at
		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		if err == nil {
			rotated = true
		}
		return err
	}

	for attempt := 0; attempt < maxRotateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return rotated, err
	}
	// 持续冲突说明同一令牌正被并发使用
	return false, nil
}

func (r *sessionRedisRepository) DeleteFamily(ctx context.Context, familyID string) error {
	familyKey := familyPrefix + familyID
	hashes, err := r.client.SMembers(ctx, familyKey).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, sessionPrefix+h)
	}
	keys = append(keys, familyKey)
	return r.client.Del(ctx, keys...).Err()
}

func (r *sessionRedisRepository) DeleteByUserID(ctx context.Context, userID string) error {
	userKey := userPrefix + userID
	families, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}
	for _, familyID := range families {
		if err := r.DeleteFamily(ctx, familyID); err != nil {
			return err
		}
	}
	return r.client.Del(ctx, userKey).Err()
}
