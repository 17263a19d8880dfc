package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/tradingassistant/internal/auth/domain"
	"github.com/wyfcoding/tradingassistant/pkg/db"
	"gorm.io/gorm"
)

// Migrate 创建认证相关表
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&UserModel{}, &SessionModel{})
}

type userRepository struct{ db *gorm.DB }

// NewUserRepository 创建 GORM 用户仓储
func NewUserRepository(gdb *gorm.DB) domain.UserRepository {
	return &userRepository{db: gdb}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	err := db.Conn(ctx, r.db).Create(toUserModel(user)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrEmailTaken.Wrap(err)
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	return db.Conn(ctx, r.db).Model(&UserModel{}).
		Where("user_id = ?", user.ID).
		Updates(map[string]any{
			"password_hash":      user.PasswordHash,
			"is_enabled":         user.IsEnabled,
			"is_bootstrap_admin": user.IsBootstrapAdmin,
			"last_login_at":      user.LastLoginAt,
			"updated_at":         user.UpdatedAt,
		}).Error
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "user_id = ?", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *userRepository) first(ctx context.Context, query string, arg any) (*domain.User, error) {
	var m UserModel
	err := db.Conn(ctx, r.db).Where(query, arg).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toUser(&m), nil
}

type sessionRepository struct{ db *gorm.DB }

// NewSessionRepository 创建 GORM 会话仓储，Redis 未启用时使用
func NewSessionRepository(gdb *gorm.DB) domain.SessionRepository {
	return &sessionRepository{db: gdb}
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	return db.Conn(ctx, r.db).Create(toSessionModel(session)).Error
}

func (r *sessionRepository) Get(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var m SessionModel
	err := db.Conn(ctx, r.db).Where("token_hash = ?", tokenHash).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toSession(&m), nil
}

func (r *sessionRepository) MarkRotated(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	res := db.Conn(ctx, r.db).Model(&SessionModel{}).
		Where("token_hash = ? AND rotated_at IS NULL", tokenHash).
		Update("rotated_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *sessionRepository) DeleteFamily(ctx context.Context, familyID string) error {
	return db.Conn(ctx, r.db).Where("family_id = ?", familyID).Delete(&SessionModel{}).Error
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	return db.Conn(ctx, r.db).Where("user_id = ?", userID).Delete(&SessionModel{}).Error
}

// PurgeExpired 删除已过期会话，返回删除数量
func (r *sessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := db.Conn(ctx, r.db).Where("expires_at <= ?", now).Delete(&SessionModel{})
	return res.RowsAffected, res.Error
}
