// Package postgres 提供组合仓储的 GORM 实现
package postgres

import (
	"context"
	"errors"

	"github.com/wyfcoding/tradingassistant/internal/portfolio/domain"
	"github.com/wyfcoding/tradingassistant/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate 创建组合相关表，需在认证与注册表迁移之后执行
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&PortfolioModel{}, &ConstituentModel{})
}

type portfolioRepository struct{ db *gorm.DB }

// NewPortfolioRepository 创建组合仓储
func NewPortfolioRepository(gdb *gorm.DB) domain.PortfolioRepository {
	return &portfolioRepository{db: gdb}
}

func (r *portfolioRepository) Create(ctx context.Context, p *domain.Portfolio) error {
	return db.Conn(ctx, r.db).Omit(clause.Associations).Create(toPortfolioModel(p)).Error
}

func (r *portfolioRepository) GetByID(ctx context.Context, id string) (*domain.Portfolio, error) {
	var m PortfolioModel
	err := db.Conn(ctx, r.db).Where("portfolio_id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toPortfolio(&m), nil
}

func (r *portfolioRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Portfolio, error) {
	var models []PortfolioModel
	err := db.Conn(ctx, r.db).
		Where("owner_user_id = ?", ownerID).
		Order("created_at ASC, portfolio_id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Portfolio, len(models))
	for i := range models {
		out[i] = toPortfolio(&models[i])
	}
	return out, nil
}

type constituentRepository struct{ db *gorm.DB }

// NewConstituentRepository 创建成分仓储
func NewConstituentRepository(gdb *gorm.DB) domain.ConstituentRepository {
	return &constituentRepository{db: gdb}
}

func (r *constituentRepository) DeleteByPortfolio(ctx context.Context, portfolioID string) error {
	return db.Conn(ctx, r.db).Where("portfolio_id = ?", portfolioID).Delete(&ConstituentModel{}).Error
}

func (r *constituentRepository) Upsert(ctx context.Context, constituents []*domain.Constituent) error {
	if len(constituents) == 0 {
		return nil
	}
	models := make([]ConstituentModel, len(constituents))
	for i, c := range constituents {
		models[i] = toConstituentModel(c)
	}
	err := db.Conn(ctx, r.db).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "portfolio_id"}, {Name: "listing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sleeve_code", "is_monitored", "updated_at"}),
	}).Create(&models).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return domain.ErrInvalidReference.Wrap(err)
	}
	return err
}

func (r *constituentRepository) ListByPortfolio(ctx context.Context, portfolioID string) ([]*domain.Constituent, error) {
	var models []ConstituentModel
	err := db.Conn(ctx, r.db).
		Where("portfolio_id = ?", portfolioID).
		Order("created_at ASC, listing_id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Constituent, len(models))
	for i := range models {
		out[i] = toConstituent(&models[i])
	}
	return out, nil
}
