// Package postgres 提供注册表仓储的 GORM 实现
package postgres

import (
	"context"
	"errors"

	"github.com/wyfcoding/tradingassistant/internal/registry/domain"
	"github.com/wyfcoding/tradingassistant/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate 创建注册表相关表
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&InstrumentModel{}, &ListingModel{}, &SleeveModel{})
}

type instrumentRepository struct{ db *gorm.DB }

// NewInstrumentRepository 创建金融工具仓储
func NewInstrumentRepository(gdb *gorm.DB) domain.InstrumentRepository {
	return &instrumentRepository{db: gdb}
}

func (r *instrumentRepository) Create(ctx context.Context, instrument *domain.Instrument) error {
	err := db.Conn(ctx, r.db).Create(toInstrumentModel(instrument)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrISINExists.Wrap(err)
	}
	return err
}

func (r *instrumentRepository) GetByID(ctx context.Context, id string) (*domain.Instrument, error) {
	return r.first(ctx, "instrument_id = ?", id)
}

func (r *instrumentRepository) GetByISIN(ctx context.Context, isin string) (*domain.Instrument, error) {
	return r.first(ctx, "isin = ?", isin)
}

func (r *instrumentRepository) first(ctx context.Context, query string, arg any) (*domain.Instrument, error) {
	var m InstrumentModel
	err := db.Conn(ctx, r.db).Where(query, arg).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toInstrument(&m), nil
}

func (r *instrumentRepository) List(ctx context.Context, limit, offset int) ([]*domain.Instrument, int64, error) {
	var models []InstrumentModel
	var total int64
	conn := db.Conn(ctx, r.db)
	if err := conn.Model(&InstrumentModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := conn.Order("created_at ASC, instrument_id ASC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*domain.Instrument, len(models))
	for i := range models {
		out[i] = toInstrument(&models[i])
	}
	return out, total, nil
}

type listingRepository struct{ db *gorm.DB }

// NewListingRepository 创建挂牌仓储
func NewListingRepository(gdb *gorm.DB) domain.ListingRepository {
	return &listingRepository{db: gdb}
}

func (r *listingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	err := db.Conn(ctx, r.db).Omit(clause.Associations).Create(toListingModel(listing)).Error
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrListingExists.Wrap(err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return domain.ErrInstrumentNotFound.Wrap(err)
	}
	return err
}

func (r *listingRepository) ListByInstrument(ctx context.Context, instrumentID string) ([]*domain.Listing, error) {
	var models []ListingModel
	err := db.Conn(ctx, r.db).
		Where("instrument_id = ?", instrumentID).
		Order("is_primary DESC, created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Listing, len(models))
	for i := range models {
		out[i] = toListing(&models[i])
	}
	return out, nil
}

func (r *listingRepository) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	err := db.Conn(ctx, r.db).Model(&ListingModel{}).
		Where("listing_id IN ?", ids).
		Pluck("listing_id", &found).Error
	if err != nil {
		return nil, err
	}
	return missing(ids, found), nil
}

type sleeveRepository struct{ db *gorm.DB }

// NewSleeveRepository 创建策略分组仓储
func NewSleeveRepository(gdb *gorm.DB) domain.SleeveRepository {
	return &sleeveRepository{db: gdb}
}

func (r *sleeveRepository) List(ctx context.Context) ([]*domain.Sleeve, error) {
	var models []SleeveModel
	if err := db.Conn(ctx, r.db).Order("sleeve_code ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Sleeve, len(models))
	for i, m := range models {
		out[i] = &domain.Sleeve{Code: m.Code, Name: m.Name}
	}
	return out, nil
}

func (r *sleeveRepository) Seed(ctx context.Context, sleeves []domain.Sleeve) error {
	if len(sleeves) == 0 {
		return nil
	}
	models := make([]SleeveModel, len(sleeves))
	for i, s := range sleeves {
		models[i] = SleeveModel{Code: s.Code, Name: s.Name}
	}
	return db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sleeve_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&models).Error
}

func (r *sleeveRepository) MissingCodes(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var found []string
	err := db.Conn(ctx, r.db).Model(&SleeveModel{}).
		Where("sleeve_code IN ?", codes).
		Pluck("sleeve_code", &found).Error
	if err != nil {
		return nil, err
	}
	return missing(codes, found), nil
}

// missing 返回 want 中不在 found 内的元素，去重并保持顺序
func missing(want, found []string) []string {
	have := make(map[string]struct{}, len(found))
	for _, f := range found {
		have[f] = struct{}{}
	}
	var out []string
	for _, w := range want {
		if _, ok := have[w]; ok {
			continue
		}
		have[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
