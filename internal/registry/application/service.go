// Package application 包含注册表服务的用例逻辑
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/tradingassistant/internal/registry/domain"
	"github.com/wyfcoding/tradingassistant/pkg/currency"
	"github.com/wyfcoding/tradingassistant/pkg/logger"
	"github.com/wyfcoding/tradingassistant/pkg/mq"
)

// CreateInstrumentCommand 创建金融工具命令
type CreateInstrumentCommand struct {
	ISIN           string
	Name           string
	InstrumentType string
	CreatedBy      string
}

// CreateListingCommand 创建挂牌命令，TradingCurrency 与 PriceScale 为空时分别取 GBP 与 MAJOR
type CreateListingCommand struct {
	InstrumentID    string
	Ticker          string
	Exchange        string
	TradingCurrency string
	PriceScale      domain.PriceScale
	IsPrimary       bool
	CreatedBy       string
}

// RegistryService 注册表应用服务
// 负责管理金融工具、挂牌与策略分组
type RegistryService struct {
	instruments domain.InstrumentRepository
	listings    domain.ListingRepository
	sleeves     domain.SleeveRepository
	events      *mq.Emitter
}

// NewRegistryService 创建应用服务实例
func NewRegistryService(
	instruments domain.InstrumentRepository,
	listings domain.ListingRepository,
	sleeves domain.SleeveRepository,
	events *mq.Emitter,
) *RegistryService {
	return &RegistryService{
		instruments: instruments,
		listings:    listings,
		sleeves:     sleeves,
		events:      events,
	}
}

// CreateInstrument 创建金融工具；存在性预检只是快速路径，唯一索引才是最终约束
func (s *RegistryService) CreateInstrument(ctx context.Context, cmd CreateInstrumentCommand) (*domain.Instrument, error) {
	instrument := domain.NewInstrument(cmd.ISIN, cmd.Name, cmd.InstrumentType)
	if len(instrument.ISIN) != domain.ISINLength {
		return nil, domain.ErrInvalidISIN
	}
	if instrument.InstrumentType == "" {
		return nil, domain.ErrInstrumentTypeEmpty
	}

	existing, err := s.instruments.GetByISIN(ctx, instrument.ISIN)
	if err != nil {
		logger.Error(ctx, "Failed to look up instrument", "isin", instrument.ISIN, "error", err)
		return nil, fmt.Errorf("failed to look up instrument: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrISINExists
	}

	if err := s.instruments.Create(ctx, instrument); err != nil {
		if errors.Is(err, domain.ErrISINExists) {
			return nil, domain.ErrISINExists
		}
		logger.Error(ctx, "Failed to create instrument", "isin", instrument.ISIN, "error", err)
		return nil, fmt.Errorf("failed to create instrument: %w", err)
	}

	s.events.Emit(ctx, domain.InstrumentCreatedEventType, instrument.ID, domain.InstrumentCreatedEvent{
		Instrument: instrument,
		CreatedBy:  cmd.CreatedBy,
	})
	logger.Info(ctx, "Instrument created", "instrument_id", instrument.ID, "isin", instrument.ISIN)
	return instrument, nil
}

// CreateListing 创建挂牌，报价币种由交易币种与报价单位推导
func (s *RegistryService) CreateListing(ctx context.Context, cmd CreateListingCommand) (*domain.Listing, error) {
	scale := cmd.PriceScale
	if scale == "" {
		scale = domain.PriceScaleMajor
	}
	if !scale.Valid() {
		return nil, domain.ErrInvalidPriceScale
	}
	code := cmd.TradingCurrency
	if code == "" {
		code = domain.DefaultCurrency
	}
	code, ok := currency.Normalize(code)
	if !ok {
		return nil, domain.ErrInvalidCurrency
	}

	instrument, err := s.instruments.GetByID(ctx, cmd.InstrumentID)
	if err != nil {
		logger.Error(ctx, "Failed to get instrument", "instrument_id", cmd.InstrumentID, "error", err)
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	if instrument == nil {
		return nil, domain.ErrInstrumentNotFound
	}

	listing := domain.NewListing(instrument.ID, cmd.Ticker, cmd.Exchange, code, scale, cmd.IsPrimary)
	if err := s.listings.Create(ctx, listing); err != nil {
		if errors.Is(err, domain.ErrListingExists) || errors.Is(err, domain.ErrInstrumentNotFound) {
			return nil, err
		}
		logger.Error(ctx, "Failed to create listing", "instrument_id", instrument.ID, "ticker", listing.Ticker, "error", err)
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	s.events.Emit(ctx, domain.ListingCreatedEventType, listing.ID, domain.ListingCreatedEvent{
		Listing:   listing,
		CreatedBy: cmd.CreatedBy,
	})
	return listing, nil
}

// GetInstrument 获取金融工具
func (s *RegistryService) GetInstrument(ctx context.Context, id string) (*domain.Instrument, error) {
	instrument, err := s.instruments.GetByID(ctx, id)
	if err != nil {
		logger.Error(ctx, "Failed to get instrument", "instrument_id", id, "error", err)
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	if instrument == nil {
		return nil, domain.ErrInstrumentNotFound
	}
	return instrument, nil
}

// ListInstruments 分页列出金融工具，返回总数
func (s *RegistryService) ListInstruments(ctx context.Context, limit, offset int) ([]*domain.Instrument, int64, error) {
	instruments, total, err := s.instruments.List(ctx, limit, offset)
	if err != nil {
		logger.Error(ctx, "Failed to list instruments", "error", err)
		return nil, 0, fmt.Errorf("failed to list instruments: %w", err)
	}
	return instruments, total, nil
}

// ListListings 列出金融工具的挂牌
func (s *RegistryService) ListListings(ctx context.Context, instrumentID string) ([]*domain.Listing, error) {
	if _, err := s.GetInstrument(ctx, instrumentID); err != nil {
		return nil, err
	}
	listings, err := s.listings.ListByInstrument(ctx, instrumentID)
	if err != nil {
		logger.Error(ctx, "Failed to list listings", "instrument_id", instrumentID, "error", err)
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

// ListSleeves 列出策略分组
func (s *RegistryService) ListSleeves(ctx context.Context) ([]*domain.Sleeve, error) {
	sleeves, err := s.sleeves.List(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to list sleeves", "error", err)
		return nil, fmt.Errorf("failed to list sleeves: %w", err)
	}
	return sleeves, nil
}

// SeedSleeves 写入固定的策略分组
func (s *RegistryService) SeedSleeves(ctx context.Context) error {
	if err := s.sleeves.Seed(ctx, domain.DefaultSleeves); err != nil {
		return fmt.Errorf("failed to seed sleeves: %w", err)
	}
	logger.Info(ctx, "Sleeves seeded", "count", len(domain.DefaultSleeves))
	return nil
}

// MissingListings 返回不存在的挂牌 ID
func (s *RegistryService) MissingListings(ctx context.Context, ids []string) ([]string, error) {
	return s.listings.MissingIDs(ctx, ids)
}

// MissingSleeves 返回不存在的分组代码
func (s *RegistryService) MissingSleeves(ctx context.Context, codes []string) ([]string, error) {
	return s.sleeves.MissingCodes(ctx, codes)
}
