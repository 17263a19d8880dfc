package postgres

import (
	"time"

	"github.com/wyfcoding/tradingassistant/internal/registry/domain"
)

// InstrumentModel 金融工具表映射
type InstrumentModel struct {
	ID             string    `gorm:"column:instrument_id;type:varchar(36);primaryKey"`
	ISIN           string    `gorm:"column:isin;type:char(12);uniqueIndex;not null"`
	InstrumentType string    `gorm:"column:instrument_type;type:varchar(64);not null"`
	Name           string    `gorm:"column:name;type:varchar(255)"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (InstrumentModel) TableName() string {
	return "instruments"
}

// ListingModel 挂牌表映射
type ListingModel struct {
	ID              string    `gorm:"column:listing_id;type:varchar(36);primaryKey"`
	InstrumentID    string    `gorm:"column:instrument_id;type:varchar(36);not null;uniqueIndex:uq_listing_ticker_exchange,priority:1"`
	Ticker          string    `gorm:"column:ticker;type:varchar(32);not null;uniqueIndex:uq_listing_ticker_exchange,priority:2"`
	Exchange        string    `gorm:"column:exchange;type:varchar(32);not null;uniqueIndex:uq_listing_ticker_exchange,priority:3"`
	TradingCurrency string    `gorm:"column:trading_currency;type:char(3);not null"`
	PriceScale      string    `gorm:"column:price_scale;type:varchar(8);not null;default:MAJOR"`
	QuoteScale      string    `gorm:"column:quote_scale;type:varchar(8);not null"`
	IsPrimary       bool      `gorm:"column:is_primary;not null"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`

	Instrument InstrumentModel `gorm:"foreignKey:InstrumentID;references:ID;constraint:OnDelete:CASCADE"`
}

func (ListingModel) TableName() string {
	return "instrument_listings"
}

// SleeveModel 策略分组表映射
type SleeveModel struct {
	Code string `gorm:"column:sleeve_code;type:varchar(32);primaryKey"`
	Name string `gorm:"column:name;type:varchar(128);not null"`
}

func (SleeveModel) TableName() string {
	return "sleeves"
}

func toInstrumentModel(i *domain.Instrument) *InstrumentModel {
	return &InstrumentModel{
		ID:             i.ID,
		ISIN:           i.ISIN,
		InstrumentType: i.InstrumentType,
		Name:           i.Name,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

func toInstrument(m *InstrumentModel) *domain.Instrument {
	return &domain.Instrument{
		ID:             m.ID,
		ISIN:           m.ISIN,
		InstrumentType: m.InstrumentType,
		Name:           m.Name,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toListingModel(l *domain.Listing) *ListingModel {
	return &ListingModel{
		ID:              l.ID,
		InstrumentID:    l.InstrumentID,
		Ticker:          l.Ticker,
		Exchange:        l.Exchange,
		TradingCurrency: l.TradingCurrency,
		PriceScale:      string(l.PriceScale),
		QuoteScale:      l.QuoteScale,
		IsPrimary:       l.IsPrimary,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func toListing(m *ListingModel) *domain.Listing {
	return &domain.Listing{
		ID:              m.ID,
		InstrumentID:    m.InstrumentID,
		Ticker:          m.Ticker,
		Exchange:        m.Exchange,
		TradingCurrency: m.TradingCurrency,
		PriceScale:      domain.PriceScale(m.PriceScale),
		QuoteScale:      m.QuoteScale,
		IsPrimary:       m.IsPrimary,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
