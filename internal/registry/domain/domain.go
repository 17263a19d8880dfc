// Package domain 定义金融工具、交易所挂牌与策略分组（sleeve）
package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ISINLength ISIN 固定长度
const ISINLength = 12

// DefaultCurrency 未指定币种时使用
const DefaultCurrency = "GBP"

// PriceScale 报价单位：主币或辅币（如英镑与便士）
type PriceScale string

const (
	PriceScaleMajor PriceScale = "MAJOR"
	PriceScaleMinor PriceScale = "MINOR"
)

// Valid 是否为已知报价单位
func (p PriceScale) Valid() bool {
	return p == PriceScaleMajor || p == PriceScaleMinor
}

// QuoteScaleFor 计算挂牌的报价币种：以便士报价的英镑挂牌为 GBX，其余与交易币种一致
func QuoteScaleFor(tradingCurrency string, scale PriceScale) string {
	if tradingCurrency == "GBP" && scale == PriceScaleMinor {
		return "GBX"
	}
	return tradingCurrency
}

// Instrument 金融工具，以 ISIN 唯一标识
type Instrument struct {
	ID             string    `json:"instrument_id"`
	ISIN           string    `json:"isin"`
	InstrumentType string    `json:"instrument_type"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewInstrument 创建金融工具，ISIN 统一为大写
func NewInstrument(isin, name, instrumentType string) *Instrument {
	now := time.Now().UTC()
	return &Instrument{
		ID:             uuid.NewString(),
		ISIN:           NormalizeISIN(isin),
		InstrumentType: strings.TrimSpace(instrumentType),
		Name:           strings.TrimSpace(name),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NormalizeISIN 去除空白并转为大写
func NormalizeISIN(isin string) string {
	return strings.ToUpper(strings.TrimSpace(isin))
}

// Listing 金融工具在某交易所的挂牌，(InstrumentID, Ticker, Exchange) 唯一
type Listing struct {
	ID              string     `json:"listing_id"`
	InstrumentID    string     `json:"instrument_id"`
	Ticker          string     `json:"ticker"`
	Exchange        string     `json:"exchange"`
	TradingCurrency string     `json:"trading_currency"`
	PriceScale      PriceScale `json:"price_scale"`
	QuoteScale      string     `json:"quote_scale"`
	IsPrimary       bool       `json:"is_primary"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewListing 创建挂牌并推导报价币种
func NewListing(instrumentID, ticker, exchange, tradingCurrency string, scale PriceScale, isPrimary bool) *Listing {
	now := time.Now().UTC()
	currency := strings.ToUpper(strings.TrimSpace(tradingCurrency))
	return &Listing{
		ID:              uuid.NewString(),
		InstrumentID:    instrumentID,
		Ticker:          strings.ToUpper(strings.TrimSpace(ticker)),
		Exchange:        strings.ToUpper(strings.TrimSpace(exchange)),
		TradingCurrency: currency,
		PriceScale:      scale,
		QuoteScale:      QuoteScaleFor(currency, scale),
		IsPrimary:       isPrimary,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Sleeve 策略分组，集合固定，由迁移写入
type Sleeve struct {
	Code string `json:"sleeve_code"`
	Name string `json:"name"`
}

// DefaultSleeves 迁移时写入的分组
var DefaultSleeves = []Sleeve{
	{Code: "CORE", Name: "Core Passive"},
	{Code: "SATELLITE", Name: "Satellite Alpha"},
	{Code: "CASH", Name: "Cash Buffer"},
	{Code: "GROWTH_SEMIS", Name: "Growth - Semiconductors"},
	{Code: "ENERGY", Name: "Thematic - Energy Transition"},
	{Code: "HEALTHCARE", Name: "Thematic - Healthcare Innovation"},
}

// InstrumentRepository 金融工具仓储，查询不到时返回 nil, nil
type InstrumentRepository interface {
	// Create ISIN 重复时返回 ErrISINExists
	Create(ctx context.Context, instrument *Instrument) error
	GetByID(ctx context.Context, id string) (*Instrument, error)
	GetByISIN(ctx context.Context, isin string) (*Instrument, error)
	List(ctx context.Context, limit, offset int) ([]*Instrument, int64, error)
}

// ListingRepository 挂牌仓储
type ListingRepository interface {
	// Create 组合键重复时返回 ErrListingExists，工具不存在时返回 ErrInstrumentNotFound
	Create(ctx context.Context, listing *Listing) error
	ListByInstrument(ctx context.Context, instrumentID string) ([]*Listing, error)
	// MissingIDs 返回 ids 中不存在的挂牌 ID
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
}

// SleeveRepository 策略分组仓储
type SleeveRepository interface {
	List(ctx context.Context) ([]*Sleeve, error)
	// Seed 写入或更新分组名称
	Seed(ctx context.Context, sleeves []Sleeve) error
	// MissingCodes 返回 codes 中不存在的分组代码
	MissingCodes(ctx context.Context, codes []string) ([]string, error)
}
