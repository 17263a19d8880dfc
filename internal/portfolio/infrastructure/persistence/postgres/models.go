package postgres

import (
	"time"

	authpg "github.com/wyfcoding/tradingassistant/internal/auth/infrastructure/persistence/postgres"
	"github.com/wyfcoding/tradingassistant/internal/portfolio/domain"
	registrypg "github.com/wyfcoding/tradingassistant/internal/registry/infrastructure/persistence/postgres"
)

// PortfolioModel 组合表映射
type PortfolioModel struct {
	ID           string    `gorm:"column:portfolio_id;type:varchar(36);primaryKey"`
	OwnerUserID  string    `gorm:"column:owner_user_id;type:varchar(36);index;not null"`
	Name         string    `gorm:"column:name;type:varchar(255);not null"`
	Broker       string    `gorm:"column:broker;type:varchar(128);not null"`
	BaseCurrency string    `gorm:"column:base_currency;type:char(3);not null;default:GBP"`
	TaxTreatment string    `gorm:"column:tax_treatment;type:varchar(8);not null"`
	IsEnabled    bool      `gorm:"column:is_enabled;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;index"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`

	Owner authpg.UserModel `gorm:"foreignKey:OwnerUserID;references:ID"`
}

func (PortfolioModel) TableName() string {
	return "portfolios"
}

// ConstituentModel 组合成分表映射
// 布尔列不能带 default 标签，否则插入 false 时 GORM 会改写为默认值
type ConstituentModel struct {
	PortfolioID string    `gorm:"column:portfolio_id;type:varchar(36);primaryKey"`
	ListingID   string    `gorm:"column:listing_id;type:varchar(36);primaryKey"`
	SleeveCode  string    `gorm:"column:sleeve_code;type:varchar(32);not null"`
	IsMonitored bool      `gorm:"column:is_monitored;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`

	Portfolio PortfolioModel          `gorm:"foreignKey:PortfolioID;references:ID;constraint:OnDelete:CASCADE"`
	Listing   registrypg.ListingModel `gorm:"foreignKey:ListingID;references:ID"`
	Sleeve    registrypg.SleeveModel  `gorm:"foreignKey:SleeveCode;references:Code"`
}

func (ConstituentModel) TableName() string {
	return "portfolio_constituents"
}

func toPortfolioModel(p *domain.Portfolio) *PortfolioModel {
	return &PortfolioModel{
		ID:           p.ID,
		OwnerUserID:  p.OwnerUserID,
		Name:         p.Name,
		Broker:       p.Broker,
		BaseCurrency: p.BaseCurrency,
		TaxTreatment: string(p.TaxTreatment),
		IsEnabled:    p.IsEnabled,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toPortfolio(m *PortfolioModel) *domain.Portfolio {
	return &domain.Portfolio{
		ID:           m.ID,
		OwnerUserID:  m.OwnerUserID,
		Name:         m.Name,
		Broker:       m.Broker,
		BaseCurrency: m.BaseCurrency,
		TaxTreatment: domain.TaxTreatment(m.TaxTreatment),
		IsEnabled:    m.IsEnabled,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toConstituentModel(c *domain.Constituent) ConstituentModel {
	return ConstituentModel{
		PortfolioID: c.PortfolioID,
		ListingID:   c.ListingID,
		SleeveCode:  c.SleeveCode,
		IsMonitored: c.IsMonitored,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toConstituent(m *ConstituentModel) *domain.Constituent {
	return &domain.Constituent{
		PortfolioID: m.PortfolioID,
		ListingID:   m.ListingID,
		SleeveCode:  m.SleeveCode,
		IsMonitored: m.IsMonitored,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
