// Package domain 定义投资组合及其成分
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBroker 新建组合的默认券商
const DefaultBroker = "Manual"

// DefaultBaseCurrency 未指定基础币种时使用
const DefaultBaseCurrency = "GBP"

// TaxTreatment 账户税务类型
type TaxTreatment string

const (
	TaxTreatmentSIPP TaxTreatment = "SIPP"
	TaxTreatmentISA  TaxTreatment = "ISA"
	TaxTreatmentGIA  TaxTreatment = "GIA"
)

// ParseTaxTreatment 大小写不敏感地解析税务类型
func ParseTaxTreatment(s string) (TaxTreatment, bool) {
	t := TaxTreatment(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TaxTreatmentSIPP, TaxTreatmentISA, TaxTreatmentGIA:
		return t, true
	}
	return "", false
}

// Portfolio 投资组合聚合根，只对所有者可见
type Portfolio struct {
	ID           string
	OwnerUserID  string
	Name         string
	Broker       string
	BaseCurrency string
	TaxTreatment TaxTreatment
	IsEnabled    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewPortfolio 创建启用状态的组合，broker 为空时取 Manual
func NewPortfolio(ownerID, name, broker, baseCurrency string, tax TaxTreatment) *Portfolio {
	now := time.Now().UTC()
	broker = strings.TrimSpace(broker)
	if broker == "" {
		broker = DefaultBroker
	}
	return &Portfolio{
		ID:           uuid.NewString(),
		OwnerUserID:  ownerID,
		Name:         strings.TrimSpace(name),
		Broker:       broker,
		BaseCurrency: baseCurrency,
		TaxTreatment: tax,
		IsEnabled:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// OwnedBy 是否属于该用户
func (p *Portfolio) OwnedBy(userID string) bool {
	return p != nil && userID != "" && p.OwnerUserID == userID
}

// Constituent 组合成分：某个挂牌归入某个分组，(PortfolioID, ListingID) 唯一
type Constituent struct {
	PortfolioID string
	ListingID   string
	SleeveCode  string
	IsMonitored bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ConstituentItem 批量写入的单项
type ConstituentItem struct {
	ListingID   string
	SleeveCode  string
	IsMonitored bool
}

// Dedupe 按 ListingID 去重，后出现的项覆盖先出现的，保持首次出现的顺序
func Dedupe(items []ConstituentItem) []ConstituentItem {
	index := make(map[string]int, len(items))
	out := make([]ConstituentItem, 0, len(items))
	for _, it := range items {
		if i, ok := index[it.ListingID]; ok {
			out[i] = it
			continue
		}
		index[it.ListingID] = len(out)
		out = append(out, it)
	}
	return out
}
