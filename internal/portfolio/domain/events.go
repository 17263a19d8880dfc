package domain

// TopicPortfolio 组合事件主题
const TopicPortfolio = "tradingassistant.portfolio"

const (
	PortfolioCreatedEventType     = "portfolio.created"
	ConstituentsUpsertedEventType = "portfolio.constituents_upserted"
)

// PortfolioCreatedEvent 组合创建事件
type PortfolioCreatedEvent struct {
	PortfolioID  string `json:"portfolio_id"`
	OwnerUserID  string `json:"owner_user_id"`
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency"`
	TaxTreatment string `json:"tax_treatment"`
}

// ConstituentsUpsertedEvent 成分批量写入事件
type ConstituentsUpsertedEvent struct {
	PortfolioID    string `json:"portfolio_id"`
	UpdatedCount   int    `json:"updated_count"`
	ReplaceMissing bool   `json:"replace_missing"`
}
