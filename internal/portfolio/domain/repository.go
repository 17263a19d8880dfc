package domain

import "context"

// PortfolioRepository 组合仓储，查询不到时返回 nil, nil
type PortfolioRepository interface {
	Create(ctx context.Context, p *Portfolio) error
	GetByID(ctx context.Context, id string) (*Portfolio, error)
	// ListByOwner 按创建时间升序返回
	ListByOwner(ctx context.Context, ownerID string) ([]*Portfolio, error)
}

// ConstituentRepository 组合成分仓储
type ConstituentRepository interface {
	DeleteByPortfolio(ctx context.Context, portfolioID string) error
	// Upsert 按 (portfolio_id, listing_id) 插入或更新 sleeve_code 与 is_monitored
	Upsert(ctx context.Context, constituents []*Constituent) error
	ListByPortfolio(ctx context.Context, portfolioID string) ([]*Constituent, error)
}

// Transactor 在同一事务内执行 fn，fn 返回错误时回滚
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
