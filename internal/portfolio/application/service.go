// Package application 包含投资组合服务的用例逻辑
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/tradingassistant/internal/portfolio/domain"
	"github.com/wyfcoding/tradingassistant/pkg/currency"
	"github.com/wyfcoding/tradingassistant/pkg/logger"
	"github.com/wyfcoding/tradingassistant/pkg/mq"
)

// ReferenceChecker 校验成分引用的挂牌与分组是否存在，由注册表服务实现
type ReferenceChecker interface {
	MissingListings(ctx context.Context, ids []string) ([]string, error)
	MissingSleeves(ctx context.Context, codes []string) ([]string, error)
}

// CreatePortfolioCommand 创建组合命令
type CreatePortfolioCommand struct {
	OwnerUserID  string
	Name         string
	Broker       string
	BaseCurrency string
	TaxTreatment string
}

// BulkUpsertCommand 批量写入成分命令
type BulkUpsertCommand struct {
	CallerID       string
	PortfolioID    string
	Items          []domain.ConstituentItem
	ReplaceMissing bool
}

// PortfolioService 投资组合应用服务
type PortfolioService struct {
	portfolios   domain.PortfolioRepository
	constituents domain.ConstituentRepository
	tx           domain.Transactor
	refs         ReferenceChecker
	events       *mq.Emitter
	now          func() time.Time
}

// NewPortfolioService 创建应用服务实例
func NewPortfolioService(
	portfolios domain.PortfolioRepository,
	constituents domain.ConstituentRepository,
	tx domain.Transactor,
	refs ReferenceChecker,
	events *mq.Emitter,
) *PortfolioService {
	return &PortfolioService{
		portfolios:   portfolios,
		constituents: constituents,
		tx:           tx,
		refs:         refs,
		events:       events,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// GetPortfolios 返回调用者拥有的组合
func (s *PortfolioService) GetPortfolios(ctx context.Context, callerID string) ([]*domain.Portfolio, error) {
	list, err := s.portfolios.ListByOwner(ctx, callerID)
	if err != nil {
		logger.Error(ctx, "Failed to list portfolios", "user_id", callerID, "error", err)
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return list, nil
}

// CreatePortfolio 创建组合，所有者固定为调用者
func (s *PortfolioService) CreatePortfolio(ctx context.Context, cmd CreatePortfolioCommand) (*domain.Portfolio, error) {
	code := cmd.BaseCurrency
	if code == "" {
		code = domain.DefaultBaseCurrency
	}
	code, ok := currency.Normalize(code)
	if !ok {
		return nil, domain.ErrInvalidCurrency
	}
	tax, ok := domain.ParseTaxTreatment(cmd.TaxTreatment)
	if !ok {
		return nil, domain.ErrInvalidTaxTreatment
	}

	p := domain.NewPortfolio(cmd.OwnerUserID, cmd.Name, cmd.Broker, code, tax)
	if p.Name == "" {
		return nil, domain.ErrNameRequired
	}
	if err := s.portfolios.Create(ctx, p); err != nil {
		logger.Error(ctx, "Failed to create portfolio", "user_id", cmd.OwnerUserID, "error", err)
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}

	s.events.Emit(ctx, domain.PortfolioCreatedEventType, p.ID, domain.PortfolioCreatedEvent{
		PortfolioID:  p.ID,
		OwnerUserID:  p.OwnerUserID,
		Name:         p.Name,
		BaseCurrency: p.BaseCurrency,
		TaxTreatment: string(p.TaxTreatment),
	})
	logger.Info(ctx, "Portfolio created", "portfolio_id", p.ID, "user_id", p.OwnerUserID)
	return p, nil
}

// GetPortfolio 获取组合，不存在或不属于调用者时返回 ErrNotAuthorized
func (s *PortfolioService) GetPortfolio(ctx context.Context, callerID, portfolioID string) (*domain.Portfolio, error) {
	p, err := s.portfolios.GetByID(ctx, portfolioID)
	if err != nil {
		logger.Error(ctx, "Failed to get portfolio", "portfolio_id", portfolioID, "error", err)
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	if !p.OwnedBy(callerID) {
		return nil, domain.ErrNotAuthorized
	}
	return p, nil
}

// BulkUpsertConstituents 在一个事务内批量写入成分，返回请求项数
func (s *PortfolioService) BulkUpsertConstituents(ctx context.Context, cmd BulkUpsertCommand) (int, error) {
	if _, err := s.GetPortfolio(ctx, cmd.CallerID, cmd.PortfolioID); err != nil {
		return 0, err
	}

	items := domain.Dedupe(cmd.Items)
	if err := s.checkReferences(ctx, items); err != nil {
		return 0, err
	}

	now := s.now()
	rows := make([]*domain.Constituent, len(items))
	for i, it := range items {
		rows[i] = &domain.Constituent{
			PortfolioID: cmd.PortfolioID,
			ListingID:   it.ListingID,
			SleeveCode:  it.SleeveCode,
			IsMonitored: it.IsMonitored,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if cmd.ReplaceMissing {
			if err := s.constituents.DeleteByPortfolio(ctx, cmd.PortfolioID); err != nil {
				return err
			}
		}
		return s.constituents.Upsert(ctx, rows)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidReference) {
			return 0, err
		}
		logger.Error(ctx, "Failed to upsert constituents", "portfolio_id", cmd.PortfolioID, "error", err)
		return 0, fmt.Errorf("failed to upsert constituents: %w", err)
	}

	s.events.Emit(ctx, domain.ConstituentsUpsertedEventType, cmd.PortfolioID, domain.ConstituentsUpsertedEvent{
		PortfolioID:    cmd.PortfolioID,
		UpdatedCount:   len(cmd.Items),
		ReplaceMissing: cmd.ReplaceMissing,
	})
	logger.Info(ctx, "Constituents upserted", "portfolio_id", cmd.PortfolioID,
		"count", len(cmd.Items), "replace_missing", cmd.ReplaceMissing)
	return len(cmd.Items), nil
}

func (s *PortfolioService) checkReferences(ctx context.Context, items []domain.ConstituentItem) error {
	if len(items) == 0 || s.refs == nil {
		return nil
	}
	codes := make([]string, len(items))
	ids := make([]string, len(items))
	for i, it := range items {
		codes[i] = it.SleeveCode
		ids[i] = it.ListingID
	}

	missingCodes, err := s.refs.MissingSleeves(ctx, codes)
	if err != nil {
		return fmt.Errorf("failed to check sleeves: %w", err)
	}
	if len(missingCodes) > 0 {
		return domain.ErrUnknownSleeve
	}
	missingIDs, err := s.refs.MissingListings(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to check listings: %w", err)
	}
	if len(missingIDs) > 0 {
		return domain.ErrUnknownListing
	}
	return nil
}

// GetConstituents 返回组合的全部成分
func (s *PortfolioService) GetConstituents(ctx context.Context, callerID, portfolioID string) ([]*domain.Constituent, error) {
	if _, err := s.GetPortfolio(ctx, callerID, portfolioID); err != nil {
		return nil, err
	}
	list, err := s.constituents.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		logger.Error(ctx, "Failed to list constituents", "portfolio_id", portfolioID, "error", err)
		return nil, fmt.Errorf("failed to list constituents: %w", err)
	}
	return list, nil
}
