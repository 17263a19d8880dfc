// Package memory 提供组合仓储的内存实现，用于 memory 驱动与测试
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wyfcoding/tradingassistant/internal/portfolio/domain"
)

type constituentKey struct {
	portfolioID string
	listingID   string
}

// Store 内存组合存储，WithTx 失败时把成分恢复到事务开始前的快照
type Store struct {
	txMu         sync.Mutex
	mu           sync.RWMutex
	portfolios   map[string]domain.Portfolio
	constituents map[constituentKey]domain.Constituent
}

// NewStore 创建空的内存组合存储
func NewStore() *Store {
	return &Store{
		portfolios:   make(map[string]domain.Portfolio),
		constituents: make(map[constituentKey]domain.Constituent),
	}
}

// Portfolios 返回组合仓储
func (s *Store) Portfolios() domain.PortfolioRepository { return (*portfolioRepository)(s) }

// Constituents 返回成分仓储
func (s *Store) Constituents() domain.ConstituentRepository { return (*constituentRepository)(s) }

// WithTx 串行执行事务
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[constituentKey]domain.Constituent, len(s.constituents))
	for k, v := range s.constituents {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.constituents = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

type portfolioRepository Store

func (r *portfolioRepository) Create(_ context.Context, p *domain.Portfolio) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.portfolios[p.ID] = *p
	return nil
}

func (r *portfolioRepository) GetByID(_ context.Context, id string) (*domain.Portfolio, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.portfolios[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *portfolioRepository) ListByOwner(_ context.Context, ownerID string) ([]*domain.Portfolio, error) {
	r.mu.RLock()
	out := []*domain.Portfolio{}
	for _, p := range r.portfolios {
		if p.OwnerUserID == ownerID {
			p := p
			out = append(out, &p)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

type constituentRepository Store

func (r *constituentRepository) DeleteByPortfolio(_ context.Context, portfolioID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.constituents {
		if k.portfolioID == portfolioID {
			delete(r.constituents, k)
		}
	}
	return nil
}

func (r *constituentRepository) Upsert(_ context.Context, constituents []*domain.Constituent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range constituents {
		key := constituentKey{c.PortfolioID, c.ListingID}
		row := *c
		if existing, ok := r.constituents[key]; ok {
			row.CreatedAt = existing.CreatedAt
		}
		r.constituents[key] = row
	}
	return nil
}

func (r *constituentRepository) ListByPortfolio(_ context.Context, portfolioID string) ([]*domain.Constituent, error) {
	r.mu.RLock()
	out := []*domain.Constituent{}
	for k, c := range r.constituents {
		if k.portfolioID == portfolioID {
			c := c
			out = append(out, &c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ListingID < out[b].ListingID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}
