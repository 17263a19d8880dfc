// Package memory 提供注册表仓储的内存实现，用于 memory 驱动与测试
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wyfcoding/tradingassistant/internal/registry/domain"
)

// Store 共享的内存注册表，挂牌写入时校验金融工具是否存在
type Store struct {
	mu          sync.RWMutex
	instruments map[string]domain.Instrument
	byISIN      map[string]string
	listings    map[string]domain.Listing
	listingKeys map[listingKey]string
	sleeves     map[string]domain.Sleeve
}

type listingKey struct {
	instrumentID string
	ticker       string
	exchange     string
}

// NewStore 创建空的内存注册表
func NewStore() *Store {
	return &Store{
		instruments: make(map[string]domain.Instrument),
		byISIN:      make(map[string]string),
		listings:    make(map[string]domain.Listing),
		listingKeys: make(map[listingKey]string),
		sleeves:     make(map[string]domain.Sleeve),
	}
}

// Instruments 返回金融工具仓储
func (s *Store) Instruments() domain.InstrumentRepository { return (*instrumentRepository)(s) }

// Listings 返回挂牌仓储
func (s *Store) Listings() domain.ListingRepository { return (*listingRepository)(s) }

// Sleeves 返回策略分组仓储
func (s *Store) Sleeves() domain.SleeveRepository { return (*sleeveRepository)(s) }

type instrumentRepository Store

func (r *instrumentRepository) Create(_ context.Context, instrument *domain.Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byISIN[instrument.ISIN]; ok {
		return domain.ErrISINExists
	}
	r.instruments[instrument.ID] = *instrument
	r.byISIN[instrument.ISIN] = instrument.ID
	return nil
}

func (r *instrumentRepository) GetByID(_ context.Context, id string) (*domain.Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.instruments[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (r *instrumentRepository) GetByISIN(ctx context.Context, isin string) (*domain.Instrument, error) {
	r.mu.RLock()
	id, ok := r.byISIN[isin]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *instrumentRepository) List(_ context.Context, limit, offset int) ([]*domain.Instrument, int64, error) {
	r.mu.RLock()
	all := make([]*domain.Instrument, 0, len(r.instruments))
	for _, i := range r.instruments {
		i := i
		all = append(all, &i)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(a, b int) bool {
		if all[a].CreatedAt.Equal(all[b].CreatedAt) {
			return all[a].ID < all[b].ID
		}
		return all[a].CreatedAt.Before(all[b].CreatedAt)
	})
	total := int64(len(all))
	if offset >= len(all) {
		return []*domain.Instrument{}, total, nil
	}
	all = all[offset:]
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

type listingRepository Store

func (r *listingRepository) Create(_ context.Context, listing *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instruments[listing.InstrumentID]; !ok {
		return domain.ErrInstrumentNotFound
	}
	key := listingKey{listing.InstrumentID, listing.Ticker, listing.Exchange}
	if _, ok := r.listingKeys[key]; ok {
		return domain.ErrListingExists
	}
	r.listings[listing.ID] = *listing
	r.listingKeys[key] = listing.ID
	return nil
}

func (r *listingRepository) ListByInstrument(_ context.Context, instrumentID string) ([]*domain.Listing, error) {
	r.mu.RLock()
	out := []*domain.Listing{}
	for _, l := range r.listings {
		if l.InstrumentID == instrumentID {
			l := l
			out = append(out, &l)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].IsPrimary != out[b].IsPrimary {
			return out[a].IsPrimary
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

func (r *listingRepository) MissingIDs(_ context.Context, ids []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return missing(ids, func(id string) bool {
		_, ok := r.listings[id]
		return ok
	}), nil
}

type sleeveRepository Store

func (r *sleeveRepository) List(_ context.Context) ([]*domain.Sleeve, error) {
	r.mu.RLock()
	out := make([]*domain.Sleeve, 0, len(r.sleeves))
	for _, s := range r.sleeves {
		s := s
		out = append(out, &s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool { return out[a].Code < out[b].Code })
	return out, nil
}

func (r *sleeveRepository) Seed(_ context.Context, sleeves []domain.Sleeve) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sleeves {
		r.sleeves[s.Code] = s
	}
	return nil
}

func (r *sleeveRepository) MissingCodes(_ context.Context, codes []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return missing(codes, func(code string) bool {
		_, ok := r.sleeves[code]
		return ok
	}), nil
}

func missing(want []string, exists func(string) bool) []string {
	seen := make(map[string]struct{}, len(want))
	var out []string
	for _, w := range want {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		if !exists(w) {
			out = append(out, w)
		}
	}
	return out
}
