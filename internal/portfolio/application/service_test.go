package application

import (
	"context"
	"errors"
	"testing"

	"github.com/wyfcoding/tradingassistant/internal/portfolio/domain"
	"github.com/wyfcoding/tradingassistant/internal/portfolio/infrastructure/persistence/memory"
	regapp "github.com/wyfcoding/tradingassistant/internal/registry/application"
	regmemory "github.com/wyfcoding/tradingassistant/internal/registry/infrastructure/persistence/memory"
	"github.com/wyfcoding/tradingassistant/pkg/mq"
)

type fixture struct {
	svc       *PortfolioService
	registry  *regapp.RegistryService
	publisher *mq.MemoryPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	regStore := regmemory.NewStore()
	registry := regapp.NewRegistryService(regStore.Instruments(), regStore.Listings(), regStore.Sleeves(), nil)
	if err := registry.SeedSleeves(context.Background()); err != nil {
		t.Fatal(err)
	}
	store := memory.NewStore()
	pub := mq.NewMemoryPublisher()
	svc := NewPortfolioService(store.Portfolios(), store.Constituents(), store, registry,
		mq.NewEmitter(pub, domain.TopicPortfolio, nil))
	return &fixture{svc: svc, registry: registry, publisher: pub}
}

func (f *fixture) listing(t *testing.T, isin, ticker string) string {
	t.Helper()
	ctx := context.Background()
	inst, err := f.registry.CreateInstrument(ctx, regapp.CreateInstrumentCommand{ISIN: isin, Name: ticker, InstrumentType: "ETF"})
	if err != nil {
		t.Fatal(err)
	}
	l, err := f.registry.CreateListing(ctx, regapp.CreateListingCommand{InstrumentID: inst.ID, Ticker: ticker, Exchange: "LSE"})
	if err != nil {
		t.Fatal(err)
	}
	return l.ID
}

func (f *fixture) portfolio(t *testing.T, owner string) *domain.Portfolio {
	t.Helper()
	p, err := f.svc.CreatePortfolio(context.Background(), CreatePortfolioCommand{
		OwnerUserID: owner, Name: "ISA", TaxTreatment: "ISA",
	})
	if err != nil {
		t.Fatalf("CreatePortfolio: %v", err)
	}
	return p
}

func TestCreatePortfolioDefaults(t *testing.T) {
	f := newFixture(t)
	p := f.portfolio(t, "u1")
	if p.Broker != "Manual" || p.BaseCurrency != "GBP" || !p.IsEnabled || p.OwnerUserID != "u1" {
		t.Errorf("unexpected portfolio %+v", p)
	}
	if got := f.publisher.Types(); len(got) != 1 || got[0] != domain.PortfolioCreatedEventType {
		t.Errorf("Expected portfolio.created event, got %v", got)
	}
}

func TestCreatePortfolioValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreatePortfolio(ctx, CreatePortfolioCommand{OwnerUserID: "u1", Name: "x", TaxTreatment: "LISA"})
	if !errors.Is(err, domain.ErrInvalidTaxTreatment) {
		t.Errorf("Expected ErrInvalidTaxTreatment, got %v", err)
	}
	_, err = f.svc.CreatePortfolio(ctx, CreatePortfolioCommand{OwnerUserID: "u1", Name: "x", TaxTreatment: "GIA", BaseCurrency: "QQQ"})
	if !errors.Is(err, domain.ErrInvalidCurrency) {
		t.Errorf("Expected ErrInvalidCurrency, got %v", err)
	}
}

func TestGetPortfoliosOnlyOwned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.portfolio(t, "u1")
	f.portfolio(t, "u2")
	second := f.portfolio(t, "u1")

	list, err := f.svc.GetPortfolios(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 portfolios, got %d", len(list))
	}
	ids := map[string]bool{list[0].ID: true, list[1].ID: true}
	if !ids[first.ID] || !ids[second.ID] {
		t.Errorf("Expected both u1 portfolios, got %v", ids)
	}
}

func TestTenancyForbidsForeignPortfolio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.portfolio(t, "owner")

	if _, err := f.svc.GetPortfolio(ctx, "intruder", p.ID); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("Expected ErrNotAuthorized on read, got %v", err)
	}
	if _, err := f.svc.GetConstituents(ctx, "intruder", p.ID); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("Expected ErrNotAuthorized on constituents, got %v", err)
	}
	_, err := f.svc.BulkUpsertConstituents(ctx, BulkUpsertCommand{CallerID: "intruder", PortfolioID: p.ID})
	if !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("Expected ErrNotAuthorized on write, got %v", err)
	}
	if _, err := f.svc.GetPortfolio(ctx, "owner", "missing"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("Expected ErrNotAuthorized for missing portfolio, got %v", err)
	}
}

func TestBulkUpsertMergeAndReplace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.portfolio(t, "u1")
	a := f.listing(t, "IE00BK5BQT80", "VWRP")
	b := f.listing(t, "IE00B4L5Y983", "SWDA")
	c := f.listing(t, "IE00B53SZB19", "CSNDX")

	n, err := f.svc.BulkUpsertConstituents(ctx, BulkUpsertCommand{
		CallerID: "u1", PortfolioID: p.ID,
		Items: []domain.ConstituentItem{
			{ListingID: a, SleeveCode: "CORE", IsMonitored: true},
			{ListingID: b, SleeveCode: "SATELLITE", IsMonitored: true},
		},
	})
	if err != nil || n != 2 {
		t.Fatalf("BulkUpsert: n=%d err=%v", n, err)
	}

	// 合并：更新 a，新增 c，b 保留
	_, err = f.svc.BulkUpsertConstituents(ctx, BulkUpsertCommand{
		CallerID: "u1", PortfolioID: p.ID,
		Items: []domain.ConstituentItem{
			{ListingID: a, SleeveCode: "CASH", IsMonitored: false},
			{ListingID: c, SleeveCode: "GROWTH_SEMIS", IsMonitored: true},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := byListing(t, f, p.ID)
	if len(got) != 3 || got[a].SleeveCode != "CASH" || got[a].IsMonitored {
		t.Errorf("unexpected merge result %+v", got)
	}

	// 替换：只剩 b
	n, err = f.svc.BulkUpsertConstituents(ctx, BulkUpsertCommand{
		CallerID: "u1", PortfolioID: p.ID, ReplaceMissing: true,
		Items: []domain.ConstituentItem{
			{ListingID: b, SleeveCode: "CORE", IsMonitored: true},
			{ListingID: b, SleeveCode: "ENERGY", IsMonitored: true},
		},
	})
	if err != nil || n != 2 {
		t.Fatalf("replace: n=%d err=%v", n, err)
	}
	got = byListing(t, f, p.ID)
	if len(got) != 1 || got[b].SleeveCode != "ENERGY" {
		t.Errorf("Expected only b with ENERGY, got %+v", got)
	}
}

func TestBulkUpsertRejectsUnknownReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.portfolio(t, "u1")
	a := f.listing(t, "IE00BK5BQT80", "VWRP")

	if _, err := f.svc.BulkUpsertConstituents(ctx, BulkUpsertCommand{
		CallerID: "u1", PortfolioID: p.ID, ReplaceMissing: true,
		Items: []domain.ConstituentItem{{ListingID: a, SleeveCode: "CORE", IsMonitored: true}},
	}); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.BulkUpsertConstituents(ctx, BulkUpsertCommand{
		CallerID: "u1", PortfolioID: p.ID, ReplaceMissing: true,
		Items: []domain.ConstituentItem{{ListingID: a, SleeveCode: "NOPE"}},
	})
	if !errors.Is(err, domain.ErrUnknownSleeve) {
		t.Errorf("Expected ErrUnknownSleeve, got %v", err)
	}
	_, err = f.svc.BulkUpsertConstituents(ctx, BulkUpsertCommand{
		CallerID: "u1", PortfolioID: p.ID, ReplaceMissing: true,
		Items: []domain.ConstituentItem{{ListingID: "5b0c38e4-6a39-4a63-8a8f-0b5fd3c1d111", SleeveCode: "CORE"}},
	})
	if !errors.Is(err, domain.ErrUnknownListing) {
		t.Errorf("Expected ErrUnknownListing, got %v", err)
	}

	// 校验失败不能清空已有成分
	if got := byListing(t, f, p.ID); len(got) != 1 {
		t.Errorf("Expected existing constituent to survive, got %+v", got)
	}
}

func TestBulkUpsertRollsBackOnFailure(t *testing.T) {
	store := memory.NewStore()
	repo := &failingConstituents{ConstituentRepository: store.Constituents()}
	svc := NewPortfolioService(store.Portfolios(), repo, store, nil, nil)
	ctx := context.Background()
	p, err := svc.CreatePortfolio(ctx, CreatePortfolioCommand{OwnerUserID: "u1", Name: "GIA", TaxTreatment: "GIA"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.BulkUpsertConstituents(ctx, BulkUpsertCommand{
		CallerID: "u1", PortfolioID: p.ID,
		Items: []domain.ConstituentItem{{ListingID: "l1", SleeveCode: "CORE"}},
	}); err != nil {
		t.Fatal(err)
	}

	repo.fail = true
	_, err = svc.BulkUpsertConstituents(ctx, BulkUpsertCommand{
		CallerID: "u1", PortfolioID: p.ID, ReplaceMissing: true,
		Items: []domain.ConstituentItem{{ListingID: "l2", SleeveCode: "CORE"}},
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	list, _ := store.Constituents().ListByPortfolio(ctx, p.ID)
	if len(list) != 1 || list[0].ListingID != "l1" {
		t.Errorf("Expected rollback to keep l1, got %+v", list)
	}
}

type failingConstituents struct {
	domain.ConstituentRepository
	fail bool
}

func (r *failingConstituents) Upsert(ctx context.Context, rows []*domain.Constituent) error {
	if r.fail {
		return errors.New("write failed")
	}
	return r.ConstituentRepository.Upsert(ctx, rows)
}

func byListing(t *testing.T, f *fixture, portfolioID string) map[string]*domain.Constituent {
	t.Helper()
	list, err := f.svc.GetConstituents(context.Background(), "u1", portfolioID)
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]*domain.Constituent, len(list))
	for _, c := range list {
		out[c.ListingID] = c
	}
	return out
}
