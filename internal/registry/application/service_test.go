package application

import (
	"context"
	"errors"
	"testing"

	"github.com/wyfcoding/tradingassistant/internal/registry/domain"
	"github.com/wyfcoding/tradingassistant/internal/registry/infrastructure/persistence/memory"
	"github.com/wyfcoding/tradingassistant/pkg/metrics"
	"github.com/wyfcoding/tradingassistant/pkg/mq"
)

func newService(t *testing.T) (*RegistryService, *mq.MemoryPublisher) {
	t.Helper()
	store := memory.NewStore()
	pub := mq.NewMemoryPublisher()
	svc := NewRegistryService(store.Instruments(), store.Listings(), store.Sleeves(),
		mq.NewEmitter(pub, domain.TopicRegistry, metrics.New("test")))
	if err := svc.SeedSleeves(context.Background()); err != nil {
		t.Fatalf("SeedSleeves: %v", err)
	}
	return svc, pub
}

func createInstrument(t *testing.T, svc *RegistryService, isin string) *domain.Instrument {
	t.Helper()
	i, err := svc.CreateInstrument(context.Background(), CreateInstrumentCommand{
		ISIN: isin, Name: "Vanguard FTSE All-World", InstrumentType: "ETF",
	})
	if err != nil {
		t.Fatalf("CreateInstrument: %v", err)
	}
	return i
}

func TestCreateInstrumentRejectsDuplicateISIN(t *testing.T) {
	svc, pub := newService(t)
	ctx := context.Background()
	createInstrument(t, svc, "ie00bk5bqt80")

	_, err := svc.CreateInstrument(ctx, CreateInstrumentCommand{ISIN: "IE00BK5BQT80", Name: "dup", InstrumentType: "ETF"})
	if !errors.Is(err, domain.ErrISINExists) {
		t.Fatalf("Expected ErrISINExists, got %v", err)
	}
	_, total, _ := svc.ListInstruments(ctx, 10, 0)
	if total != 1 {
		t.Errorf("Expected 1 instrument, got %d", total)
	}
	if got := pub.Types(); len(got) != 1 || got[0] != domain.InstrumentCreatedEventType {
		t.Errorf("Expected one instrument_created event, got %v", got)
	}
}

func TestCreateInstrumentValidatesISIN(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CreateInstrument(context.Background(), CreateInstrumentCommand{ISIN: "GB123", Name: "x", InstrumentType: "EQUITY"})
	if !errors.Is(err, domain.ErrInvalidISIN) {
		t.Errorf("Expected ErrInvalidISIN, got %v", err)
	}
}

func TestCreateListingQuoteScale(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	inst := createInstrument(t, svc, "GB00B03MLX29")

	tests := []struct {
		name      string
		ticker    string
		currency  string
		scale     domain.PriceScale
		wantQuote string
		wantScale domain.PriceScale
	}{
		{"gbp minor quotes in pence", "RDSA", "GBP", domain.PriceScaleMinor, "GBX", domain.PriceScaleMinor},
		{"gbp major", "RDSB", "GBP", domain.PriceScaleMajor, "GBP", domain.PriceScaleMajor},
		{"usd minor keeps currency", "SHEL", "usd", domain.PriceScaleMinor, "USD", domain.PriceScaleMinor},
		{"defaults", "SHELL", "", "", "GBP", domain.PriceScaleMajor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := svc.CreateListing(ctx, CreateListingCommand{
				InstrumentID: inst.ID, Ticker: tt.ticker, Exchange: "lse",
				TradingCurrency: tt.currency, PriceScale: tt.scale,
			})
			if err != nil {
				t.Fatalf("CreateListing: %v", err)
			}
			if l.QuoteScale != tt.wantQuote {
				t.Errorf("Expected quote scale %s, got %s", tt.wantQuote, l.QuoteScale)
			}
			if l.PriceScale != tt.wantScale {
				t.Errorf("Expected price scale %s, got %s", tt.wantScale, l.PriceScale)
			}
			if l.Exchange != "LSE" {
				t.Errorf("Expected exchange upper-cased, got %s", l.Exchange)
			}
		})
	}
}

func TestCreateListingErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	inst := createInstrument(t, svc, "US0378331005")

	if _, err := svc.CreateListing(ctx, CreateListingCommand{InstrumentID: inst.ID, Ticker: "AAPL", Exchange: "NASDAQ", TradingCurrency: "USD"}); err != nil {
		t.Fatalf("CreateListing: %v", err)
	}

	tests := []struct {
		name string
		cmd  CreateListingCommand
		want error
	}{
		{"duplicate", CreateListingCommand{InstrumentID: inst.ID, Ticker: "aapl", Exchange: "nasdaq", TradingCurrency: "USD"}, domain.ErrListingExists},
		{"missing instrument", CreateListingCommand{InstrumentID: "00000000-0000-0000-0000-000000000000", Ticker: "X", Exchange: "LSE"}, domain.ErrInstrumentNotFound},
		{"unknown currency", CreateListingCommand{InstrumentID: inst.ID, Ticker: "X", Exchange: "LSE", TradingCurrency: "ZZZ"}, domain.ErrInvalidCurrency},
		{"bad scale", CreateListingCommand{InstrumentID: inst.ID, Ticker: "X", Exchange: "LSE", PriceScale: "HALF"}, domain.ErrInvalidPriceScale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateListing(ctx, tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMissingListingsAndSleeves(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	inst := createInstrument(t, svc, "IE00B4L5Y983")
	l, err := svc.CreateListing(ctx, CreateListingCommand{InstrumentID: inst.ID, Ticker: "SWDA", Exchange: "LSE"})
	if err != nil {
		t.Fatal(err)
	}

	missing, err := svc.MissingListings(ctx, []string{l.ID, "nope", "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 || missing[0] != "nope" {
		t.Errorf("Expected [nope], got %v", missing)
	}

	codes, err := svc.MissingSleeves(ctx, []string{"CORE", "BOGUS"})
	if err != nil {
		t.Fatal(err)
	}
	if len(codes) != 1 || codes[0] != "BOGUS" {
		t.Errorf("Expected [BOGUS], got %v", codes)
	}

	sleeves, _ := svc.ListSleeves(ctx)
	if len(sleeves) != len(domain.DefaultSleeves) {
		t.Errorf("Expected %d sleeves, got %d", len(domain.DefaultSleeves), len(sleeves))
	}
}

func TestListListingsUnknownInstrument(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.ListListings(context.Background(), "missing"); !errors.Is(err, domain.ErrInstrumentNotFound) {
		t.Errorf("Expected ErrInstrumentNotFound, got %v", err)
	}
}
