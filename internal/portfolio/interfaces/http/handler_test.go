package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/tradingassistant/internal/portfolio/application"
	"github.com/wyfcoding/tradingassistant/internal/portfolio/infrastructure/persistence/memory"
	regapp "github.com/wyfcoding/tradingassistant/internal/registry/application"
	regmemory "github.com/wyfcoding/tradingassistant/internal/registry/infrastructure/persistence/memory"
	"github.com/wyfcoding/tradingassistant/pkg/middleware"
)

const testUserHeader = "X-Test-User"

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	router   *gin.Engine
	registry *regapp.RegistryService
}

func newServer(t *testing.T) *server {
	t.Helper()
	regStore := regmemory.NewStore()
	registry := regapp.NewRegistryService(regStore.Instruments(), regStore.Listings(), regStore.Sleeves(), nil)
	if err := registry.SeedSleeves(context.Background()); err != nil {
		t.Fatal(err)
	}
	store := memory.NewStore()
	svc := application.NewPortfolioService(store.Portfolios(), store.Constituents(), store, registry, nil)

	fakeAuth := func(c *gin.Context) {
		middleware.SetUserID(c, c.GetHeader(testUserHeader))
		c.Next()
	}
	r := gin.New()
	NewPortfolioHandler(svc).RegisterRoutes(r.Group("/api/v1"), fakeAuth)
	return &server{router: r, registry: registry}
}

func (s *server) do(user, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(testUserHeader, user)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *server) listing(t *testing.T, isin, ticker string) string {
	t.Helper()
	ctx := context.Background()
	inst, err := s.registry.CreateInstrument(ctx, regapp.CreateInstrumentCommand{ISIN: isin, Name: ticker, InstrumentType: "ETF"})
	if err != nil {
		t.Fatal(err)
	}
	l, err := s.registry.CreateListing(ctx, regapp.CreateListingCommand{InstrumentID: inst.ID, Ticker: ticker, Exchange: "LSE"})
	if err != nil {
		t.Fatal(err)
	}
	return l.ID
}

func (s *server) createPortfolio(t *testing.T, user string) string {
	t.Helper()
	rec := s.do(user, http.MethodPost, "/api/v1/portfolios", `{"name":"Pension","tax_profile":"SIPP"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["broker"] != "Manual" || body["tax_treatment"] != "SIPP" || body["base_currency"] != "GBP" || body["is_enabled"] != true {
		t.Errorf("unexpected portfolio %v", body)
	}
	return body["portfolio_id"].(string)
}

func TestCreateAndListPortfolios(t *testing.T) {
	s := newServer(t)
	s.createPortfolio(t, "alice")
	s.createPortfolio(t, "bob")

	rec := s.do("alice", http.MethodGet, "/api/v1/portfolios", "")
	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0]["owner_user_id"] != "alice" {
		t.Errorf("Expected only alice's portfolio, got %v", list)
	}
}

func TestCreatePortfolioRejectsBadTaxTreatment(t *testing.T) {
	s := newServer(t)
	rec := s.do("alice", http.MethodPost, "/api/v1/portfolios", `{"name":"x","tax_treatment":"LISA"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestForeignPortfolioIsForbidden(t *testing.T) {
	s := newServer(t)
	id := s.createPortfolio(t, "alice")

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/portfolios/" + id, ""},
		{http.MethodGet, "/api/v1/portfolios/" + id + "/constituents", ""},
		{http.MethodPut, "/api/v1/portfolios/" + id + "/constituents", `{"items":[]}`},
	} {
		rec := s.do("mallory", tc.method, tc.path, tc.body)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403, got %d", tc.method, tc.path, rec.Code)
		}
		var body map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if body["error"] != "Not authorized" {
			t.Errorf("unexpected error body %v", body)
		}
	}
}

func TestBulkUpsertConstituents(t *testing.T) {
	s := newServer(t)
	id := s.createPortfolio(t, "alice")
	a := s.listing(t, "IE00BK5BQT80", "VWRP")
	b := s.listing(t, "IE00B4L5Y983", "SWDA")

	body := `{"items":[{"listing_id":"` + a + `","sleeve_code":"CORE"},{"listing_id":"` + b + `","sleeve_code":"CASH","is_monitored":false}]}`
	rec := s.do("alice", http.MethodPut, "/api/v1/portfolios/"+id+"/constituents", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &result)
	if result["status"] != "success" || result["updated_count"] != float64(2) {
		t.Errorf("unexpected result %v", result)
	}

	body = `{"replace_missing":true,"items":[{"listing_id":"` + b + `","sleeve_code":"SATELLITE"}]}`
	rec = s.do("alice", http.MethodPut, "/api/v1/portfolios/"+id+"/constituents", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = s.do("alice", http.MethodGet, "/api/v1/portfolios/"+id+"/constituents", "")
	var list []map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 1 || list[0]["listing_id"] != b || list[0]["sleeve_code"] != "SATELLITE" || list[0]["is_monitored"] != true {
		t.Errorf("unexpected constituents %v", list)
	}
}

func TestBulkUpsertUnknownReferences(t *testing.T) {
	s := newServer(t)
	id := s.createPortfolio(t, "alice")
	a := s.listing(t, "IE00BK5BQT80", "VWRP")

	rec := s.do("alice", http.MethodPut, "/api/v1/portfolios/"+id+"/constituents",
		`{"items":[{"listing_id":"`+a+`","sleeve_code":"BOGUS"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown sleeve, got %d", rec.Code)
	}
	rec = s.do("alice", http.MethodPut, "/api/v1/portfolios/"+id+"/constituents",
		`{"items":[{"listing_id":"0b6f3e9e-0d4e-4e7b-9b7b-51c2b9c3a000","sleeve_code":"CORE"}]}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown listing, got %d", rec.Code)
	}
	rec = s.do("alice", http.MethodPut, "/api/v1/portfolios/"+id+"/constituents", `{"items":[{"listing_id":"not-a-uuid","sleeve_code":"CORE"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed listing id, got %d", rec.Code)
	}
}
