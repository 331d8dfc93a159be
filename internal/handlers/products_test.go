package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/repositories"
)

type stubCatalog struct {
	products map[int64]domain.Product
	listed   []domain.Product
	lastArgs struct {
		afterID int64
		limit   int
	}
	err error
}

func (s *stubCatalog) FindByID(_ context.Context, productID int64) (domain.Product, error) {
	if s.err != nil {
		return domain.Product{}, s.err
	}
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, repositories.NewError("test.FindByID", repositories.ErrorNotFound, "product not found", nil)
	}
	return product, nil
}

func (s *stubCatalog) ListActive(_ context.Context, afterID int64, limit int) ([]domain.Product, error) {
	s.lastArgs.afterID = afterID
	s.lastArgs.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.listed, nil
}

type stubPricer struct {
	quotes map[int64]domain.PriceQuote
}

func (s *stubPricer) PriceProduct(_ context.Context, product domain.Product) (domain.PriceQuote, error) {
	if quote, ok := s.quotes[product.ID]; ok {
		return quote, nil
	}
	return domain.NewPriceQuote(product.Price, nil), nil
}

func newProductRouter(h *ProductHandlers) chi.Router {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestListProductsAppliesCampaignPricing(t *testing.T) {
	campaign := &domain.Campaign{ID: 7, Title: "Summer", Type: domain.DiscountPercentage, DiscountValue: 10}
	catalog := &stubCatalog{listed: []domain.Product{
		{ID: 1, Title: "Mug", Slug: "mug", Price: 1000, Stock: 5, IsActive: true},
		{ID: 2, Title: "Cap", Slug: "cap", Price: 2000, Stock: 3, IsActive: true},
	}}
	pricer := &stubPricer{quotes: map[int64]domain.PriceQuote{
		1: domain.NewPriceQuote(1000, campaign),
	}}
	router := newProductRouter(NewProductHandlers(catalog, pricer))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp productListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(resp.Products))
	}
	discounted := resp.Products[0]
	if !discounted.HasDiscount || discounted.Price != 900 || discounted.OriginalPrice != 1000 {
		t.Fatalf("unexpected discounted payload: %+v", discounted)
	}
	if discounted.CampaignTitle != "Summer" {
		t.Fatalf("expected campaign title Summer, got %q", discounted.CampaignTitle)
	}
	if resp.Products[1].HasDiscount {
		t.Fatalf("expected undiscounted second product: %+v", resp.Products[1])
	}
	if resp.NextPageToken != "" {
		t.Fatalf("expected no next page token for short page, got %q", resp.NextPageToken)
	}
}

func TestListProductsEmitsNextPageToken(t *testing.T) {
	catalog := &stubCatalog{listed: []domain.Product{
		{ID: 10, Title: "A", Price: 100, IsActive: true},
		{ID: 11, Title: "B", Price: 100, IsActive: true},
	}}
	router := newProductRouter(NewProductHandlers(catalog, &stubPricer{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?pageSize=2", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if catalog.lastArgs.limit != 2 {
		t.Fatalf("expected limit 2, got %d", catalog.lastArgs.limit)
	}
	var resp productListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.NextPageToken == "" {
		t.Fatal("expected next page token for full page")
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?pageSize=2&pageToken="+resp.NextPageToken, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for second page, got %d", rr.Code)
	}
	if catalog.lastArgs.afterID != 11 {
		t.Fatalf("expected afterID 11 from token, got %d", catalog.lastArgs.afterID)
	}
}

func TestListProductsRejectsInvalidPageSize(t *testing.T) {
	router := newProductRouter(NewProductHandlers(&stubCatalog{}, &stubPricer{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?pageSize=abc", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestGetProductNotFound(t *testing.T) {
	router := newProductRouter(NewProductHandlers(&stubCatalog{products: map[int64]domain.Product{}}, &stubPricer{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/99", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestGetProductHidesInactive(t *testing.T) {
	catalog := &stubCatalog{products: map[int64]domain.Product{
		5: {ID: 5, Title: "Retired", Price: 100, IsActive: false},
	}}
	router := newProductRouter(NewProductHandlers(catalog, &stubPricer{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/5", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for inactive product, got %d", rr.Code)
	}
}

func TestGetProductRejectsBadID(t *testing.T) {
	router := newProductRouter(NewProductHandlers(&stubCatalog{}, &stubPricer{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/not-a-number", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
