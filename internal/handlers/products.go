package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/platform/httpx"
	"github.com/velora-shop/api/internal/platform/pagination"
	"github.com/velora-shop/api/internal/repositories"
)

// ProductCatalog is the slice of the product repository the catalog endpoints need.
type ProductCatalog interface {
	FindByID(ctx context.Context, productID int64) (domain.Product, error)
	ListActive(ctx context.Context, afterID int64, limit int) ([]domain.Product, error)
}

// ProductPricer resolves live campaign pricing for display.
type ProductPricer interface {
	PriceProduct(ctx context.Context, product domain.Product) (domain.PriceQuote, error)
}

// ProductHandlers exposes the public catalog: paginated listing and single
// product lookup, both priced against active campaigns.
type ProductHandlers struct {
	catalog ProductCatalog
	pricing ProductPricer
}

// NewProductHandlers constructs catalog handlers over the repository and pricing engine.
func NewProductHandlers(catalog ProductCatalog, pricing ProductPricer) *ProductHandlers {
	return &ProductHandlers{catalog: catalog, pricing: pricing}
}

// Routes wires the /products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{productID}", h.getProduct)
}

type productPayload struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	Price           int64   `json:"price"`
	Stock           int     `json:"stock"`
	HasVariants     bool    `json:"has_variants"`
	Image           string  `json:"image,omitempty"`
	HasDiscount     bool    `json:"has_discount"`
	OriginalPrice   int64   `json:"original_price"`
	DiscountAmount  int64   `json:"discount_amount,omitempty"`
	DiscountPercent float64 `json:"discount_percent,omitempty"`
	CampaignTitle   string  `json:"campaign_title,omitempty"`
}

type productListResponse struct {
	Products      []productPayload `json:"products"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "product catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.ParseParams(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	products, err := h.catalog.ListActive(ctx, params.Cursor.LastID, params.PageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to list products", http.StatusInternalServerError))
		return
	}

	resp := productListResponse{Products: make([]productPayload, 0, len(products))}
	for _, product := range products {
		resp.Products = append(resp.Products, h.buildProductPayload(ctx, product))
	}

	if len(products) == params.PageSize {
		token, err := pagination.EncodeToken(pagination.Cursor{LastID: products[len(products)-1].ID})
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to encode page token", http.StatusInternalServerError))
			return
		}
		resp.NextPageToken = token
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "product catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	productID, err := pathID(r, "productID")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	product, err := h.catalog.FindByID(ctx, productID)
	if err != nil {
		if repositories.IsNotFound(err) {
			httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to load product", http.StatusInternalServerError))
		return
	}
	if !product.IsActive {
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, h.buildProductPayload(ctx, product))
}

// buildProductPayload prices the product for display. Pricing failures fall
// back to the undiscounted base price rather than failing the request.
func (h *ProductHandlers) buildProductPayload(ctx context.Context, product domain.Product) productPayload {
	payload := productPayload{
		ID:            product.ID,
		Title:         product.Title,
		Slug:          product.Slug,
		Price:         product.Price,
		Stock:         product.Stock,
		HasVariants:   product.HasVariants,
		Image:         product.ImagePath,
		OriginalPrice: product.Price,
	}
	if h.pricing == nil {
		return payload
	}

	quote, err := h.pricing.PriceProduct(ctx, product)
	if err != nil {
		return payload
	}
	payload.Price = quote.CampaignPrice
	payload.OriginalPrice = quote.OriginalPrice
	payload.HasDiscount = quote.HasDiscount
	payload.DiscountAmount = quote.DiscountAmount
	payload.DiscountPercent = quote.DiscountPercent
	if quote.Campaign != nil {
		payload.CampaignTitle = quote.Campaign.Title
	}
	return payload
}
