package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sneakerhub/storefront/internal/platform/httpx"
	"github.com/sneakerhub/storefront/internal/services"
)

// ProductHandlers serves the public product catalog.
type ProductHandlers struct {
	catalog services.CatalogService
}

// NewProductHandlers constructs catalog handlers.
func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// Routes wires the /public endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productId}", h.getProduct)
}

type productPayload struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Price                int64    `json:"price"`
	DisplayPrice         string   `json:"displayPrice"`
	TransferPrice        int64    `json:"transferPrice"`
	DisplayTransferPrice string   `json:"displayTransferPrice"`
	Image                string   `json:"image"`
	Sizes                []string `json:"sizes"`
}

type productListResponse struct {
	Items []productPayload `json:"items"`
	Query string           `json:"query,omitempty"`
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	views, err := h.catalog.Search(ctx, query)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(views))
	for _, view := range views {
		items = append(items, buildProductPayload(view))
	}
	httpx.WriteJSON(w, http.StatusOK, productListResponse{Items: items, Query: query})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	view, err := h.catalog.Get(ctx, chi.URLParam(r, "productId"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProductPayload(view))
}

func buildProductPayload(view services.ProductView) productPayload {
	sizes := view.Sizes
	if sizes == nil {
		sizes = []string{}
	}
	return productPayload{
		ID:                   view.ID,
		Name:                 view.Name,
		Price:                view.Price,
		DisplayPrice:         view.DisplayPrice,
		TransferPrice:        view.TransferPrice,
		DisplayTransferPrice: view.DisplayTransferPrice,
		Image:                view.ImageRef,
		Sizes:                sizes,
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrSizeRequired):
		httpx.WriteError(ctx, w, httpx.NewError("size_required", "a size must be selected", http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", err.Error(), http.StatusInternalServerError))
	}
}
