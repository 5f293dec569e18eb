package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sneakerhub/storefront/internal/repositories"
)

// DefaultColor is recorded on cart lines added without a colour choice.
const DefaultColor = "Por definir"

var (
	// ErrCatalogNotFound indicates the product does not exist.
	ErrCatalogNotFound = errors.New("catalog: product not found")
	// ErrCatalogInvalidInput indicates the request was malformed.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogUnavailable indicates the catalog could not be read.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
	// ErrSizeRequired is returned when a product is added to the cart without a size.
	ErrSizeRequired = errors.New("catalog: size is required")
)

// CatalogServiceDeps wires the catalog service.
type CatalogServiceDeps struct {
	Catalog   repositories.CatalogRepository
	Formatter *PriceFormatter
	Logger    EventLogger
}

type catalogService struct {
	catalog   repositories.CatalogRepository
	formatter *PriceFormatter
	logger    EventLogger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}
	formatter := deps.Formatter
	if formatter == nil {
		formatter = NewPriceFormatter(nil)
	}
	return &catalogService{
		catalog:   deps.Catalog,
		formatter: formatter,
		logger:    loggerOrNoop(deps.Logger),
	}, nil
}

// Search returns products whose name contains query, ignoring case. An empty query lists
// the whole catalog.
func (s *catalogService) Search(ctx context.Context, query string) ([]ProductView, error) {
	products, err := s.catalog.List(ctx)
	if err != nil {
		s.logger(ctx, "catalog.list_failed", map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	views := make([]ProductView, 0, len(products))
	for _, product := range products {
		if needle != "" && !strings.Contains(strings.ToLower(product.Name), needle) {
			continue
		}
		views = append(views, s.view(ctx, product))
	}
	return views, nil
}

func (s *catalogService) Get(ctx context.Context, productID string) (ProductView, error) {
	product, err := s.find(ctx, productID)
	if err != nil {
		return ProductView{}, err
	}
	return s.view(ctx, product), nil
}

// BuildLineItem turns a product-detail selection into a cart line. A quantity of zero means
// one unit.
func (s *catalogService) BuildLineItem(ctx context.Context, cmd AddCartItemCommand) (LineItem, error) {
	size := strings.TrimSpace(cmd.Size)
	if size == "" {
		return LineItem{}, ErrSizeRequired
	}
	if cmd.Quantity < 0 {
		return LineItem{}, fmt.Errorf("%w: quantity must be positive", ErrCatalogInvalidInput)
	}
	product, err := s.find(ctx, cmd.ProductID)
	if err != nil {
		return LineItem{}, err
	}
	if !product.HasSize(size) {
		return LineItem{}, fmt.Errorf("%w: size %s not available for product %s", ErrCatalogInvalidInput, size, product.ID)
	}
	quantity := cmd.Quantity
	if quantity == 0 {
		quantity = 1
	}
	color := strings.TrimSpace(cmd.Color)
	if color == "" {
		color = DefaultColor
	}
	return LineItem{
		ID:        CompositeID(product.ID, size),
		ProductID: product.ID,
		Name:      product.Name,
		ImageRef:  product.ImageRef,
		UnitPrice: product.Price,
		Size:      size,
		Color:     color,
		Quantity:  quantity,
	}, nil
}

func (s *catalogService) find(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Product{}, ErrCatalogNotFound
		}
		return Product{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return product, nil
}

func (s *catalogService) view(ctx context.Context, product Product) ProductView {
	transfer := TransferPrice(product.Price)
	return ProductView{
		Product:              product,
		TransferPrice:        transfer,
		DisplayPrice:         s.formatter.Format(ctx, product.Price),
		DisplayTransferPrice: s.formatter.Format(ctx, transfer),
	}
}
