// Package catalog serves the read-only sneaker catalog from YAML, either the embedded default
// or an operator-supplied file that can be hot reloaded.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sneakerhub/storefront/internal/domain"
	"github.com/sneakerhub/storefront/internal/repositories"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

const reloadDebounce = 250 * time.Millisecond

var fallbackSizes = []string{"40", "41", "42", "43", "44"}

type catalogFile struct {
	DefaultSizes []string      `yaml:"defaultSizes"`
	Products     []productYAML `yaml:"products"`
}

type productYAML struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Price int64    `yaml:"price"`
	Image string   `yaml:"image"`
	Sizes []string `yaml:"sizes"`
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) ([]domain.Product, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	if len(file.Products) == 0 {
		return nil, errors.New("catalog: no products defined")
	}
	defaults := file.DefaultSizes
	if len(defaults) == 0 {
		defaults = fallbackSizes
	}

	seen := make(map[string]struct{}, len(file.Products))
	products := make([]domain.Product, 0, len(file.Products))
	for i, p := range file.Products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog: product %d is missing an id", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %q", id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("catalog: product %s is missing a name", id)
		}
		if p.Price <= 0 {
			return nil, fmt.Errorf("catalog: product %s has non-positive price", id)
		}
		sizes := p.Sizes
		if len(sizes) == 0 {
			sizes = defaults
		}
		products = append(products, domain.Product{
			ID:       id,
			Name:     strings.TrimSpace(p.Name),
			Price:    p.Price,
			ImageRef: strings.TrimSpace(p.Image),
			Sizes:    append([]string(nil), sizes...),
		})
	}
	return products, nil
}

// Repository holds the current catalog snapshot.
type Repository struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	products []domain.Product
	byID     map[string]domain.Product
}

var _ repositories.CatalogRepository = (*Repository)(nil)

// Option customises the repository.
type Option func(*Repository)

// WithLogger sets the logger used for reload diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewEmbedded loads the catalog bundled with the binary.
func NewEmbedded(opts ...Option) (*Repository, error) {
	return newRepository("", embeddedCatalog, opts...)
}

// NewFromFile loads the catalog from path. An empty path falls back to the embedded catalog.
func NewFromFile(path string, opts ...Option) (*Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return NewEmbedded(opts...)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return newRepository(path, data, opts...)
}

func newRepository(path string, data []byte, opts ...Option) (*Repository, error) {
	products, err := Parse(data)
	if err != nil {
		return nil, err
	}
	repo := &Repository{path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	repo.replace(products)
	return repo, nil
}

// List returns the products in catalog order.
func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

// FindByID returns the product or a not-found repository error.
func (r *Repository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	r.mu.RLock()
	product, ok := r.byID[strings.TrimSpace(id)]
	r.mu.RUnlock()
	if !ok {
		return domain.Product{}, repositories.NewNotFoundError("catalog.get", fmt.Errorf("product %q not found", id))
	}
	return product, nil
}

// Reload re-reads the backing file. The previous snapshot is kept when the file is invalid.
func (r *Repository) Reload() error {
	if r.path == "" {
		return nil
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", r.path, err)
	}
	products, err := Parse(data)
	if err != nil {
		return err
	}
	r.replace(products)
	return nil
}

// Watch reloads the catalog whenever its file changes until ctx is cancelled. The parent
// directory is watched so editors that replace the file by rename are picked up.
func (r *Repository) Watch(ctx context.Context) error {
	if r.path == "" {
		return errors.New("catalog: watch requires a file-backed catalog")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("catalog: watch %s: %w", r.path, err)
	}

	target := filepath.Clean(r.path)
	go func() {
		defer func() {
			_ = watcher.Close()
		}()
		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				debounce = time.After(reloadDebounce)
			case <-debounce:
				debounce = nil
				if err := r.Reload(); err != nil {
					r.logger.Warn("catalog reload failed, keeping previous snapshot", zap.String("path", r.path), zap.Error(err))
					continue
				}
				r.logger.Info("catalog reloaded", zap.String("path", r.path), zap.Int("products", r.size()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("catalog watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func (r *Repository) replace(products []domain.Product) {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	r.mu.Lock()
	r.products = products
	r.byID = byID
	r.mu.Unlock()
}

func (r *Repository) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.products)
}
