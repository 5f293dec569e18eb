package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakerhub/storefront/internal/repositories"
)

func TestEmbeddedCatalog(t *testing.T) {
	repo, err := NewEmbedded()
	require.NoError(t, err)

	products, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 10)

	wantPrices := []int64{129999, 189999, 179999, 199999, 219999, 169999, 299999, 139999, 139999, 159999}
	for i, p := range products {
		assert.Equal(t, wantPrices[i], p.Price, "price of %s", p.Name)
		assert.Equal(t, []string{"40", "41", "42", "43", "44"}, p.Sizes)
	}

	mag, err := repo.FindByID(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "Nike Mag BTTF", mag.Name)

	_, err = repo.FindByID(context.Background(), "99")
	assert.True(t, repositories.IsNotFound(err))
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty":      "products: []",
		"missing id": "products:\n  - name: A\n    price: 1",
		"duplicate":  "products:\n  - {id: \"1\", name: A, price: 1}\n  - {id: \"1\", name: B, price: 2}",
		"zero price": "products:\n  - {id: \"1\", name: A, price: 0}",
		"bad yaml":   "products: [",
		"no name":    "products:\n  - {id: \"1\", price: 5}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseKeepsProductSizes(t *testing.T) {
	products, err := Parse([]byte("products:\n  - {id: \"1\", name: A, price: 10, sizes: [\"38\"]}"))
	require.NoError(t, err)
	assert.Equal(t, []string{"38"}, products[0].Sizes)
}

func TestReloadKeepsSnapshotOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - {id: \"1\", name: A, price: 10}"), 0o600))

	repo, err := NewFromFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("products: ["), 0o600))
	assert.Error(t, repo.Reload())

	products, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - {id: \"1\", name: A, price: 10}"), 0o600))

	repo, err := NewFromFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, repo.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("products:\n  - {id: \"1\", name: A, price: 10}\n  - {id: \"2\", name: B, price: 20}"), 0o600))

	assert.Eventually(t, func() bool {
		products, err := repo.List(context.Background())
		return err == nil && len(products) == 2
	}, 5*time.Second, 50*time.Millisecond)
}
