package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCartAcceptsLegacyShapes(t *testing.T) {
	raw := `[
		{"id":"3-42","nombre":"Air Max","precio":129999,"imagen":"zapas/zapa3.webp","talle":42,"cantidad":1,"color":"Por definir"},
		{"id":"5-40.5","productoId":"5","nombre":"Runner","precio":"89999","imagen":"","talle":"40.5","cantidad":2.0,"color":"negro"}
	]`

	cart, err := DecodeCart([]byte(raw))
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)

	first := cart.Items[0]
	assert.Equal(t, "3-42", first.ID)
	assert.Equal(t, "3", first.ProductID)
	assert.Equal(t, "42", first.Size)
	assert.Equal(t, int64(129999), first.UnitPrice)

	second := cart.Items[1]
	assert.Equal(t, "5-40.5", second.ID)
	assert.Equal(t, "5", second.ProductID)
	assert.Equal(t, int64(89999), second.UnitPrice)
	assert.Equal(t, 2, second.Quantity)
}

func TestDecodeCartMergesDuplicateLines(t *testing.T) {
	raw := `[{"id":"1-40","nombre":"A","precio":10,"talle":40,"cantidad":1},{"id":"1-40","nombre":"A","precio":10,"talle":"40","cantidad":2}]`

	cart, err := DecodeCart([]byte(raw))
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestDecodeCartEmptyInputs(t *testing.T) {
	for _, raw := range []string{"", "null", "  ", "[]"} {
		cart, err := DecodeCart([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, 0, cart.Len(), raw)
	}
}

func TestDecodeCartRejectsGarbage(t *testing.T) {
	_, err := DecodeCart([]byte(`{"id":"1-40"}`))
	assert.Error(t, err)

	_, err = DecodeCart([]byte(`[{"id":"1-40","precio":"abc"}]`))
	assert.Error(t, err)
}

func TestEncodeCartWritesNumericSizes(t *testing.T) {
	cart := AddOrMerge(Cart{}, sneaker("7", "43", 1, 5000))
	cart = AddOrMerge(cart, sneaker("8", "M", 1, 100))

	data, err := EncodeCart(cart)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, `"talle":43`), out)
	assert.True(t, strings.Contains(out, `"talle":"M"`), out)
	assert.True(t, strings.Contains(out, `"productoId":"7"`), out)

	back, err := DecodeCart(data)
	require.NoError(t, err)
	assert.Equal(t, cart, back)
}
