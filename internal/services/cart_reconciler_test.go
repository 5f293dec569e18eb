package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sneaker(productID, size string, qty int, price int64) LineItem {
	return LineItem{ProductID: productID, Name: "Sneaker " + productID, UnitPrice: price, Size: size, Color: "Por definir", Quantity: qty}
}

func TestCompositeID(t *testing.T) {
	assert.Equal(t, "p1-42", CompositeID("p1", "42"))
	assert.Equal(t, "7-40", CompositeID(" 7 ", " 40"))
}

func TestAddOrMergeAppendsNewLine(t *testing.T) {
	cart := AddOrMerge(Cart{}, sneaker("1", "42", 1, 129999))
	cart = AddOrMerge(cart, sneaker("1", "43", 1, 129999))

	require.Len(t, cart.Items, 2)
	assert.Equal(t, "1-42", cart.Items[0].ID)
	assert.Equal(t, "1-43", cart.Items[1].ID)
}

func TestAddOrMergeSumsQuantities(t *testing.T) {
	cases := []struct{ first, second int }{{1, 2}, {3, 3}, {5, 1}, {0, 4}}
	for _, tc := range cases {
		cart := AddOrMerge(Cart{}, sneaker("p1", "42", tc.first, 100))
		cart = AddOrMerge(cart, sneaker("p1", "42", tc.second, 999))

		require.Len(t, cart.Items, 1)
		assert.Equal(t, tc.first+tc.second, cart.Items[0].Quantity)
		assert.Equal(t, int64(100), cart.Items[0].UnitPrice, "existing line keeps its fields")
	}
}

func TestAddOrMergeDoesNotAliasInput(t *testing.T) {
	original := AddOrMerge(Cart{}, sneaker("1", "42", 1, 10))
	merged := AddOrMerge(original, sneaker("1", "42", 1, 10))

	assert.Equal(t, 1, original.Items[0].Quantity)
	assert.Equal(t, 2, merged.Items[0].Quantity)
}

func TestSetQuantityFloorsAtOne(t *testing.T) {
	cart := AddOrMerge(Cart{}, sneaker("1", "42", 3, 10))
	for _, n := range []int{0, -1, -100} {
		updated := SetQuantity(cart, "1-42", n)
		assert.Equal(t, 1, updated.Items[0].Quantity, "n=%d", n)
	}
	assert.Equal(t, 7, SetQuantity(cart, "1-42", 7).Items[0].Quantity)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestSetQuantityUnknownIDIsNoop(t *testing.T) {
	cart := AddOrMerge(Cart{}, sneaker("1", "42", 3, 10))
	assert.Equal(t, cart, SetQuantity(cart, "9-40", 5))
}

func TestRemoveIsIdempotent(t *testing.T) {
	cart := AddOrMerge(Cart{}, sneaker("1", "42", 1, 10))
	cart = AddOrMerge(cart, sneaker("2", "41", 1, 20))

	once := Remove(cart, "1-42")
	twice := Remove(once, "1-42")

	assert.Equal(t, once, twice)
	require.Len(t, once.Items, 1)
	assert.Equal(t, "2-41", once.Items[0].ID)
	assert.Len(t, cart.Items, 2)
}

func TestClearEmptiesCart(t *testing.T) {
	cart := AddOrMerge(Cart{}, sneaker("1", "42", 1, 10))
	cleared := Clear(cart)
	assert.Empty(t, cleared.Items)
	assert.NotNil(t, cleared.Items)
}
