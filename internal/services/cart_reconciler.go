package services

import "strings"

// CompositeID is the cart line identity: a product in a given size.
func CompositeID(productID string, size string) string {
	return strings.TrimSpace(productID) + "-" + strings.TrimSpace(size)
}

// AddOrMerge adds item to cart. When a line with the same composite id exists its quantity
// grows by item.Quantity and its other fields are kept; otherwise item is appended.
// Quantity is not validated here.
func AddOrMerge(cart Cart, item LineItem) Cart {
	item.ID = CompositeID(item.ProductID, item.Size)
	out := cart.Clone()
	for i := range out.Items {
		if out.Items[i].ID == item.ID {
			out.Items[i].Quantity += item.Quantity
			return out
		}
	}
	out.Items = append(out.Items, item)
	return out
}

// SetQuantity sets the quantity of the line with id, flooring at 1. Unknown ids leave the
// cart unchanged.
func SetQuantity(cart Cart, id string, quantity int) Cart {
	if quantity < 1 {
		quantity = 1
	}
	out := cart.Clone()
	for i := range out.Items {
		if out.Items[i].ID == id {
			out.Items[i].Quantity = quantity
			break
		}
	}
	return out
}

// Remove drops the line with id. Removing an absent id is a no-op.
func Remove(cart Cart, id string) Cart {
	out := Cart{Items: make([]LineItem, 0, len(cart.Items))}
	for _, item := range cart.Items {
		if item.ID != id {
			out.Items = append(out.Items, item)
		}
	}
	return out
}

// Clear empties the cart.
func Clear(Cart) Cart {
	return Cart{Items: []LineItem{}}
}
