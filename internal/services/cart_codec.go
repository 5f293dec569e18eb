package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// storedLineItem is the persisted shape of a cart line. Keys match carts written by earlier
// storefront clients so existing devices keep their carts.
type storedLineItem struct {
	ID        string     `json:"id"`
	ProductID string     `json:"productoId,omitempty"`
	Name      string     `json:"nombre"`
	Price     flexNumber `json:"precio"`
	Image     string     `json:"imagen"`
	Size      flexString `json:"talle"`
	Quantity  flexNumber `json:"cantidad"`
	Color     string     `json:"color"`
}

// flexString accepts a JSON string or number and writes numeric values back as numbers.
type flexString string

func (s flexString) MarshalJSON() ([]byte, error) {
	v := string(s)
	if v != "" && isDigits(v) && (len(v) == 1 || v[0] != '0') {
		return []byte(v), nil
	}
	return json.Marshal(v)
}

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("talle: %w", err)
	}
	*s = flexString(n.String())
	return nil
}

// flexNumber accepts integral JSON numbers, floats (rounded) and numeric strings.
type flexNumber int64

func (n flexNumber) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(n), 10)), nil
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*n = flexNumber(i)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", raw)
	}
	*n = flexNumber(math.Round(f))
	return nil
}

// EncodeCart serialises a cart to its stored JSON array form.
func EncodeCart(cart Cart) ([]byte, error) {
	stored := make([]storedLineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		stored = append(stored, storedLineItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     flexNumber(item.UnitPrice),
			Image:     item.ImageRef,
			Size:      flexString(item.Size),
			Quantity:  flexNumber(item.Quantity),
			Color:     item.Color,
		})
	}
	return json.Marshal(stored)
}

// DecodeCart parses a stored cart. Lines are re-keyed by composite id and duplicate lines
// are merged so the result never holds two lines with the same id.
func DecodeCart(data []byte) (Cart, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Cart{Items: []LineItem{}}, nil
	}
	var stored []storedLineItem
	if err := json.Unmarshal(data, &stored); err != nil {
		return Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	cart := Cart{Items: make([]LineItem, 0, len(stored))}
	for _, s := range stored {
		size := string(s.Size)
		productID := strings.TrimSpace(s.ProductID)
		if productID == "" {
			productID = productIDFromComposite(s.ID, size)
		}
		if productID == "" {
			return Cart{}, fmt.Errorf("decode cart: line %q has no product id", s.ID)
		}
		cart = AddOrMerge(cart, LineItem{
			ProductID: productID,
			Name:      s.Name,
			ImageRef:  s.Image,
			UnitPrice: int64(s.Price),
			Size:      size,
			Color:     s.Color,
			Quantity:  int(s.Quantity),
		})
	}
	return cart, nil
}

func productIDFromComposite(id string, size string) string {
	id = strings.TrimSpace(id)
	if size != "" {
		if trimmed, ok := strings.CutSuffix(id, "-"+size); ok {
			return trimmed
		}
	}
	if idx := strings.LastIndex(id, "-"); idx > 0 {
		return id[:idx]
	}
	return id
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
