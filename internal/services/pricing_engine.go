package services

import (
	"context"
)

// transferDiscountPercent is the bank transfer discount shown on product pages. It is
// display-only and never applied to cart or checkout totals.
const transferDiscountPercent = 10

// Subtotal returns the sum of unit price times quantity over every line. An empty cart is 0.
func Subtotal(cart Cart) int64 {
	var total int64
	for _, item := range cart.Items {
		total += item.Subtotal()
	}
	return total
}

// Total is the amount charged at checkout. Shipping is always free so it equals Subtotal.
func Total(cart Cart) int64 {
	return Subtotal(cart)
}

// Summarize derives the pricing summary shown next to a cart.
func Summarize(cart Cart) CartSummary {
	units := 0
	for _, item := range cart.Items {
		units += item.Quantity
	}
	return CartSummary{
		ItemsCount:   len(cart.Items),
		Units:        units,
		Subtotal:     Subtotal(cart),
		Shipping:     0,
		ShippingFree: true,
		Total:        Total(cart),
	}
}

// TransferPrice is the display price for bank transfer payments, rounded down.
func TransferPrice(price int64) int64 {
	return price * (100 - transferDiscountPercent) / 100
}

// PriceFormatter renders whole-peso amounts with locale digit grouping.
type PriceFormatter struct {
	localizer *Localizer
}

// NewPriceFormatter constructs a formatter backed by localizer.
func NewPriceFormatter(localizer *Localizer) *PriceFormatter {
	if localizer == nil {
		localizer = NewLocalizer(DefaultLocale)
	}
	return &PriceFormatter{localizer: localizer}
}

// Format renders amount as "$129.999" under es-AR or "$129,999" under en.
func (f *PriceFormatter) Format(ctx context.Context, amount int64) string {
	return "$" + f.localizer.PrinterFor(ctx).Sprintf("%d", amount)
}

// FormatShipping renders the shipping line, which is always free.
func (f *PriceFormatter) FormatShipping(ctx context.Context, summary CartSummary) string {
	if summary.ShippingFree {
		return f.localizer.Text(ctx, msgFreeShipping)
	}
	return f.Format(ctx, summary.Shipping)
}
