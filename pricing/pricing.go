// Package pricing derives cart totals from line items.
package pricing

import (
	"fmt"

	"storefront-backend/models"

	"github.com/shopspring/decimal"
)

var (
	// FreeShippingThreshold is exclusive: only orders strictly above it ship free.
	FreeShippingThreshold = decimal.NewFromInt(100)
	FlatShipping          = decimal.NewFromInt(10)
	TaxRate               = decimal.RequireFromString("0.15")
)

// Totals are the four derived monetary fields of a cart or order.
type Totals struct {
	ItemsPrice    models.Money `json:"items_price"`
	ShippingPrice models.Money `json:"shipping_price"`
	TaxPrice      models.Money `json:"tax_price"`
	TotalPrice    models.Money `json:"total_price"`
}

// Round2 rounds to the nearest cent, ties away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Calc computes the totals for items. It fails only when a line carries a
// price that is not a decimal number.
func Calc(items []models.CartItem) (Totals, error) {
	sum := decimal.Zero
	for _, item := range items {
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			return Totals{}, fmt.Errorf("pricing %s: invalid price %q", item.ProductID, item.Price)
		}
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(item.Qty))))
	}

	itemsPrice := Round2(sum)
	shipping := FlatShipping
	if itemsPrice.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := Round2(TaxRate.Mul(itemsPrice))
	total := Round2(itemsPrice.Add(tax).Add(shipping))

	return Totals{
		ItemsPrice:    models.NewMoney(itemsPrice),
		ShippingPrice: models.NewMoney(shipping),
		TaxPrice:      models.NewMoney(tax),
		TotalPrice:    models.NewMoney(total),
	}, nil
}

// Apply recomputes the totals of cart from its current items.
func Apply(cart *models.Cart) error {
	totals, err := Calc(cart.Items)
	if err != nil {
		return err
	}
	cart.ItemsPrice = totals.ItemsPrice
	cart.ShippingPrice = totals.ShippingPrice
	cart.TaxPrice = totals.TaxPrice
	cart.TotalPrice = totals.TotalPrice
	return nil
}
