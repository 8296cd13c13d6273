package cart

import "github.com/Skotchmaster/storefront/internal/models"

// Pricer supplies the tax and shipping rules. Total is always
// subtotal + tax + shipping.
type Pricer interface {
	Price(subtotal int64, itemCount int) (tax, shipping int64)
}

// FlatRate charges a percentage tax in basis points and a flat shipping
// fee, waived for empty carts and for subtotals at or above
// FreeShippingFrom when that is set.
type FlatRate struct {
	TaxRateBps       int
	Shipping         int64
	FreeShippingFrom int64
}

func (f FlatRate) Price(subtotal int64, itemCount int) (int64, int64) {
	var tax int64
	if f.TaxRateBps > 0 && subtotal > 0 {
		tax = (subtotal*int64(f.TaxRateBps) + 5000) / 10000
	}

	switch {
	case itemCount == 0:
		return tax, 0
	case f.FreeShippingFrom > 0 && subtotal >= f.FreeShippingFrom:
		return tax, 0
	default:
		return tax, f.Shipping
	}
}

// View is the derived, read-only summary of a cart. Amounts are minor units.
type View struct {
	ItemCount int    `json:"itemCount"`
	Subtotal  int64  `json:"subtotal"`
	Tax       int64  `json:"tax"`
	Shipping  int64  `json:"shipping"`
	Total     int64  `json:"total"`
	IsEmpty   bool   `json:"isEmpty"`
	Currency  string `json:"currency"`
}

// Compute derives the view from the items. A nil cart is an empty cart in
// defaultCurrency.
func Compute(c *models.Cart, p Pricer, defaultCurrency string) View {
	if defaultCurrency == "" {
		defaultCurrency = models.DefaultCurrency
	}
	v := View{Currency: defaultCurrency}
	if c != nil {
		if c.Currency != "" {
			v.Currency = c.Currency
		}
		for _, it := range c.Items {
			v.ItemCount += it.Quantity
			v.Subtotal += it.LineTotal()
		}
	}
	if p != nil {
		v.Tax, v.Shipping = p.Price(v.Subtotal, v.ItemCount)
	}
	v.Total = v.Subtotal + v.Tax + v.Shipping
	v.IsEmpty = v.ItemCount == 0
	return v
}
