package cart

import (
	"github.com/shopspring/decimal"
)

// PriceLookup resolves an item id to its unit price
type PriceLookup interface {
	Price(itemID string) (decimal.Decimal, bool)
}

// Total sums price*quantity over items. Lines with quantity <= 0 or without
// a known price contribute nothing.
func Total(items map[string]int, prices PriceLookup) decimal.Decimal {
	total := decimal.Zero
	for id, qty := range items {
		if qty <= 0 {
			continue
		}
		price, ok := prices.Price(id)
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return total
}

// Total computes the cart's amount against prices
func (c *Cart) Total(prices PriceLookup) decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Total(c.items, prices)
}
