package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/orderbase/checkout/internal/models"
)

// DefaultTaxRate is the consumption tax applied on top of the subtotal.
const DefaultTaxRate = "0.10"

// Calculator computes billing snapshots. The total is the single canonical
// figure, floor(subtotal × (1 + rate)); tax is derived as total − subtotal
// so the two always reconcile.
type Calculator struct {
	multiplier decimal.Decimal
}

func NewCalculator(rate string) (*Calculator, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid tax rate %q: %w", rate, err)
	}
	if r.IsNegative() {
		return nil, fmt.Errorf("invalid tax rate %q: must not be negative", rate)
	}
	return &Calculator{multiplier: decimal.NewFromInt(1).Add(r)}, nil
}

func DefaultCalculator() *Calculator {
	c, _ := NewCalculator(DefaultTaxRate)
	return c
}

// Subtotal sums the backend-computed line totals.
func Subtotal(orders []models.Order) int64 {
	var sum int64
	for _, o := range orders {
		sum += o.TotalPrice
	}
	return sum
}

func (c *Calculator) Total(subtotal int64) int64 {
	return decimal.NewFromInt(subtotal).Mul(c.multiplier).Floor().IntPart()
}

// Calculate is pure: same orders and amount, same snapshot.
func (c *Calculator) Calculate(orders []models.Order, received *int64) models.Billing {
	subtotal := Subtotal(orders)
	total := c.Total(subtotal)

	b := models.Billing{
		Subtotal:  subtotal,
		TaxAmount: total - subtotal,
		Total:     total,
	}
	if received == nil {
		return b
	}

	amount := *received
	b.Received = &amount
	if amount >= total {
		b.Change = amount - total
	} else {
		b.Shortfall = total - amount
	}
	return b
}
