package models

// Billing is a derived snapshot; it is never persisted on the backend.
// Received is nil until the cashier enters an amount.
type Billing struct {
	Subtotal  int64  `json:"subtotal"`
	TaxAmount int64  `json:"tax_amount"`
	Total     int64  `json:"total"`
	Received  *int64 `json:"received_amount"`
	Change    int64  `json:"change"`
	Shortfall int64  `json:"shortfall"`
}

// HasShortfall reports whether the tendered amount is below the total.
func (b Billing) HasShortfall() bool {
	return b.Shortfall > 0
}
