package models

import "time"

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Order is one line a customer placed from the table's ordering page.
// TotalPrice is computed by the backend (unit price × quantity) and is
// never recomputed here.
type Order struct {
	ID         int       `json:"id"`
	ProductID  int       `json:"product_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice int64     `json:"total_price"`
	Status     string    `json:"status"`
	TableID    *int      `json:"table_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Product    *Product  `json:"product,omitempty"`
}

type OrderList struct {
	Orders []Order `json:"orders"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}
