package checkout

import (
	"context"
	"fmt"
	"log"

	"github.com/orderbase/checkout/internal/models"
)

type OrderSource interface {
	ListTableOrders(ctx context.Context, tableID int) ([]models.Order, error)
}

// Aggregator fetches a table's orders. Every call hits the backend.
type Aggregator struct {
	orders OrderSource
}

func NewAggregator(orders OrderSource) *Aggregator {
	return &Aggregator{orders: orders}
}

// Billable returns the pending orders of a table. An empty set comes back
// together with ErrNoBillableOrders, which is informational.
func (a *Aggregator) Billable(ctx context.Context, tableID int) ([]models.Order, error) {
	orders, err := a.fetch(ctx, tableID)
	if err != nil {
		return nil, err
	}

	pending := FilterByStatus(orders, models.OrderStatusPending)
	if len(pending) == 0 {
		return pending, fmt.Errorf("%w: table id %d", ErrNoBillableOrders, tableID)
	}
	return pending, nil
}

// Receipt returns the completed orders of a table for the customer view.
func (a *Aggregator) Receipt(ctx context.Context, tableID int) ([]models.Order, error) {
	orders, err := a.fetch(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return FilterByStatus(orders, models.OrderStatusCompleted), nil
}

func (a *Aggregator) fetch(ctx context.Context, tableID int) ([]models.Order, error) {
	orders, err := a.orders.ListTableOrders(ctx, tableID)
	if err != nil {
		log.Printf("❌ Failed to fetch orders for table id %d: %v", tableID, err)
		return nil, fmt.Errorf("%w: %v", ErrOrdersFetch, err)
	}
	return orders, nil
}

// FilterByStatus keeps the orders with the given status, preserving order.
func FilterByStatus(orders []models.Order, status string) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}
