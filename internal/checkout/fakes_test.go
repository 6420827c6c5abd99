package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/orderbase/checkout/internal/models"
)

var errBoom = errors.New("connection reset")

type fakeBackend struct {
	mu sync.Mutex

	tables    []models.Table
	tablesErr error
	orders    map[int][]models.Order
	ordersErr error

	failOrders map[int]error
	failTable  error

	// block, when set, holds every status update until it is closed.
	block chan struct{}

	listTablesCalls int
	listOrdersCalls int
	calls           []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		orders:     make(map[int][]models.Order),
		failOrders: make(map[int]error),
	}
}

func (f *fakeBackend) ListTables(ctx context.Context) ([]models.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listTablesCalls++
	if f.tablesErr != nil {
		return nil, f.tablesErr
	}
	return append([]models.Table(nil), f.tables...), nil
}

func (f *fakeBackend) ListTableOrders(ctx context.Context, tableID int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listOrdersCalls++
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	return append([]models.Order(nil), f.orders[tableID]...), nil
}

func (f *fakeBackend) UpdateOrderStatus(ctx context.Context, orderID int, status string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("order %d %s", orderID, status))
	if err := f.failOrders[orderID]; err != nil {
		return err
	}
	for tableID, orders := range f.orders {
		for i := range orders {
			if orders[i].ID == orderID {
				f.orders[tableID][i].Status = status
			}
		}
	}
	return nil
}

func (f *fakeBackend) UpdateTableStatus(ctx context.Context, tableID int, status string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("table %d %s", tableID, status))
	if f.failTable != nil {
		return f.failTable
	}
	for i := range f.tables {
		if f.tables[i].ID == tableID {
			f.tables[i].Status = status
		}
	}
	return nil
}

func (f *fakeBackend) wait() {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []models.CheckoutRecord
}

func (r *fakeRecorder) Record(ctx context.Context, record models.CheckoutRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string

	extends int
	// expireAfter, when positive, lets the lock lapse after that many extends.
	expireAfter int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (l *fakeLocker) Acquire(ctx context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.held[key] = "token-" + key
	return l.held[key], true, nil
}

func (l *fakeLocker) Extend(ctx context.Context, key, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.expireAfter > 0 && l.extends >= l.expireAfter {
		l.held[key] = "token-other"
	}
	l.extends++
	return l.held[key] == token, nil
}

func (l *fakeLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// restaurant seeds table 7 with two pending orders (1000 + 500), one
// completed and one cancelled order, and table 3 with nothing to bill.
func restaurant() *fakeBackend {
	f := newFakeBackend()
	f.tables = []models.Table{
		{ID: 1, TableNumber: 3, Capacity: 2, Status: models.TableStatusActive},
		{ID: 2, TableNumber: 7, Capacity: 4, Status: models.TableStatusActive},
	}
	f.orders[1] = []models.Order{
		{ID: 20, ProductID: 1, Quantity: 1, TotalPrice: 800, Status: models.OrderStatusCompleted},
	}
	f.orders[2] = []models.Order{
		{ID: 10, ProductID: 1, Quantity: 2, TotalPrice: 1000, Status: models.OrderStatusPending},
		{ID: 11, ProductID: 2, Quantity: 1, TotalPrice: 300, Status: models.OrderStatusCompleted},
		{ID: 12, ProductID: 3, Quantity: 1, TotalPrice: 500, Status: models.OrderStatusPending},
		{ID: 13, ProductID: 4, Quantity: 1, TotalPrice: 900, Status: models.OrderStatusCancelled},
	}
	return f
}

func pipeline(f *fakeBackend, locker Locker, rec Recorder) Pipeline {
	return Pipeline{
		Resolver:   NewResolver(f),
		Aggregator: NewAggregator(f),
		Calculator: DefaultCalculator(),
		Committer:  NewCommitter(f, locker, rec),
	}
}

func amount(v int64) *int64 {
	return &v
}
