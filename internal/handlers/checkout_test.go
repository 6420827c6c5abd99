package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbase/checkout/internal/checkout"
	"github.com/orderbase/checkout/internal/client"
	"github.com/orderbase/checkout/internal/models"
)

// orderbase is an in-memory stand-in for the orderbase API.
type orderbase struct {
	mu        sync.Mutex
	tables    []models.Table
	orders    map[int][]models.Order
	failOrder int
	patches   []string
}

func newOrderbase() *orderbase {
	return &orderbase{
		tables: []models.Table{
			{ID: 1, TableNumber: 3, Capacity: 2, Status: models.TableStatusActive},
			{ID: 2, TableNumber: 7, Capacity: 4, Status: models.TableStatusActive},
		},
		orders: map[int][]models.Order{
			1: {{ID: 20, TotalPrice: 800, Status: models.OrderStatusCompleted}},
			2: {
				{ID: 10, TotalPrice: 1000, Status: models.OrderStatusPending},
				{ID: 11, TotalPrice: 300, Status: models.OrderStatusCompleted},
				{ID: 12, TotalPrice: 500, Status: models.OrderStatusPending},
			},
		},
	}
}

func (o *orderbase) router() *gin.Engine {
	r := gin.New()
	r.GET("/api/tables", func(c *gin.Context) {
		o.mu.Lock()
		defer o.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"tables": o.tables})
	})
	r.GET("/api/tables/:id/orders", func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("id"))
		o.mu.Lock()
		defer o.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"orders": o.orders[id]})
	})
	r.PATCH("/api/orders/:id/status", func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("id"))
		var req models.UpdateStatusRequest
		_ = c.ShouldBindJSON(&req)
		o.mu.Lock()
		defer o.mu.Unlock()
		o.patches = append(o.patches, "order "+c.Param("id")+" "+req.Status)
		if id == o.failOrder {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database is locked"})
			return
		}
		for tableID := range o.orders {
			for i := range o.orders[tableID] {
				if o.orders[tableID][i].ID == id {
					o.orders[tableID][i].Status = req.Status
				}
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	r.PATCH("/api/tables/:id", func(c *gin.Context) {
		var req models.UpdateStatusRequest
		_ = c.ShouldBindJSON(&req)
		o.mu.Lock()
		defer o.mu.Unlock()
		o.patches = append(o.patches, "table "+c.Param("id")+" "+req.Status)
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return r
}

func (o *orderbase) Patches() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.patches...)
}

func (o *orderbase) FailOrder(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failOrder = id
}

type memoryStore struct {
	records map[string]models.CheckoutRecord
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*models.CheckoutRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memoryStore) ListByTable(ctx context.Context, tableNumber, limit int) ([]models.CheckoutRecord, error) {
	var out []models.CheckoutRecord
	for _, rec := range m.records {
		if rec.TableNumber == tableNumber && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryStore) Record(ctx context.Context, rec models.CheckoutRecord) error {
	m.records[rec.ID] = rec
	return nil
}

type testEnv struct {
	backend *orderbase
	store   *memoryStore
	router  *gin.Engine
}

func setup(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	backend := newOrderbase()
	srv := httptest.NewServer(backend.router())
	t.Cleanup(srv.Close)

	api := client.NewOrderbaseClient(srv.URL, time.Second)
	store := &memoryStore{records: make(map[string]models.CheckoutRecord)}
	p := checkout.Pipeline{
		Resolver:   checkout.NewResolver(api),
		Aggregator: checkout.NewAggregator(api),
		Calculator: checkout.DefaultCalculator(),
		Committer:  checkout.NewCommitter(api, nil, store),
		ResetDelay: time.Hour,
	}
	sessions := checkout.NewManager(p)

	router := NewRouter(
		NewCheckoutHandler(sessions, p, "http://localhost:8080/html/view/owner/order"),
		NewLedgerHandler(store),
		[]string{"http://localhost:3000"},
	)
	return &testEnv{backend: backend, store: store, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type sessionResponse struct {
	Session checkout.View `json:"session"`
	Error   string        `json:"error"`
	Code    string        `json:"code"`
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) sessionResponse {
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (e *testEnv) newSession(t *testing.T) string {
	w := e.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	return decodeSession(t, w).Session.ID
}

func TestHealthCheck(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestCheckoutFlow(t *testing.T) {
	env := setup(t)
	id := env.newSession(t)
	base := "/api/sessions/" + id

	w := env.do(t, http.MethodPost, base+"/resolve", gin.H{"input": "http://localhost:8080/html/view/owner/order?table=7"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeSession(t, w)
	assert.Equal(t, checkout.StateBillingReady, resp.Session.State)
	assert.Len(t, resp.Session.Orders, 2)
	assert.Equal(t, int64(1500), resp.Session.Billing.Subtotal)
	assert.Equal(t, int64(1650), resp.Session.Billing.Total)

	w = env.do(t, http.MethodPut, base+"/received", gin.H{"amount": 2000})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(350), decodeSession(t, w).Session.Billing.Change)

	w = env.do(t, http.MethodPost, base+"/checkout", gin.H{"confirm": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decodeSession(t, w)
	assert.Equal(t, checkout.StateCheckoutComplete, resp.Session.State)
	assert.NotEmpty(t, resp.Session.Success)
	assert.Equal(t, []string{"order 10 completed", "order 12 completed", "table 2 inactive"}, env.backend.Patches())

	w = env.do(t, http.MethodGet, "/api/checkouts/"+resp.Session.LastCheckoutID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec models.CheckoutRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, models.OutcomeCompleted, rec.Outcome)
	assert.Equal(t, int64(1650), rec.Total)

	w = env.do(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, checkout.StateAwaitingInput, decodeSession(t, w).Session.State)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		status int
		code   string
		state  checkout.State
	}{
		{"non numeric", "abc", http.StatusBadRequest, "invalid_input", checkout.StateAwaitingInput},
		{"url without table", "http://localhost:8080/html/view/owner/order", http.StatusBadRequest, "invalid_input", checkout.StateAwaitingInput},
		{"unknown table", "99", http.StatusNotFound, "table_not_found", checkout.StateAwaitingInput},
		{"nothing to bill", "3", http.StatusOK, "no_billable_orders", checkout.StateTableResolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t)
			id := env.newSession(t)

			w := env.do(t, http.MethodPost, "/api/sessions/"+id+"/resolve", gin.H{"input": tt.input})

			assert.Equal(t, tt.status, w.Code)
			resp := decodeSession(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.state, resp.Session.State)
			assert.False(t, resp.Session.CanCheckout)
		})
	}
}

func TestCheckoutNotReady(t *testing.T) {
	env := setup(t)
	id := env.newSession(t)

	w := env.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", gin.H{"confirm": true})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "not_ready", decodeSession(t, w).Code)
	assert.Empty(t, env.backend.Patches())
}

func TestCheckoutDeclined(t *testing.T) {
	env := setup(t)
	id := env.newSession(t)
	env.do(t, http.MethodPost, "/api/sessions/"+id+"/resolve", gin.H{"input": "7"})

	w := env.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", gin.H{"confirm": false})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeSession(t, w)
	assert.Equal(t, "declined", resp.Code)
	assert.Equal(t, checkout.StateBillingReady, resp.Session.State)
	assert.Empty(t, env.backend.Patches())
}

func TestCheckoutPartialFailure(t *testing.T) {
	env := setup(t)
	env.backend.FailOrder(12)
	id := env.newSession(t)
	env.do(t, http.MethodPost, "/api/sessions/"+id+"/resolve", gin.H{"input": "7"})

	w := env.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", gin.H{"confirm": true})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeSession(t, w)
	assert.Equal(t, "commit_error", resp.Code)
	assert.Equal(t, checkout.StateBillingReady, resp.Session.State)
	require.NotNil(t, resp.Session.LastSaga)
	require.Len(t, resp.Session.LastSaga.Steps, 3)
	assert.Equal(t, models.StepSucceeded, resp.Session.LastSaga.Steps[0].Status)
	assert.Equal(t, models.StepFailed, resp.Session.LastSaga.Steps[1].Status)
	assert.Equal(t, models.StepNotAttempted, resp.Session.LastSaga.Steps[2].Status)
	assert.Equal(t, []string{"order 10 completed", "order 12 completed"}, env.backend.Patches())

	w = env.do(t, http.MethodGet, "/api/tables/7/checkouts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"partial"`)
}

func TestSetReceivedRejectsNegative(t *testing.T) {
	env := setup(t)
	id := env.newSession(t)

	w := env.do(t, http.MethodPut, "/api/sessions/"+id+"/received", gin.H{"amount": -1})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownSession(t *testing.T) {
	env := setup(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/sessions/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/sessions/nope", nil).Code)
}

func TestDeleteSession(t *testing.T) {
	env := setup(t)
	id := env.newSession(t)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/sessions/"+id, nil).Code)
}

func TestReceipt(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodGet, "/api/receipts?table=7", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Orders  []models.Order `json:"orders"`
		Billing models.Billing `json:"billing"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, 11, resp.Orders[0].ID)
	assert.Equal(t, int64(330), resp.Billing.Total)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/receipts", nil).Code)
}

func TestTableQRCode(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodGet, "/api/tables/7/qrcode?size=128", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "http://localhost:8080/html/view/owner/order?table=7", w.Header().Get("X-QR-Payload"))
	assert.Equal(t, []byte("\x89PNG"), w.Body.Bytes()[:4])

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/tables/seven/qrcode", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/tables/7/qrcode?size=0", nil).Code)
}

func TestLedgerNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewLedgerHandler(nil)
	router.GET("/api/checkouts/:id", h.GetCheckout)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/checkouts/abc", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListTableCheckoutsLimit(t *testing.T) {
	env := setup(t)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/tables/7/checkouts?limit=0", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/tables/7/checkouts?limit=5", nil).Code)
}
