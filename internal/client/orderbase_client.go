package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/orderbase/checkout/internal/models"
)

// StatusError is returned when the orderbase API answers with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("orderbase %s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
	}
	return fmt.Sprintf("orderbase %s %s returned status %d", e.Method, e.Path, e.Code)
}

// OrderbaseClient talks to the orderbase API. Requests carry the session
// cookie obtained by Login, the same way the browser sent credentials.
type OrderbaseClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOrderbaseClient(baseURL string, timeout time.Duration) *OrderbaseClient {
	jar, _ := cookiejar.New(nil)
	return &OrderbaseClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}
}

func (c *OrderbaseClient) BaseURL() string {
	return c.baseURL
}

// Login opens a cookie session on the orderbase API.
func (c *OrderbaseClient) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.do(ctx, http.MethodPost, "/api/login", body, nil)
}

// ListTables fetches every table
func (c *OrderbaseClient) ListTables(ctx context.Context) ([]models.Table, error) {
	var resp models.TableList
	if err := c.do(ctx, http.MethodGet, "/api/tables", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tables, nil
}

// ListTableOrders fetches all orders of a table regardless of status
func (c *OrderbaseClient) ListTableOrders(ctx context.Context, tableID int) ([]models.Order, error) {
	var resp models.OrderList
	path := fmt.Sprintf("/api/tables/%d/orders", tableID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// UpdateOrderStatus sets the status of one order
func (c *OrderbaseClient) UpdateOrderStatus(ctx context.Context, orderID int, status string) error {
	path := fmt.Sprintf("/api/orders/%d/status", orderID)
	return c.do(ctx, http.MethodPatch, path, models.UpdateStatusRequest{Status: status}, nil)
}

// UpdateTableStatus sets the status of one table
func (c *OrderbaseClient) UpdateTableStatus(ctx context.Context, tableID int, status string) error {
	path := fmt.Sprintf("/api/tables/%d", tableID)
	return c.do(ctx, http.MethodPatch, path, models.UpdateStatusRequest{Status: status}, nil)
}

func (c *OrderbaseClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call orderbase API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   errorMessage(resp.Body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage pulls {"error": "..."} out of a failed response, if any.
func errorMessage(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return ""
}
