package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orderbase/checkout/internal/checkout"
	"github.com/orderbase/checkout/internal/qrcode"
)

type CheckoutHandler struct {
	sessions   *checkout.Manager
	resolver   *checkout.Resolver
	aggregator *checkout.Aggregator
	calculator *checkout.Calculator
	qrBaseURL  string
}

func NewCheckoutHandler(sessions *checkout.Manager, p checkout.Pipeline, qrBaseURL string) *CheckoutHandler {
	return &CheckoutHandler{
		sessions:   sessions,
		resolver:   p.Resolver,
		aggregator: p.Aggregator,
		calculator: p.Calculator,
		qrBaseURL:  qrBaseURL,
	}
}

// HealthCheck returns server status
func (h *CheckoutHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "checkout-service",
		"sessions": h.sessions.Len(),
	})
}

// CreateSession opens a checkout session for a terminal
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{"session": s.View()})
}

func (h *CheckoutHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s.View()})
}

func (h *CheckoutHandler) DeleteSession(c *gin.Context) {
	if !h.sessions.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Resolve takes a scanned QR URL or typed table number
func (h *CheckoutHandler) Resolve(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Input string `json:"input"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_input"})
		return
	}

	view, err := s.Resolve(c.Request.Context(), req.Input)
	respond(c, view, err)
}

// SetReceived updates the tendered amount; null clears it
func (h *CheckoutHandler) SetReceived(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Amount *int64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_input"})
		return
	}

	view, err := s.SetReceived(req.Amount)
	respond(c, view, err)
}

// Checkout commits the sale after explicit confirmation
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_input"})
		return
	}

	// a dropped client connection must not cut the saga short
	ctx := context.WithoutCancel(c.Request.Context())
	view, err := s.Commit(ctx, req.Confirm)
	respond(c, view, err)
}

func (h *CheckoutHandler) Reset(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s.Reset()})
}

// Receipt shows a table's paid orders to the customer
func (h *CheckoutHandler) Receipt(c *gin.Context) {
	table, err := h.resolver.Resolve(c.Request.Context(), c.Query("table"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "code": errorCode(err)})
		return
	}

	orders, err := h.aggregator.Receipt(c.Request.Context(), table.ID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "code": errorCode(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"table":   table,
		"orders":  orders,
		"billing": h.calculator.Calculate(orders, nil),
	})
}

// TableQRCode renders the PNG placed on a table
func (h *CheckoutHandler) TableQRCode(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid table number", "code": "invalid_input"})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(qrcode.DefaultSize)))
	if size <= 0 || size > 2048 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "size must be between 1 and 2048", "code": "invalid_input"})
		return
	}

	png, payload, err := qrcode.TablePNG(h.qrBaseURL, number, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "internal"})
		return
	}

	c.Header("X-QR-Payload", payload)
	c.Data(http.StatusOK, "image/png", png)
}

func (h *CheckoutHandler) session(c *gin.Context) (*checkout.Session, bool) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	}
	return s, ok
}

func respond(c *gin.Context, view checkout.View, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"session": view})
		return
	}
	c.JSON(statusFor(err), gin.H{
		"session": view,
		"error":   err.Error(),
		"code":    errorCode(err),
	})
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{checkout.ErrInvalidInput, "invalid_input", http.StatusBadRequest},
	{checkout.ErrTableNotFound, "table_not_found", http.StatusNotFound},
	{checkout.ErrNoBillableOrders, "no_billable_orders", http.StatusOK},
	{checkout.ErrCheckoutDeclined, "declined", http.StatusOK},
	{checkout.ErrNotReady, "not_ready", http.StatusConflict},
	{checkout.ErrCommitInProgress, "commit_in_progress", http.StatusConflict},
	{checkout.ErrResolveInProgress, "resolve_in_progress", http.StatusConflict},
	{checkout.ErrTableBusy, "table_busy", http.StatusConflict},
	{context.Canceled, "cancelled", http.StatusConflict},
	{checkout.ErrOrdersFetch, "orders_fetch_error", http.StatusBadGateway},
	{checkout.ErrCommit, "commit_error", http.StatusBadGateway},
	{checkout.ErrUpstreamUnavailable, "upstream_unavailable", http.StatusBadGateway},
}

func errorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal"
}

func statusFor(err error) int {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}
