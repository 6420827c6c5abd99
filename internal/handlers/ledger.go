package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orderbase/checkout/internal/models"
)

type CheckoutStore interface {
	GetByID(ctx context.Context, id string) (*models.CheckoutRecord, error)
	ListByTable(ctx context.Context, tableNumber, limit int) ([]models.CheckoutRecord, error)
}

// LedgerHandler serves recorded checkout attempts. store may be nil when
// no database is configured.
type LedgerHandler struct {
	store CheckoutStore
}

func NewLedgerHandler(store CheckoutStore) *LedgerHandler {
	return &LedgerHandler{store: store}
}

func (h *LedgerHandler) available(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "checkout ledger not configured"})
		return false
	}
	return true
}

// GetCheckout returns one ledger record
func (h *LedgerHandler) GetCheckout(c *gin.Context) {
	if !h.available(c) {
		return
	}

	rec, err := h.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Printf("❌ Failed to load checkout %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "checkout not found"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// ListTableCheckouts returns a table's ledger, newest first
func (h *LedgerHandler) ListTableCheckouts(c *gin.Context) {
	if !h.available(c) {
		return
	}

	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid table number"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	records, err := h.store.ListByTable(c.Request.Context(), number, limit)
	if err != nil {
		log.Printf("❌ Failed to list checkouts of table %d: %v", number, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkouts": records})
}
