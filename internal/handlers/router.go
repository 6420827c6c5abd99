package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires every route of the checkout service.
func NewRouter(checkouts *CheckoutHandler, ledger *LedgerHandler, origins []string) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"X-QR-Payload"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", checkouts.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/sessions", checkouts.CreateSession)
		api.GET("/sessions/:id", checkouts.GetSession)
		api.DELETE("/sessions/:id", checkouts.DeleteSession)
		api.POST("/sessions/:id/resolve", checkouts.Resolve)
		api.PUT("/sessions/:id/received", checkouts.SetReceived)
		api.POST("/sessions/:id/checkout", checkouts.Checkout)
		api.POST("/sessions/:id/reset", checkouts.Reset)

		api.GET("/receipts", checkouts.Receipt)
		api.GET("/tables/:number/qrcode", checkouts.TableQRCode)
		api.GET("/tables/:number/checkouts", ledger.ListTableCheckouts)
		api.GET("/checkouts/:id", ledger.GetCheckout)
	}

	return router
}
