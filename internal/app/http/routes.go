package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	adminapi "partsmarket/internal/api/admin"
	checkoutapi "partsmarket/internal/api/checkout"
	invoicesapi "partsmarket/internal/api/invoices"
	"partsmarket/internal/api/paystackwebhook"
	shopsapi "partsmarket/internal/api/shops"
	stripewebhooks "partsmarket/internal/api/stripewebhook"
	"partsmarket/internal/app/http/middleware"
	"partsmarket/internal/domain/users"
	"partsmarket/internal/service/checkout"
	"partsmarket/internal/service/invoicing"
	"partsmarket/internal/service/settlement"
)

// Deps is everything the handlers need. Webhook secrets may be empty for the
// provider that is not in use.
type Deps struct {
	DB               *gorm.DB
	Log              *slog.Logger
	Auth             *middleware.Authenticator
	Initializer      *checkout.Initializer
	Verifier         *checkout.Verifier
	Settler          *settlement.Settler
	Sender           *invoicing.Sender
	PaystackSecret   string
	StripeWebhookKey string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Webhooks read the raw body for signature checks; keep them off the sanitizer.
	r.POST("/webhooks/paystack", paystackwebhook.NewHandler(d.PaystackSecret, d.Settler, d.Log).Receive)
	r.POST("/webhooks/stripe", stripewebhooks.NewHandler(d.StripeWebhookKey, d.Settler, d.Log).StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	checkoutH := checkoutapi.NewHandler(d.Initializer, d.Verifier, d.Log)
	invoicesH := invoicesapi.NewHandler(d.Sender, d.Log)
	shopsH := shopsapi.NewHandler(d.DB, d.Log)
	adminH := adminapi.NewHandler(d.DB, d.Log)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(d.Auth), middleware.SanitizeAndCleanInputMiddleware())
	auth.POST("/payments/initialize", checkoutH.Initialize)
	auth.GET("/payments/verify", checkoutH.Verify)
	auth.GET("/orders/:id/payments", shopsH.OrderPayments)

	// Shop owners
	owner := auth.Group("/")
	owner.Use(middleware.RequireRole(users.RoleShopOwner, users.RoleAdmin))
	owner.POST("/invoices/send", invoicesH.Send)
	owner.GET("/shops/:id/notifications", shopsH.Notifications)
	owner.POST("/shops/:id/notifications/:nid/read", shopsH.MarkRead)
	owner.GET("/shops/:id/customers/:cid/loyalty", shopsH.Loyalty)
	owner.GET("/shops/:id/summary", shopsH.Summary)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.Auth), middleware.RequireRole(users.RoleAdmin))
	admin.GET("/payments", adminH.ListAllPayments)
	admin.GET("/outbox", adminH.ListOutbox)
	admin.POST("/outbox/:id/requeue", adminH.RequeueOutbox)
	admin.GET("/webhook-events", adminH.ListWebhookEvents)
}
