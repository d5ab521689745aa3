package admin

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"partsmarket/internal/api/httperr"
	"partsmarket/internal/api/reqctx"
	"partsmarket/internal/domain/audit"
	"partsmarket/internal/domain/outbox"
	"partsmarket/internal/domain/payments"
	"partsmarket/internal/domain/webhooks"
	"partsmarket/internal/service/relay"
)

type AdminPayment struct {
	ID                    uuid.UUID `json:"id"`
	OrderID               uuid.UUID `json:"order_id"`
	ShopName              string    `json:"shop_name"`
	Reference             string    `json:"reference"`
	Provider              string    `json:"provider"`
	ProviderTransactionID string    `json:"provider_transaction_id"`
	AmountCents           int64     `json:"amount_cents"`
	Currency              string    `json:"currency"`
	Status                string    `json:"status"`
	CreatedAt             string    `json:"created_at"`
}

type Handler struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewHandler(db *gorm.DB, log *slog.Logger) *Handler {
	return &Handler{db: db, log: log}
}

func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || n <= 0 || n > 200 {
		return 50
	}
	return n
}

// ListAllPayments handles GET /admin/payments?status=.
func (h *Handler) ListAllPayments(c *gin.Context) {
	type row struct {
		payments.Payment
		ShopName string
	}

	q := h.db.WithContext(c.Request.Context()).
		Table("payments").
		Select("payments.*, shops.name AS shop_name").
		Joins("JOIN orders ON orders.id = payments.order_id").
		Joins("JOIN shops ON shops.id = orders.shop_id").
		Order("payments.created_at DESC").
		Limit(limitParam(c))
	if status := c.Query("status"); status != "" {
		q = q.Where("payments.status = ?", status)
	}

	var rows []row
	if err := q.Scan(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	out := make([]AdminPayment, 0, len(rows))
	for _, p := range rows {
		out = append(out, AdminPayment{
			ID:                    p.ID,
			OrderID:               p.OrderID,
			ShopName:              p.ShopName,
			Reference:             p.Reference,
			Provider:              p.Provider,
			ProviderTransactionID: p.ProviderTransactionID,
			AmountCents:           p.AmountCents,
			Currency:              p.Currency,
			Status:                p.Status,
			CreatedAt:             p.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

// ListOutbox handles GET /admin/outbox?status=dead.
func (h *Handler) ListOutbox(c *gin.Context) {
	status := outbox.Status(c.Query("status"))
	switch status {
	case "", outbox.StatusPending, outbox.StatusSent, outbox.StatusDead:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}

	msgs, err := relay.List(h.db.WithContext(c.Request.Context()), status, limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load outbox"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// RequeueOutbox handles POST /admin/outbox/:id/requeue.
func (h *Handler) RequeueOutbox(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message id"})
		return
	}

	db := h.db.WithContext(c.Request.Context())
	if err := relay.Requeue(db, id); err != nil {
		httperr.Write(c, h.log, err)
		return
	}
	actor := reqctx.Actor(c)
	if err := audit.Record(db, "outbox.requeued", "outbox_message", id.String(), actor.Label(), map[string]any{}); err != nil {
		h.log.Error("audit outbox.requeued failed", "id", id, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "requeued"})
}

// ListWebhookEvents handles GET /admin/webhook-events?failed=1.
func (h *Handler) ListWebhookEvents(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).
		Order("created_at DESC").
		Limit(limitParam(c))
	if p := c.Query("provider"); p != "" {
		q = q.Where("provider = ?", p)
	}
	if c.Query("failed") == "1" {
		q = q.Where("processing_error <> ''")
	}

	var events []webhooks.Event
	if err := q.Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load webhook events"})
		return
	}
	c.JSON(http.StatusOK, events)
}
