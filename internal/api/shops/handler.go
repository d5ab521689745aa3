package shops

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"partsmarket/internal/api/httperr"
	"partsmarket/internal/api/reqctx"
	"partsmarket/internal/apperr"
	"partsmarket/internal/domain/access"
	"partsmarket/internal/domain/notifications"
	"partsmarket/internal/domain/orders"
	"partsmarket/internal/domain/payments"
	"partsmarket/internal/domain/shops"
)

const feedLimit = 50

type Handler struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time
}

func NewHandler(db *gorm.DB, log *slog.Logger) *Handler {
	return &Handler{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// ownedShop loads :id and checks the caller manages it.
func (h *Handler) ownedShop(c *gin.Context) (shops.Shop, bool) {
	var shop shops.Shop
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shop id"})
		return shop, false
	}
	if err := h.db.WithContext(c.Request.Context()).First(&shop, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = apperr.NotFound("shop")
		}
		httperr.Write(c, h.log, err)
		return shop, false
	}
	if !access.CanManageShop(reqctx.Actor(c), shop) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return shop, false
	}
	return shop, true
}

// Notifications handles GET /shops/:id/notifications?unread=1.
func (h *Handler) Notifications(c *gin.Context) {
	shop, ok := h.ownedShop(c)
	if !ok {
		return
	}

	q := h.db.WithContext(c.Request.Context()).
		Where("shop_id = ?", shop.ID).
		Order("created_at DESC").
		Limit(feedLimit)
	if c.Query("unread") == "1" || c.Query("unread") == "true" {
		q = q.Where("read_at IS NULL")
	}

	var feed []notifications.Notification
	if err := q.Find(&feed).Error; err != nil {
		httperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

// MarkRead handles POST /shops/:id/notifications/:nid/read.
func (h *Handler) MarkRead(c *gin.Context) {
	shop, ok := h.ownedShop(c)
	if !ok {
		return
	}
	nid, err := uuid.Parse(c.Param("nid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).
		Model(&notifications.Notification{}).
		Where("id = ? AND shop_id = ? AND read_at IS NULL", nid, shop.ID).
		Update("read_at", h.now())
	if res.Error != nil {
		httperr.Write(c, h.log, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := h.db.WithContext(c.Request.Context()).Model(&notifications.Notification{}).
			Where("id = ? AND shop_id = ?", nid, shop.ID).Count(&n).Error; err != nil {
			httperr.Write(c, h.log, err)
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

type loyaltyResponse struct {
	ShopID          uuid.UUID  `json:"shop_id"`
	CustomerID      uuid.UUID  `json:"customer_id"`
	TotalSpentCents int64      `json:"total_spent_cents"`
	OrderCount      int        `json:"order_count"`
	Tier            string     `json:"tier"`
	NextTier        string     `json:"next_tier,omitempty"`
	RemainingCents  int64      `json:"remaining_cents"`
	LastOrderAt     *time.Time `json:"last_order_at,omitempty"`
}

// Loyalty handles GET /shops/:id/customers/:cid/loyalty. The tier is derived
// from spend on every read.
func (h *Handler) Loyalty(c *gin.Context) {
	shop, ok := h.ownedShop(c)
	if !ok {
		return
	}
	cid, err := uuid.Parse(c.Param("cid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer id"})
		return
	}

	var sc shops.ShopCustomer
	err = h.db.WithContext(c.Request.Context()).
		Where("shop_id = ? AND customer_id = ?", shop.ID, cid).
		First(&sc).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		httperr.Write(c, h.log, err)
		return
	}

	next, remaining := shops.NextTier(sc.TotalSpentCents)
	c.JSON(http.StatusOK, loyaltyResponse{
		ShopID:          shop.ID,
		CustomerID:      cid,
		TotalSpentCents: sc.TotalSpentCents,
		OrderCount:      sc.OrderCount,
		Tier:            shops.LoyaltyTier(sc.TotalSpentCents),
		NextTier:        next,
		RemainingCents:  remaining,
		LastOrderAt:     sc.LastOrderAt,
	})
}

// Summary handles GET /shops/:id/summary.
func (h *Handler) Summary(c *gin.Context) {
	shop, ok := h.ownedShop(c)
	if !ok {
		return
	}
	s, err := loadSummary(h.db.WithContext(c.Request.Context()), shop.ID, h.now().AddDate(0, 0, -30))
	if err != nil {
		httperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// OrderPayments handles GET /orders/:id/payments for the order's customer,
// the shop owner and admins.
func (h *Handler) OrderPayments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}
	db := h.db.WithContext(c.Request.Context())

	var order orders.Order
	if err := db.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = apperr.NotFound("order")
		}
		httperr.Write(c, h.log, err)
		return
	}
	var shop shops.Shop
	if err := db.First(&shop, "id = ?", order.ShopID).Error; err != nil {
		httperr.Write(c, h.log, err)
		return
	}
	if !access.CanViewOrder(reqctx.Actor(c), order, shop) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var ledger []payments.Payment
	if err := db.Where("order_id = ?", order.ID).Order("created_at ASC").Find(&ledger).Error; err != nil {
		httperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":       order.ID,
		"payment_status": order.PaymentStatus,
		"invoice_number": order.InvoiceNumber,
		"payments":       ledger,
	})
}
