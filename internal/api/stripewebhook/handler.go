package stripewebhooks

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"partsmarket/internal/infra/stripe"
	"partsmarket/internal/service/settlement"
)

type Handler struct {
	endpointSecret string
	settler        *settlement.Settler
	log            *slog.Logger
}

func NewHandler(endpointSecret string, settler *settlement.Settler, log *slog.Logger) *Handler {
	return &Handler{endpointSecret: endpointSecret, settler: settler, log: log}
}

// StripeWebhook handles POST /webhooks/stripe.
func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.endpointSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readStripeBody(c, 65536)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Error reading request body"})
		return
	}

	event, known, err := stripe.ParseEvent(payload, c.GetHeader(stripe.SignatureHeader), h.endpointSecret)
	if err != nil {
		if errors.Is(err, stripe.ErrSignature) {
			h.log.Warn("stripe signature verification failed", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Signature verification failed"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event"})
		return
	}
	if !known {
		// Acknowledge unknown events to avoid retries
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	out, err := h.settler.Apply(c.Request.Context(), event)
	if err != nil {
		// 500 makes Stripe retry; the rolled back event row will not block it.
		h.log.Error("stripe webhook not applied", "event_id", event.EventID, "type", event.Type, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": out.Duplicate})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
