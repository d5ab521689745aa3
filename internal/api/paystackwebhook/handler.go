package paystackwebhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"partsmarket/internal/domain/orders"
	"partsmarket/internal/infra/paystack"
	"partsmarket/internal/service/settlement"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	secret  string
	settler *settlement.Settler
	log     *slog.Logger
}

func NewHandler(secret string, settler *settlement.Settler, log *slog.Logger) *Handler {
	return &Handler{secret: secret, settler: settler, log: log}
}

// Receive handles POST /webhooks/paystack. The signature is checked on the
// raw body before anything is parsed.
func (h *Handler) Receive(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Error reading request body"})
		return
	}

	if !paystack.VerifySignature(payload, c.GetHeader(paystack.SignatureHeader), h.secret) {
		h.log.Warn("paystack webhook signature rejected", "remote_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	event, known, err := paystack.ParseEvent(payload)
	if err != nil {
		h.log.Warn("paystack webhook unreadable", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event"})
		return
	}
	if !known {
		// Acknowledge unknown events to avoid retries
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	out, err := h.settler.Apply(c.Request.Context(), event)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, orders.ErrConcurrentUpdate) {
			level = slog.LevelWarn
		}
		h.log.Log(c.Request.Context(), level, "paystack webhook not applied",
			"event_id", event.EventID, "reference", event.Reference, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": out.Duplicate})
}
