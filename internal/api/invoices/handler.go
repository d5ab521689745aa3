package invoices

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"partsmarket/internal/api/httperr"
	"partsmarket/internal/api/reqctx"
	"partsmarket/internal/service/invoicing"
)

type Handler struct {
	sender *invoicing.Sender
	log    *slog.Logger
}

func NewHandler(sender *invoicing.Sender, log *slog.Logger) *Handler {
	return &Handler{sender: sender, log: log}
}

// Send handles POST /invoices/send with {"order_id": "..."}.
func (h *Handler) Send(c *gin.Context) {
	var body struct {
		OrderID string `json:"order_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid order_id"})
		return
	}
	id, err := uuid.Parse(body.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid order_id"})
		return
	}

	res, err := h.sender.Send(c.Request.Context(), reqctx.Actor(c), id)
	if err != nil {
		httperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
