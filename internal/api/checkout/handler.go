package checkout

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"partsmarket/internal/api/httperr"
	"partsmarket/internal/api/reqctx"
	checkoutsvc "partsmarket/internal/service/checkout"
)

type Handler struct {
	initializer *checkoutsvc.Initializer
	verifier    *checkoutsvc.Verifier
	log         *slog.Logger
}

func NewHandler(initializer *checkoutsvc.Initializer, verifier *checkoutsvc.Verifier, log *slog.Logger) *Handler {
	return &Handler{initializer: initializer, verifier: verifier, log: log}
}

// Initialize handles POST /payments/initialize.
func (h *Handler) Initialize(c *gin.Context) {
	var body checkoutsvc.InitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	session, err := h.initializer.Initialize(c.Request.Context(), reqctx.Actor(c), body)
	if err != nil {
		httperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Verify handles GET /payments/verify?reference=.
func (h *Handler) Verify(c *gin.Context) {
	res, err := h.verifier.Verify(c.Request.Context(), reqctx.Actor(c), c.Query("reference"))
	if err != nil {
		httperr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
