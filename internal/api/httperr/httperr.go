// Package httperr turns service errors into JSON responses.
package httperr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"partsmarket/internal/apperr"
	"partsmarket/internal/domain/payments"
	"partsmarket/internal/infra/mail"
)

// Status maps err to an HTTP status and the message safe to show the client.
func Status(err error) (int, string) {
	var ae *apperr.Error
	msg := err.Error()
	if errors.As(err, &ae) {
		msg = ae.Msg
	}

	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, msg
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, msg
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, msg
	}
	if pe, ok := payments.IsProviderError(err); ok {
		return http.StatusBadGateway, pe.Message
	}
	if errors.Is(err, mail.ErrSend) {
		return http.StatusBadGateway, "failed to send email"
	}
	return http.StatusInternalServerError, "internal server error"
}

// Write responds with {"error": ...}. Server-side failures are logged with
// the full error, which never reaches the client.
func Write(c *gin.Context, log *slog.Logger, err error) {
	status, msg := Status(err)
	if status >= http.StatusInternalServerError || status == http.StatusBadGateway {
		log.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"error", err,
		)
	}
	c.JSON(status, gin.H{"error": msg})
}
