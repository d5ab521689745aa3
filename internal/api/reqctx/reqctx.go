// Package reqctx moves the authenticated caller through gin.Context.
package reqctx

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"partsmarket/internal/domain/access"
)

const (
	KeyUserID = "user_id"
	KeyEmail  = "email"
	KeyRole   = "role"
)

func SetActor(c *gin.Context, a access.Actor) {
	c.Set(KeyUserID, a.UserID)
	c.Set(KeyEmail, a.Email)
	c.Set(KeyRole, a.Role)
}

// Actor returns the caller set by the auth middleware, or the zero Actor.
func Actor(c *gin.Context) access.Actor {
	var a access.Actor
	if v, ok := c.Get(KeyUserID); ok {
		a.UserID, _ = v.(uuid.UUID)
	}
	a.Email = c.GetString(KeyEmail)
	a.Role = c.GetString(KeyRole)
	return a
}
