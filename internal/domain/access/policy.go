package access

import (
	"github.com/google/uuid"

	"partsmarket/internal/domain/orders"
	"partsmarket/internal/domain/shops"
	"partsmarket/internal/domain/users"
)

// Actor is the authenticated caller as seen by the services. System jobs use
// the zero ID with RoleSystem.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

const RoleSystem = "system"

func System() Actor { return Actor{Role: RoleSystem} }

func (a Actor) IsAdmin() bool { return a.Role == users.RoleAdmin || a.Role == RoleSystem }

// Label is what gets written to the audit log.
func (a Actor) Label() string {
	if a.UserID == uuid.Nil {
		return a.Role
	}
	return a.UserID.String()
}

func CanManageShop(a Actor, shop shops.Shop) bool {
	if a.IsAdmin() {
		return true
	}
	return a.UserID != uuid.Nil && a.UserID == shop.OwnerID
}

// CanViewOrder allows the order's customer, the shop owner and admins.
func CanViewOrder(a Actor, o orders.Order, shop shops.Shop) bool {
	if CanManageShop(a, shop) {
		return true
	}
	return o.CustomerID != nil && a.UserID != uuid.Nil && *o.CustomerID == a.UserID
}
