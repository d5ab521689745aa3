package invoices

import (
	"time"

	"partsmarket/internal/domain/orders"
	"partsmarket/internal/domain/requests"
	"partsmarket/internal/domain/shops"
	"partsmarket/internal/domain/users"
)

type Party struct {
	Name      string
	Email     string
	Phone     string
	Address   string
	VATNumber string
}

type LineItem struct {
	Description string
	Detail      string
	Quantity    int
	AmountCents int64
}

// Invoice is computed on demand and never stored.
type Invoice struct {
	Number    string
	IssuedAt  time.Time
	OrderID   string
	Reference string
	Currency  string
	PaidAt    *time.Time

	Shop     Party
	Customer Party
	Items    []LineItem

	SubtotalCents int64
	VATCents      int64
	TotalCents    int64
}

// Compose builds the invoice for an order. The subtotal is the order's stored
// total; VAT is added on top. request and customer may be nil.
func Compose(number string, o orders.Order, shop shops.Shop, request *requests.PartRequest, customer *users.Profile, now time.Time) Invoice {
	inv := Invoice{
		Number:   number,
		IssuedAt: now,
		OrderID:  o.ID.String(),
		Currency: o.Currency,
		PaidAt:   o.PaidAt,
		Shop: Party{
			Name:      shop.Name,
			Email:     shop.Email,
			Phone:     shop.Phone,
			Address:   shop.Address,
			VATNumber: shop.VATNumber,
		},
	}
	if o.PaymentReference != nil {
		inv.Reference = *o.PaymentReference
	}
	if customer != nil {
		inv.Customer = Party{Name: customer.FullName, Email: customer.Email, Phone: customer.Phone}
	}

	item := LineItem{Description: "Order " + o.ShortID(), Quantity: 1, AmountCents: o.TotalCents}
	if request != nil {
		item.Description = request.PartName
		if request.PartNumber != "" {
			item.Description += " (" + request.PartNumber + ")"
		}
		item.Detail = request.Vehicle()
		if request.Quantity > 0 {
			item.Quantity = request.Quantity
		}
	}
	inv.Items = []LineItem{item}

	inv.SubtotalCents = o.TotalCents
	inv.VATCents = VAT(o.TotalCents)
	inv.TotalCents = inv.SubtotalCents + inv.VATCents
	return inv
}
