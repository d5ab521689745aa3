package invoices

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsmarket/internal/domain/orders"
	"partsmarket/internal/domain/requests"
	"partsmarket/internal/domain/shops"
	"partsmarket/internal/domain/users"
)

func TestVAT(t *testing.T) {
	assert.Equal(t, int64(22511), VAT(150075))
	assert.Equal(t, int64(172586), 150075+VAT(150075))

	assert.Equal(t, int64(0), VAT(0))
	assert.Equal(t, int64(15), VAT(100))
	// 0.15 * 10 = 1.5 rounds away from zero
	assert.Equal(t, int64(2), VAT(10))
}

func TestFormatRand(t *testing.T) {
	assert.Equal(t, "R 1,500.75", FormatRand(150075))
	assert.Equal(t, "R 0.05", FormatRand(5))
	assert.Equal(t, "R 1,234,567.00", FormatRand(123456700))
	assert.Equal(t, "-R 10.00", FormatRand(-1000))
}

func TestNextNumber(t *testing.T) {
	assert.Equal(t, "INV-2026-00042", NextNumber("INV-2026-00041", 2026))
	assert.Equal(t, "INV-2026-00001", NextNumber("", 2026))
	assert.Equal(t, "INV-2027-00001", NextNumber("INV-2026-00041", 2027))
	assert.Equal(t, "INV-2026-00001", NextNumber("garbage", 2026))
	assert.Equal(t, "INV-2026-100000", NextNumber("INV-2026-99999", 2026))
}

func sampleInvoice(t *testing.T) Invoice {
	t.Helper()
	ref := "APM-1a2b3c4d-1760000000000"
	o := orders.Order{
		ID:               uuid.MustParse("1a2b3c4d-0000-4000-8000-000000000001"),
		TotalCents:       150075,
		Currency:         "ZAR",
		PaymentReference: &ref,
	}
	shop := shops.Shop{Name: "Brake & Clutch <b>Centre</b>", Email: "shop@example.com", VATNumber: "4123456789"}
	req := &requests.PartRequest{PartName: "Front brake pads", PartNumber: "BP-221", VehicleMake: "Toyota", VehicleModel: "Corolla", VehicleYear: 2015, Quantity: 2}
	cust := &users.Profile{FullName: "Thandi M", Email: "thandi@example.com"}

	return Compose("INV-2026-00042", o, shop, req, cust, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
}

func TestCompose(t *testing.T) {
	inv := sampleInvoice(t)

	assert.Equal(t, int64(150075), inv.SubtotalCents)
	assert.Equal(t, int64(22511), inv.VATCents)
	assert.Equal(t, int64(172586), inv.TotalCents)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Front brake pads (BP-221)", inv.Items[0].Description)
	assert.Equal(t, "2015 Toyota Corolla", inv.Items[0].Detail)
	assert.Equal(t, 2, inv.Items[0].Quantity)
	assert.Equal(t, "APM-1a2b3c4d-1760000000000", inv.Reference)
}

func TestComposeWithoutRequest(t *testing.T) {
	o := orders.Order{ID: uuid.MustParse("1a2b3c4d-0000-4000-8000-000000000001"), TotalCents: 1000, Currency: "ZAR"}
	inv := Compose("INV-2026-00001", o, shops.Shop{Name: "S"}, nil, nil, time.Now())

	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Order 1a2b3c4d", inv.Items[0].Description)
	assert.Equal(t, 1, inv.Items[0].Quantity)
	assert.Equal(t, int64(150), inv.VATCents)
}

func TestRender(t *testing.T) {
	html, err := Render(sampleInvoice(t))
	require.NoError(t, err)

	assert.Contains(t, html, "INV-2026-00042")
	assert.Contains(t, html, "R 1,500.75")
	assert.Contains(t, html, "R 225.11")
	assert.Contains(t, html, "R 1,725.86")
	assert.Contains(t, html, "02 Mar 2026")
	assert.Contains(t, html, "Brake &amp; Clutch Centre")
	assert.False(t, strings.Contains(html, "<b>Centre</b>"))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "Invoice INV-2026-00042 from Brake & Clutch Centre", Subject(sampleInvoice(t)))
}
