package shops

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"partsmarket/internal/domain/orders"
)

type summary struct {
	ShopID              uuid.UUID                      `json:"shop_id"`
	PaidRevenueCents    int64                          `json:"paid_revenue_cents"`
	RefundedCents       int64                          `json:"refunded_cents"`
	Last30DaysCents     int64                          `json:"last_30_days_cents"`
	OrdersByStatus      map[orders.PaymentStatus]int64 `json:"orders_by_status"`
	UniqueCustomers     int64                          `json:"unique_customers"`
	OutstandingInvoices int64                          `json:"outstanding_invoices"`
}

type statusRow struct {
	PaymentStatus orders.PaymentStatus
	OrderCount    int64
	Cents         int64
}

func loadSummary(db *gorm.DB, shopID uuid.UUID, since time.Time) (summary, error) {
	s := summary{
		ShopID: shopID,
		OrdersByStatus: map[orders.PaymentStatus]int64{
			orders.StatusPending:  0,
			orders.StatusPaid:     0,
			orders.StatusFailed:   0,
			orders.StatusRefunded: 0,
		},
	}

	var rows []statusRow
	err := db.Model(&orders.Order{}).
		Select("payment_status, COUNT(*) AS order_count, COALESCE(SUM(total_cents), 0) AS cents").
		Where("shop_id = ?", shopID).
		Group("payment_status").
		Scan(&rows).Error
	if err != nil {
		return s, err
	}
	for _, r := range rows {
		s.OrdersByStatus[r.PaymentStatus] = r.OrderCount
		switch r.PaymentStatus {
		case orders.StatusPaid:
			s.PaidRevenueCents = r.Cents
		case orders.StatusRefunded:
			s.RefundedCents = r.Cents
		}
	}

	err = db.Model(&orders.Order{}).
		Select("COALESCE(SUM(total_cents), 0)").
		Where("shop_id = ? AND payment_status = ? AND paid_at >= ?", shopID, orders.StatusPaid, since).
		Scan(&s.Last30DaysCents).Error
	if err != nil {
		return s, err
	}

	err = db.Model(&orders.Order{}).
		Where("shop_id = ? AND payment_status = ? AND invoice_number IS NULL", shopID, orders.StatusPaid).
		Count(&s.OutstandingInvoices).Error
	if err != nil {
		return s, err
	}

	err = db.Model(&orders.Order{}).
		Where("shop_id = ? AND customer_id IS NOT NULL AND payment_status = ?", shopID, orders.StatusPaid).
		Distinct("customer_id").
		Count(&s.UniqueCustomers).Error
	return s, err
}
