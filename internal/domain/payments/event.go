package payments

import "encoding/json"

type EventKind string

const (
	EventChargeSuccess EventKind = "charge.success"
	EventChargeFailed  EventKind = "charge.failed"
	EventRefund        EventKind = "refund"
)

// Event is a provider callback normalised for settlement. EventID is the
// deduplication key within Provider.
type Event struct {
	Provider      string
	EventID       string
	Type          string
	Kind          EventKind
	OrderID       string
	Reference     string
	TransactionID string
	AmountCents   int64
	Currency      string
	Channel       string
	Card          Card
	Payload       json.RawMessage
}

// EventIDFor builds the dedup key for a provider transaction. The webhook and
// the manual verification path derive the same key for the same charge.
func EventIDFor(kind EventKind, transactionID string) string {
	return string(kind) + ":" + transactionID
}
