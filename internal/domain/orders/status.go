package orders

import (
	"errors"
	"fmt"
)

type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusPaid     PaymentStatus = "paid"
	StatusFailed   PaymentStatus = "failed"
	StatusRefunded PaymentStatus = "refunded"
)

var (
	ErrIllegalTransition = errors.New("illegal payment status transition")
	ErrNoTransition      = errors.New("payment status already applied")
	ErrUnknownStatus     = errors.New("unknown payment status")

	// ErrConcurrentUpdate means a guarded update matched no row because
	// another writer moved the order first.
	ErrConcurrentUpdate = errors.New("order payment status changed concurrently")
)

// transitions lists, per target status, the statuses it may be entered from.
var transitions = map[PaymentStatus][]PaymentStatus{
	StatusPending:  {StatusPending, StatusFailed},
	StatusPaid:     {StatusPending, StatusFailed},
	StatusFailed:   {StatusPending},
	StatusRefunded: {StatusPaid},
}

func ParseStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case StatusPending, StatusPaid, StatusFailed, StatusRefunded:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Transition validates moving an order from one payment status to another.
// Re-applying a settled status yields ErrNoTransition so callers can treat
// replays as no-ops.
func Transition(from, to PaymentStatus) error {
	allowed, ok := transitions[to]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	for _, s := range allowed {
		if s == from {
			return nil
		}
	}
	if from == to {
		return ErrNoTransition
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// AllowedFrom returns the statuses an order may be in for a move to `to`.
func AllowedFrom(to PaymentStatus) []PaymentStatus {
	out := make([]PaymentStatus, len(transitions[to]))
	copy(out, transitions[to])
	return out
}

func (s PaymentStatus) IsSettled() bool {
	return s == StatusPaid || s == StatusRefunded
}
