package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		wantErr  error
	}{
		{StatusPending, StatusPaid, nil},
		{StatusPending, StatusFailed, nil},
		{StatusPending, StatusPending, nil},
		{StatusFailed, StatusPending, nil},
		{StatusFailed, StatusPaid, nil},
		{StatusPaid, StatusRefunded, nil},

		{StatusPaid, StatusPaid, ErrNoTransition},
		{StatusFailed, StatusFailed, ErrNoTransition},
		{StatusRefunded, StatusRefunded, ErrNoTransition},

		{StatusRefunded, StatusPaid, ErrIllegalTransition},
		{StatusPaid, StatusFailed, ErrIllegalTransition},
		{StatusPaid, StatusPending, ErrIllegalTransition},
		{StatusPending, StatusRefunded, ErrIllegalTransition},
		{StatusRefunded, StatusPending, ErrIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := Transition(tt.from, tt.to)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTransitionUnknownTarget(t *testing.T) {
	assert.ErrorIs(t, Transition(StatusPending, "shipped"), ErrUnknownStatus)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("refunded")
	assert.NoError(t, err)
	assert.Equal(t, StatusRefunded, s)

	_, err = ParseStatus("PAID")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestAllowedFromReturnsCopy(t *testing.T) {
	from := AllowedFrom(StatusPaid)
	from[0] = StatusRefunded
	assert.Equal(t, []PaymentStatus{StatusPending, StatusFailed}, AllowedFrom(StatusPaid))
}
