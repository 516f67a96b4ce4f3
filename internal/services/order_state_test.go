package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/freshmart/internal/models"
)

var allStatuses = []string{
	models.OrderStatusPendingPayment,
	models.OrderStatusPaymentReview,
	models.OrderStatusProcessing,
	models.OrderStatusShipped,
	models.OrderStatusConfirmed,
	models.OrderStatusCancelled,
	models.OrderStatusExpired,
}

var allEvents = []Event{
	EventProofUploaded,
	EventGatewayPaid,
	EventPaymentConfirmed,
	EventPaymentRejected,
	EventShip,
	EventConfirmReceipt,
	EventCancel,
	EventExpire,
}

func TestNextStatusLegalTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from  string
		event Event
		to    string
	}{
		{models.OrderStatusPendingPayment, EventProofUploaded, models.OrderStatusPaymentReview},
		{models.OrderStatusPendingPayment, EventGatewayPaid, models.OrderStatusProcessing},
		{models.OrderStatusPendingPayment, EventCancel, models.OrderStatusCancelled},
		{models.OrderStatusPendingPayment, EventExpire, models.OrderStatusExpired},
		{models.OrderStatusPaymentReview, EventPaymentConfirmed, models.OrderStatusProcessing},
		{models.OrderStatusPaymentReview, EventPaymentRejected, models.OrderStatusPendingPayment},
		{models.OrderStatusPaymentReview, EventCancel, models.OrderStatusCancelled},
		{models.OrderStatusProcessing, EventShip, models.OrderStatusShipped},
		{models.OrderStatusProcessing, EventCancel, models.OrderStatusCancelled},
		{models.OrderStatusShipped, EventConfirmReceipt, models.OrderStatusConfirmed},
	}

	legal := make(map[string]map[Event]bool)
	for _, c := range cases {
		got, err := nextStatus(c.from, c.event)
		require.NoError(t, err, "%s + %s", c.from, c.event)
		require.Equal(t, c.to, got, "%s + %s", c.from, c.event)
		if legal[c.from] == nil {
			legal[c.from] = make(map[Event]bool)
		}
		legal[c.from][c.event] = true
	}

	// Every pair outside the table above must be rejected. Terminal states
	// accept nothing at all.
	for _, status := range allStatuses {
		for _, event := range allEvents {
			if legal[status][event] {
				continue
			}
			_, err := nextStatus(status, event)
			var illegal *IllegalTransitionError
			require.ErrorAs(t, err, &illegal, "%s + %s should be illegal", status, event)
			require.Equal(t, status, illegal.Current)
			require.Equal(t, event, illegal.Event)
		}
	}
}

func TestNextStatusRejectedPaymentCanRetry(t *testing.T) {
	t.Parallel()

	// Rejection sends the order back to PENDING_PAYMENT, from where a new
	// proof upload is legal again.
	back, err := nextStatus(models.OrderStatusPaymentReview, EventPaymentRejected)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPendingPayment, back)

	again, err := nextStatus(back, EventProofUploaded)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPaymentReview, again)
}

func TestNextStatusUnknownStatus(t *testing.T) {
	t.Parallel()

	_, err := nextStatus("SOMETHING_ELSE", EventCancel)
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
}
