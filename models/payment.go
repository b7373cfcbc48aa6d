package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentAttemptStatus tracks one payment attempt. Completed, failed
// and refunded never revert; a failed attempt is superseded by a new
// pending one.
type PaymentAttemptStatus string

const (
	AttemptPending   PaymentAttemptStatus = "pending"
	AttemptCompleted PaymentAttemptStatus = "completed"
	AttemptFailed    PaymentAttemptStatus = "failed"
	AttemptRefunded  PaymentAttemptStatus = "refunded"
)

var attemptTransitions = map[PaymentAttemptStatus][]PaymentAttemptStatus{
	AttemptPending:   {AttemptCompleted, AttemptFailed},
	AttemptFailed:    {AttemptPending},
	AttemptCompleted: {AttemptRefunded},
}

func (s PaymentAttemptStatus) CanTransitionTo(target PaymentAttemptStatus) bool {
	for _, next := range attemptTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

type Payment struct {
	ID            string               `json:"id"`
	BookingID     string               `json:"booking_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Method        string               `json:"method"` // qr_code, credit_card, bank_transfer, manual
	Status        PaymentAttemptStatus `json:"status"`
	TransactionID string               `json:"transaction_id,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// PaymentNotification is the shape the gateway publishes on the
// payment notifications channel.
type PaymentNotification struct {
	BookingID     string    `json:"booking_id"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}
