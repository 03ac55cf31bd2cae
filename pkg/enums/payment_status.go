package enums

import "fmt"

// PaymentStatus is the payment axis of an order, independent of OrderStatus.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusCompleted,
	PaymentStatusFailed,
}

// FAILED may go back to PENDING when a new attempt is initialized, or straight
// to COMPLETED when a retried attempt settles.
var paymentStatusTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusFailed:  {PaymentStatusPending, PaymentStatusCompleted},
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, candidate := range paymentStatusTransitions[p] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// PaymentAttemptStatus tracks a single payment row. Each attempt settles once.
type PaymentAttemptStatus string

const (
	PaymentAttemptPending   PaymentAttemptStatus = "PENDING"
	PaymentAttemptCompleted PaymentAttemptStatus = "COMPLETED"
	PaymentAttemptFailed    PaymentAttemptStatus = "FAILED"
)

var validPaymentAttemptStatuses = []PaymentAttemptStatus{
	PaymentAttemptPending,
	PaymentAttemptCompleted,
	PaymentAttemptFailed,
}

func (p PaymentAttemptStatus) String() string {
	return string(p)
}

func (p PaymentAttemptStatus) IsValid() bool {
	for _, candidate := range validPaymentAttemptStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

func (p PaymentAttemptStatus) IsTerminal() bool {
	return p == PaymentAttemptCompleted || p == PaymentAttemptFailed
}

func (p PaymentAttemptStatus) CanTransitionTo(next PaymentAttemptStatus) bool {
	return p == PaymentAttemptPending && (next == PaymentAttemptCompleted || next == PaymentAttemptFailed)
}
