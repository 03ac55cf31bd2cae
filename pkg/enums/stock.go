package enums

import "fmt"

// MovementType classifies a stock ledger entry.
type MovementType string

const (
	MovementSale                 MovementType = "SALE"
	MovementRestock              MovementType = "RESTOCK"
	MovementAdjustment           MovementType = "ADJUSTMENT"
	MovementReturn               MovementType = "RETURN"
	MovementCancellationReversal MovementType = "CANCELLATION_REVERSAL"
)

var validMovementTypes = []MovementType{
	MovementSale,
	MovementRestock,
	MovementAdjustment,
	MovementReturn,
	MovementCancellationReversal,
}

func (m MovementType) String() string {
	return string(m)
}

func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsManualAdjustment reports whether staff may record the type through Adjust.
func (m MovementType) IsManualAdjustment() bool {
	return m == MovementRestock || m == MovementAdjustment || m == MovementReturn
}

func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}

// ReservationStatus tracks a checkout stock hold.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationCommitted ReservationStatus = "COMMITTED"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationReversed  ReservationStatus = "REVERSED"
)

func (r ReservationStatus) String() string {
	return string(r)
}
