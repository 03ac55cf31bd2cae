package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod enumerates the methods a shopper can pick at checkout.
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "CARD"
	PaymentMethodBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentMethodEWallet        PaymentMethod = "E_WALLET"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodBankTransfer,
	PaymentMethodCashOnDelivery,
	PaymentMethodEWallet,
}

// String implements fmt.Stringer.
func (m PaymentMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known PaymentMethod.
func (m PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsManual reports whether settlement goes through receipt submission and staff
// verification instead of a gateway confirmation.
func (m PaymentMethod) IsManual() bool {
	return m == PaymentMethodBankTransfer || m == PaymentMethodCashOnDelivery
}

// ParsePaymentMethod normalizes case; unknown methods are returned as-is with an error
// so callers can still fall back to generic instructions.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := PaymentMethod(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return normalized, fmt.Errorf("invalid payment method %q", value)
}
