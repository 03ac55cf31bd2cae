package payments

import "github.com/angelmondragon/commerce-core/pkg/enums"

const genericInstructions = "Follow the payment provider's instructions to complete your payment. Your order is reserved until payment is confirmed."

var methodInstructions = map[enums.PaymentMethod]string{
	enums.PaymentMethodCard:           "Complete the card payment on the secure payment page. Your order is confirmed as soon as the charge succeeds.",
	enums.PaymentMethodBankTransfer:   "Transfer the order total to the store bank account using the order id as the reference, then upload your transfer receipt.",
	enums.PaymentMethodCashOnDelivery: "Pay the order total in cash to the courier on delivery. Keep the signed delivery slip as your receipt.",
	enums.PaymentMethodEWallet:        "Approve the payment request in your e-wallet app. Your order is confirmed once the wallet provider notifies us.",
}

// Instructions returns the fixed shopper-facing text for method. Unknown
// methods get the generic text.
func Instructions(method enums.PaymentMethod) string {
	if text, ok := methodInstructions[method]; ok {
		return text
	}
	return genericInstructions
}
